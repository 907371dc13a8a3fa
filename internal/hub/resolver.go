// Package hub locates the files of a checkpoint, either in a local directory
// or on the Hugging Face Hub.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	hfhub "github.com/gomlx/go-huggingface/hub"

	"github.com/samcharles93/wick/internal/generr"
	"github.com/samcharles93/wick/internal/logger"
)

const (
	WeightsFile         = "model.safetensors"
	ConfigFile          = "config.json"
	TokenizerFile       = "tokenizer.json"
	TokenizerConfigFile = "tokenizer_config.json"
)

// Files are absolute paths to a checkpoint. TokenizerConfig is "" when the
// repository has none.
type Files struct {
	Weights         string
	Config          string
	Tokenizer       string
	TokenizerConfig string
}

// Fetcher downloads one file of a repository and returns its local path.
type Fetcher interface {
	Fetch(ctx context.Context, modelID, revision, file string) (string, error)
}

type Resolver struct {
	fetcher Fetcher
	log     logger.Logger
}

// NewResolver returns a Resolver that downloads through the Hub into
// cacheDir ("" for the library default) using token when set.
func NewResolver(cacheDir, token string, log logger.Logger) *Resolver {
	return NewResolverWithFetcher(hubFetcher{cacheDir: cacheDir, token: token}, log)
}

func NewResolverWithFetcher(f Fetcher, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{fetcher: f, log: log}
}

// Resolve maps modelID to local files. A modelID naming an existing directory
// is used in place; anything else is treated as a Hub repository id.
// Failures carry generr.ErrDownload.
func (r *Resolver) Resolve(ctx context.Context, modelID, revision string) (Files, error) {
	return r.resolve(ctx, modelID, revision, true)
}

// ResolveTokenizer is Resolve for the tokenizer files only. Weights and
// config.json are neither fetched nor required.
func (r *Resolver) ResolveTokenizer(ctx context.Context, modelID, revision string) (Files, error) {
	return r.resolve(ctx, modelID, revision, false)
}

func (r *Resolver) resolve(ctx context.Context, modelID, revision string, withWeights bool) (Files, error) {
	if modelID == "" {
		return Files{}, generr.New(generr.ErrDownload, "empty model id")
	}
	if st, err := os.Stat(modelID); err == nil && st.IsDir() {
		return r.resolveDir(modelID, withWeights)
	}
	if revision == "" {
		revision = "main"
	}

	log := r.log.With("model_id", modelID, "revision", revision)
	var files Files
	type fileReq struct {
		dst  *string
		name string
	}
	reqs := []fileReq{{&files.Tokenizer, TokenizerFile}}
	if withWeights {
		reqs = []fileReq{
			{&files.Config, ConfigFile},
			{&files.Tokenizer, TokenizerFile},
			{&files.Weights, WeightsFile},
		}
	}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return Files{}, err
		}
		log.Debug("fetching", "file", req.name)
		p, err := r.fetcher.Fetch(ctx, modelID, revision, req.name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Files{}, ctxErr
			}
			return Files{}, generr.Wrap(generr.ErrDownload, err, fmt.Sprintf("fetch %s from %s@%s", req.name, modelID, revision))
		}
		*req.dst = p
	}
	if p, err := r.fetcher.Fetch(ctx, modelID, revision, TokenizerConfigFile); err == nil {
		files.TokenizerConfig = p
	} else {
		log.Debug("no tokenizer config", "error", err)
	}
	log.Info("model files resolved", "tokenizer", files.Tokenizer, "weights", files.Weights)
	return files, nil
}

func (r *Resolver) resolveDir(dir string, withWeights bool) (Files, error) {
	files := Files{Tokenizer: filepath.Join(dir, TokenizerFile)}
	required := []string{files.Tokenizer}
	if withWeights {
		files.Weights = filepath.Join(dir, WeightsFile)
		files.Config = filepath.Join(dir, ConfigFile)
		required = append(required, files.Weights, files.Config)
	}
	for _, p := range required {
		if _, err := os.Stat(p); err != nil {
			return Files{}, generr.Wrap(generr.ErrDownload, err, "local model directory incomplete")
		}
	}
	tc := filepath.Join(dir, TokenizerConfigFile)
	if _, err := os.Stat(tc); err == nil {
		files.TokenizerConfig = tc
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Files{}, generr.Wrap(generr.ErrDownload, err, "stat tokenizer config")
	}
	r.log.Info("using local model directory", "dir", dir)
	return files, nil
}

type hubFetcher struct {
	cacheDir string
	token    string
}

// Fetch downloads through go-huggingface. The download itself cannot be
// interrupted; cancellation only stops waiting for it.
func (h hubFetcher) Fetch(ctx context.Context, modelID, revision, file string) (string, error) {
	repo := hfhub.New(modelID).WithRevision(revision)
	if h.cacheDir != "" {
		repo = repo.WithCacheDir(h.cacheDir)
	}
	if h.token != "" {
		repo = repo.WithAuth(h.token)
	}

	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := repo.DownloadFile(file)
		done <- result{p, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.path, res.err
	}
}
