package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/wick/internal/config"
	"github.com/samcharles93/wick/internal/hub"
	"github.com/samcharles93/wick/internal/logger"
	"github.com/samcharles93/wick/internal/model"
	"github.com/samcharles93/wick/internal/tokenizer"
)

// Resolver maps a model id to files on disk.
type Resolver interface {
	Resolve(ctx context.Context, modelID, revision string) (hub.Files, error)
}

type Loader struct {
	Resolver Resolver
	Logger   logger.Logger
	// Metrics is passed through to the engine.
	Metrics bool
}

type LoadResult struct {
	Engine    *EngineImpl
	Model     *model.Handle
	Tokenizer *tokenizer.Adapter
	Files     hub.Files
}

// Load resolves cfg.ModelID and loads the weights and tokenizer in parallel.
// It returns once both are ready, or with the first failure.
func (l Loader) Load(ctx context.Context, cfg config.Model) (*LoadResult, error) {
	if strings.TrimSpace(cfg.ModelID) == "" {
		return nil, fmt.Errorf("model id is required")
	}
	dtype, err := model.ParseDType(cfg.DType)
	if err != nil {
		return nil, err
	}
	log := l.Logger
	if log == nil {
		log = logger.Nop()
	}
	if l.Resolver == nil {
		return nil, fmt.Errorf("loader has no resolver")
	}
	log = log.With("model_id", cfg.ModelID)
	if cfg.CPU {
		log.Debug("cpu requested; the reference forward pass always runs on cpu")
	}

	start := time.Now()
	files, err := l.Resolver.Resolve(ctx, cfg.ModelID, cfg.Revision)
	if err != nil {
		return nil, err
	}

	var (
		handle model.Handle
		tok    tokenizer.Adapter
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handle.Load(gctx, model.Files{Weights: files.Weights, Config: files.Config}, dtype)
	})
	g.Go(func() error {
		return tok.Load(gctx, files.Tokenizer, files.TokenizerConfig)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("model loaded",
		"dtype", dtype,
		"context_length", handle.ContextLength(),
		"vocab_size", handle.VocabSize(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return &LoadResult{
		Engine:    NewEngine(&handle, &tok, EngineOptions{Logger: l.Logger, Metrics: l.Metrics}),
		Model:     &handle,
		Tokenizer: &tok,
		Files:     files,
	}, nil
}
