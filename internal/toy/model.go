// Package toy writes small random checkpoints in the layout the model and
// tokenizer loaders read. They back tests and the `wick toy` command.
package toy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/samcharles93/wick/internal/safetensors"
	"github.com/samcharles93/wick/internal/tensor"
)

// EOSToken is the single special token of the toy vocabulary.
const EOSToken = "<|endoftext|>"

// VocabSize covers the 256 byte symbols plus EOSToken.
const VocabSize = 257

// Options sizes the generated model.
type Options struct {
	NEmbd     int
	NHead     int
	NLayer    int
	BlockSize int
	Seed      uint64
	// DType is the on-disk weight encoding: F32, F16 or BF16.
	DType string
}

func DefaultOptions() Options {
	return Options{NEmbd: 16, NHead: 2, NLayer: 1, BlockSize: 32, Seed: 1, DType: "F32"}
}

// Files names what Write produces inside a directory.
type Files struct {
	Weights         string
	Config          string
	Tokenizer       string
	TokenizerConfig string
}

func FilesIn(dir string) Files {
	return Files{
		Weights:         filepath.Join(dir, "model.safetensors"),
		Config:          filepath.Join(dir, "config.json"),
		Tokenizer:       filepath.Join(dir, "tokenizer.json"),
		TokenizerConfig: filepath.Join(dir, "tokenizer_config.json"),
	}
}

// Write creates dir if needed and writes a random checkpoint into it.
func Write(dir string, opts Options) (Files, error) {
	if opts.NEmbd <= 0 || opts.NHead <= 0 || opts.NEmbd%opts.NHead != 0 || opts.BlockSize <= 0 || opts.NLayer < 0 {
		return Files{}, fmt.Errorf("invalid toy options: %+v", opts)
	}
	if opts.DType == "" {
		opts.DType = "F32"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, err
	}
	files := FilesIn(dir)

	seed := opts.Seed
	mat := func(r, c int) safetensors.Tensor {
		m := tensor.NewMat(r, c)
		tensor.FillRand(&m, seed)
		seed++
		return safetensors.Tensor{DType: opts.DType, Shape: []int{r, c}, Data: m.Data}
	}
	e := opts.NEmbd
	weights := map[string]safetensors.Tensor{
		"wte":     mat(VocabSize, e),
		"wpe":     mat(opts.BlockSize, e),
		"lm_head": mat(VocabSize, e),
	}
	for i := range opts.NLayer {
		p := fmt.Sprintf("layer%d.", i)
		weights[p+"attn_wq"] = mat(e, e)
		weights[p+"attn_wk"] = mat(e, e)
		weights[p+"attn_wv"] = mat(e, e)
		weights[p+"attn_wo"] = mat(e, e)
		weights[p+"mlp_fc1"] = mat(4*e, e)
		weights[p+"mlp_fc2"] = mat(e, 4*e)
	}
	if err := safetensors.Write(files.Weights, weights); err != nil {
		return Files{}, err
	}

	cfg := map[string]any{
		"vocab_size": VocabSize,
		"n_embd":     opts.NEmbd,
		"n_head":     opts.NHead,
		"n_layer":    opts.NLayer,
		"block_size": opts.BlockSize,
	}
	if err := writeJSON(files.Config, cfg); err != nil {
		return Files{}, err
	}
	if err := writeJSON(files.Tokenizer, tokenizerDoc()); err != nil {
		return Files{}, err
	}
	if err := writeJSON(files.TokenizerConfig, map[string]any{"eos_token": EOSToken}); err != nil {
		return Files{}, err
	}
	return files, nil
}

// tokenizerDoc is a byte-level BPE vocabulary without merges: every byte is
// its own token.
func tokenizerDoc() map[string]any {
	vocab := make(map[string]int, 256)
	for b, sym := range byteSymbols() {
		vocab[sym] = b
	}
	return map[string]any{
		"added_tokens": []map[string]any{
			{"id": VocabSize - 1, "content": EOSToken, "special": true},
		},
		"pre_tokenizer": map[string]any{"type": "ByteLevel"},
		"decoder":       map[string]any{"type": "ByteLevel"},
		"model": map[string]any{
			"type":   "BPE",
			"vocab":  vocab,
			"merges": []string{},
		},
	}
}

// byteSymbols is the GPT-2 byte to printable rune table, indexed by byte.
func byteSymbols() []string {
	out := make([]string, 256)
	n := 0
	for b := range 256 {
		printable := (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
		if printable {
			out[b] = string(rune(b))
			continue
		}
		out[b] = string(rune(256 + n))
		n++
	}
	return out
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
