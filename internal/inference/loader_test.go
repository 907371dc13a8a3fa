package inference

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/samcharles93/wick/internal/config"
	"github.com/samcharles93/wick/internal/generr"
	"github.com/samcharles93/wick/internal/hub"
	"github.com/samcharles93/wick/internal/model"
	"github.com/samcharles93/wick/internal/toy"
)

type offlineFetcher struct{}

func (offlineFetcher) Fetch(context.Context, string, string, string) (string, error) {
	return "", errors.New("offline")
}

func newTestLoader() Loader {
	return Loader{Resolver: hub.NewResolverWithFetcher(offlineFetcher{}, nil)}
}

func TestLoaderEndToEnd(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := toy.Write(dir, toy.DefaultOptions()); err != nil {
		t.Fatalf("toy: %v", err)
	}
	cfg := config.DefaultModel()
	cfg.ModelID = dir

	lr, err := newTestLoader().Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lr.Model.State() != model.Loaded || !lr.Tokenizer.Loaded() || lr.Model.DType() != model.F16 {
		t.Fatalf("expected both parts loaded at f16")
	}

	gen := config.DefaultGeneration()
	gen.SampleLen = 12
	req := &Request{Prompt: "hello", Config: gen}
	first, err := lr.Engine.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := lr.Engine.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !slices.Equal(first.Tokens, second.Tokens) || first.Text != second.Text {
		t.Fatalf("same seed and prompt must give the same output")
	}
	if first.Stats.PromptTokens != 5 || len(first.Text) < len("hello") || first.Text[:5] != "hello" {
		t.Fatalf("expected the prompt to lead the text, got %q", first.Text)
	}

	// Longer than the toy block size: the window slides, the sequence grows.
	gen.SampleLen = toy.DefaultOptions().BlockSize + 4
	gen.Temperature = nil
	long, err := lr.Engine.Generate(context.Background(), &Request{Prompt: "hi", Config: gen}, nil)
	if err != nil {
		t.Fatalf("Generate past block size: %v", err)
	}
	if long.Stats.StopReason == StopLength && len(long.Tokens) != 2+gen.SampleLen {
		t.Fatalf("unexpected sequence length %d", len(long.Tokens))
	}
}

func TestLoaderErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	files, err := toy.Write(dir, toy.DefaultOptions())
	if err != nil {
		t.Fatalf("toy: %v", err)
	}
	l := newTestLoader()

	cfg := config.DefaultModel()
	cfg.ModelID = dir
	cfg.DType = "f8"
	if _, err := l.Load(context.Background(), cfg); !errors.Is(err, generr.ErrUnsupportedDType) {
		t.Fatalf("expected ErrUnsupportedDType, got %v", err)
	}

	cfg = config.DefaultModel()
	cfg.ModelID = "org/does-not-exist"
	if _, err := l.Load(context.Background(), cfg); !errors.Is(err, generr.ErrDownload) {
		t.Fatalf("expected ErrDownload, got %v", err)
	}

	if err := os.WriteFile(files.Tokenizer, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.ModelID = dir
	if _, err := l.Load(context.Background(), cfg); !errors.Is(err, generr.ErrLoadModel) {
		t.Fatalf("expected ErrLoadModel for a broken tokenizer, got %v", err)
	}

	cfg.ModelID = " "
	if _, err := l.Load(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for blank model id")
	}
}
