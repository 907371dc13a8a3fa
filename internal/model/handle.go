package model

import (
	"context"
	"sync"

	"github.com/samcharles93/wick/internal/generr"
)

// Forwarder computes next-token logits for a window of token ids.
type Forwarder interface {
	Forward(ctx context.Context, window []uint32) ([]float32, error)
	// ContextLength is the longest window Forward accepts; 0 means unbounded.
	ContextLength() int
	VocabSize() int
}

type State int

const (
	Unloaded State = iota
	Loaded
)

func (s State) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "unloaded"
}

// Files locates a checkpoint on disk.
type Files struct {
	Weights string // model.safetensors
	Config  string // config.json
}

// Handle owns the forward pass of one model. It starts Unloaded and moves to
// Loaded exactly once.
type Handle struct {
	mu    sync.RWMutex
	fwd   Forwarder
	dtype DType
}

// NewHandle returns a Loaded handle around fwd.
func NewHandle(fwd Forwarder) *Handle {
	return &Handle{fwd: fwd, dtype: F32}
}

// Load builds the reference GPT from files. Loading an already loaded handle
// is a no-op.
func (h *Handle) Load(ctx context.Context, files Files, dtype DType) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fwd != nil {
		return nil
	}
	dtype, err := ParseDType(string(dtype))
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(files.Config)
	if err != nil {
		return generr.Wrap(generr.ErrLoadModel, err, "read model config")
	}
	gpt, err := LoadGPT(ctx, files.Weights, cfg, dtype)
	if err != nil {
		return generr.Wrap(generr.ErrLoadModel, err, "load weights")
	}
	h.fwd = gpt
	h.dtype = dtype
	return nil
}

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.fwd == nil {
		return Unloaded
	}
	return Loaded
}

// DType is the precision the weights were loaded at.
func (h *Handle) DType() DType {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dtype
}

// Forward fails with generr.ErrLoadModel before Load.
func (h *Handle) Forward(ctx context.Context, window []uint32) ([]float32, error) {
	h.mu.RLock()
	fwd := h.fwd
	h.mu.RUnlock()
	if fwd == nil {
		return nil, generr.New(generr.ErrLoadModel, "forward on unloaded model")
	}
	return fwd.Forward(ctx, window)
}

func (h *Handle) ContextLength() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.fwd == nil {
		return 0
	}
	return h.fwd.ContextLength()
}

func (h *Handle) VocabSize() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.fwd == nil {
		return 0
	}
	return h.fwd.VocabSize()
}
