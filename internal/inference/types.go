package inference

import (
	"context"
	"time"

	"github.com/samcharles93/wick/internal/config"
	"github.com/samcharles93/wick/internal/model"
)

// StreamFunc receives the text of each generated token as it is sampled.
type StreamFunc func(token string)

type Engine interface {
	Generate(ctx context.Context, req *Request, stream StreamFunc) (*Result, error)
}

// Tokenizer is the part of tokenizer.Adapter the engine depends on.
type Tokenizer interface {
	Loaded() bool
	Encode(text string, addSpecial bool) ([]uint32, error)
	Decode(ids []uint32, skipSpecial bool) (string, error)
	TokenID(symbol string) (uint32, bool)
	EOSToken() string
}

// Model is the part of model.Handle the engine depends on.
type Model interface {
	State() model.State
	Forward(ctx context.Context, window []uint32) ([]float32, error)
	ContextLength() int
}

type Request struct {
	// ID tags log lines and metrics. Generate assigns one when empty.
	ID     string
	Prompt string
	Config config.Generation
	// ContinuationOnly drops the prompt from Result.Text.
	ContinuationOnly bool
}

type StopReason string

const (
	StopEOS    StopReason = "eos"
	StopLength StopReason = "length"
)

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	StopReason      StopReason
	Duration        time.Duration
	TPS             float64
}

type Result struct {
	ID   string
	Text string
	// Tokens is the whole sequence: prompt, generated tokens and, when
	// generation stopped on it, the eos token.
	Tokens []uint32
	Stats  Stats
}

// Phase is the engine's position in one run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEncoding
	PhaseDecoding
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseEncoding:
		return "encoding"
	case PhaseDecoding:
		return "decoding"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}
