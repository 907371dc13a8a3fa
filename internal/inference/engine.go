package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/wick/internal/logger"
	"github.com/samcharles93/wick/internal/logits"
)

// Generator runs the decode loop for one request. It owns the running
// sequence and the sampler; the model is shared and only read.
type Generator struct {
	Model     Model
	Sampler   *logits.Sampler
	Tokenizer interface {
		Decode(ids []uint32, skipSpecial bool) (string, error)
	}
	Logger logger.Logger

	RepeatPenalty float32
	RepeatLastN   int

	EOS    uint32
	HasEOS bool
}

// RunWithContext appends up to steps sampled tokens to prompt. It stops early
// when the eos token is sampled; that token is the last element of the
// returned sequence. Cancellation is checked before every forward pass.
func (g *Generator) RunWithContext(ctx context.Context, prompt []uint32, steps int, stream StreamFunc) ([]uint32, Stats, error) {
	stats := Stats{PromptTokens: len(prompt), StopReason: StopLength}
	start := time.Now()
	log := g.Logger
	if log == nil {
		log = logger.Nop()
	}

	seq := make([]uint32, len(prompt), len(prompt)+max(steps, 0))
	copy(seq, prompt)

	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return seq, stats, err
		}

		window := contextWindow(seq, g.Model.ContextLength())
		logitsVec, err := safeForward(ctx, g.Model, window)
		if err != nil {
			return seq, stats, fmt.Errorf("forward step %d: %w", step, err)
		}
		logits.ApplyRepeatPenalty(logitsVec, g.RepeatPenalty, logits.PenaltyWindow(seq, g.RepeatLastN))

		next, err := safeSample(g.Sampler, logitsVec)
		if err != nil {
			return seq, stats, fmt.Errorf("sample step %d: %w", step, err)
		}
		seq = append(seq, next)
		stats.TokensGenerated++
		log.Debug("sampled", "step", step, "token", next, "window", len(window))

		if g.HasEOS && next == g.EOS {
			stats.StopReason = StopEOS
			break
		}
		if stream != nil && g.Tokenizer != nil {
			stream(decodeToken(g.Tokenizer, next))
		}
	}

	stats.Duration = time.Since(start)
	if stats.Duration.Seconds() > 0 {
		stats.TPS = float64(stats.TokensGenerated) / stats.Duration.Seconds()
	}
	return seq, stats, nil
}

// contextWindow is the suffix of seq passed to the forward pass. limit <= 0
// means the model takes the whole sequence.
func contextWindow(seq []uint32, limit int) []uint32 {
	if limit <= 0 || len(seq) <= limit {
		return seq
	}
	return seq[len(seq)-limit:]
}

// Detokenize decodes ids one at a time and concatenates the pieces. A token
// the tokenizer cannot decode contributes "" instead of failing the call.
func Detokenize(tok interface {
	Decode(ids []uint32, skipSpecial bool) (string, error)
}, ids []uint32) string {
	var out []byte
	for _, id := range ids {
		out = append(out, decodeToken(tok, id)...)
	}
	return string(out)
}

func decodeToken(tok interface {
	Decode(ids []uint32, skipSpecial bool) (string, error)
}, id uint32) (s string) {
	defer func() {
		if rec := recover(); rec != nil {
			s = ""
		}
	}()
	s, err := tok.Decode([]uint32{id}, false)
	if err != nil {
		return ""
	}
	return s
}

func safeForward(ctx context.Context, m Model, window []uint32) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Forward: %v", rec)
		}
	}()
	return m.Forward(ctx, window)
}

func safeSample(s *logits.Sampler, logitsVec []float32) (id uint32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Sample: %v", rec)
		}
	}()
	return s.Sample(logitsVec)
}
