package inference

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/wick/internal/generr"
	"github.com/samcharles93/wick/internal/logger"
	"github.com/samcharles93/wick/internal/logits"
	"github.com/samcharles93/wick/internal/model"
)

// EngineImpl turns a prompt into text with a loaded model and tokenizer.
// One EngineImpl serves any number of concurrent Generate calls; each call
// owns its sequence and sampler.
type EngineImpl struct {
	model     Model
	tokenizer Tokenizer
	log       logger.Logger
	metrics   bool

	// phase of the most recent run, for tests and debugging.
	phase atomic.Int32
}

type EngineOptions struct {
	Logger logger.Logger
	// Metrics exports run summaries to the default Prometheus registry.
	Metrics bool
}

func NewEngine(m Model, tok Tokenizer, opts EngineOptions) *EngineImpl {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &EngineImpl{model: m, tokenizer: tok, log: log, metrics: opts.Metrics}
}

// Phase reports where the most recent Generate call is or ended.
func (e *EngineImpl) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *EngineImpl) setPhase(p Phase) {
	e.phase.Store(int32(p))
}

// Generate encodes req.Prompt, samples up to req.Config.SampleLen tokens and
// decodes the sequence. Any failure other than a per-token decode aborts the
// run.
func (e *EngineImpl) Generate(ctx context.Context, req *Request, stream StreamFunc) (res *Result, err error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	log := e.log.With("request_id", id)
	defer func() {
		if err != nil && e.metrics {
			generationErrors.WithLabelValues(generr.Name(err)).Inc()
		}
	}()

	e.setPhase(PhaseEncoding)
	if e.model == nil || e.model.State() != model.Loaded {
		return nil, generr.New(generr.ErrUninitializedModel, "model not loaded")
	}
	if e.tokenizer == nil || !e.tokenizer.Loaded() {
		return nil, generr.New(generr.ErrUninitializedModel, "tokenizer not loaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := safeEncode(e.tokenizer, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	cfg := req.Config
	if len(ids) == 0 && cfg.SampleLen > 0 {
		return nil, generr.New(generr.ErrEncoding, "prompt encodes to no tokens")
	}
	eos, eosSymbol, hasEOS := ResolveEOS(e.tokenizer)
	if !hasEOS {
		log.Warn("no end-of-sequence token in vocabulary, stopping on length only")
	}
	log.Debug("prompt encoded", "tokens", len(ids), "eos", eosSymbol)
	if cfg.UseFlashAttn {
		log.Debug("use_flash_attn has no effect on the reference attention path")
	}

	e.setPhase(PhaseDecoding)
	gen := &Generator{
		Model:         e.model,
		Sampler:       logits.NewSampler(cfg.Seed, cfg.Temperature, cfg.TopP),
		Tokenizer:     e.tokenizer,
		Logger:        log,
		RepeatPenalty: cfg.RepeatPenalty,
		RepeatLastN:   cfg.RepeatLastN,
		EOS:           eos,
		HasEOS:        hasEOS,
	}
	start := time.Now()
	seq, stats, err := gen.RunWithContext(ctx, ids, cfg.SampleLen, stream)
	if err != nil {
		return nil, err
	}

	e.setPhase(PhaseFinished)
	text := seq
	if stats.StopReason == StopEOS {
		text = text[:len(text)-1]
	}
	if req.ContinuationOnly {
		text = text[len(ids):]
	}
	res = &Result{
		ID:     id,
		Text:   Detokenize(e.tokenizer, text),
		Tokens: seq,
		Stats:  stats,
	}

	log.Info("generation finished",
		"prompt_tokens", stats.PromptTokens,
		"generated_tokens", stats.TokensGenerated,
		"stop", stats.StopReason,
		"duration", time.Since(start),
		"tps", fmt.Sprintf("%.2f", stats.TPS),
	)
	if e.metrics {
		observe(stats)
	}
	return res, nil
}

func safeEncode(tok Tokenizer, prompt string) (ids []uint32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = generr.Newf(generr.ErrEncoding, "panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(prompt, true)
}
