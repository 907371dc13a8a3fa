package api

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/wick/internal/config"
	"github.com/samcharles93/wick/internal/inference"
)

// InferenceService applies server defaults to API requests and bounds how
// many generations run at once.
type InferenceService struct {
	engine   inference.Engine
	defaults config.Generation
	model    string
	slots    *semaphore.Weighted
	queueFor time.Duration
}

type ServiceConfig struct {
	Engine   inference.Engine
	Defaults config.Generation
	// Model is reported back in responses.
	Model string
	// MaxInflight caps concurrent generations; values below 1 mean 1.
	MaxInflight int
	// QueueTimeout bounds the wait for a slot before ErrBusy. Zero waits as
	// long as the request context allows.
	QueueTimeout time.Duration
}

func NewInferenceService(cfg ServiceConfig) *InferenceService {
	return &InferenceService{
		engine:   cfg.Engine,
		defaults: cfg.Defaults,
		model:    cfg.Model,
		slots:    semaphore.NewWeighted(int64(max(cfg.MaxInflight, 1))),
		queueFor: cfg.QueueTimeout,
	}
}

type StreamWriter interface {
	Begin(id string) error
	EmitToken(delta string) error
	Complete(resp GenerateResponse) error
	Failed(err error) error
}

// Generate runs one request. It waits for a free slot for at most the queue
// timeout; a caller that goes away while queued gets its context error back.
func (s *InferenceService) Generate(ctx context.Context, req GenerateRequest, stream StreamWriter) (*GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, newInvalidRequest("prompt is required")
	}
	cfg := s.defaults
	if req.Config != nil {
		cfg = req.Config.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := "gen_" + uuid.NewString()
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.slots.Release(1)

	if stream != nil {
		if err := stream.Begin(id); err != nil {
			return nil, err
		}
	}
	var emit inference.StreamFunc
	if stream != nil {
		emit = func(tok string) { _ = stream.EmitToken(tok) }
	}

	res, err := s.engine.Generate(ctx, &inference.Request{
		ID:               id,
		Prompt:           req.Prompt,
		Config:           cfg,
		ContinuationOnly: req.ContinuationOnly,
	}, emit)
	if err != nil {
		return nil, err
	}

	resp := &GenerateResponse{
		ID:            id,
		Object:        "generation",
		Model:         s.model,
		GeneratedText: res.Text,
		StopReason:    string(res.Stats.StopReason),
		Usage: Usage{
			PromptTokens:     res.Stats.PromptTokens,
			CompletionTokens: res.Stats.TokensGenerated,
			TotalTokens:      res.Stats.PromptTokens + res.Stats.TokensGenerated,
			DurationMS:       res.Stats.Duration.Milliseconds(),
			TokensPerSecond:  res.Stats.TPS,
		},
	}
	if stream != nil {
		if err := stream.Complete(*resp); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (s *InferenceService) acquire(ctx context.Context) error {
	qctx := ctx
	if s.queueFor > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.queueFor)
		defer cancel()
	}
	if err := s.slots.Acquire(qctx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrBusy
	}
	return nil
}
