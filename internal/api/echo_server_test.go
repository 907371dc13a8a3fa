package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/wick/internal/config"
	"github.com/samcharles93/wick/internal/generr"
	"github.com/samcharles93/wick/internal/inference"
)

type testEngine struct {
	mu     sync.Mutex
	tokens []string
	err    error
	// errAfterStream fails the run after the tokens were streamed.
	errAfterStream bool
	last           *inference.Request
}

func (e *testEngine) Generate(ctx context.Context, req *inference.Request, stream inference.StreamFunc) (*inference.Result, error) {
	e.mu.Lock()
	e.last = req
	e.mu.Unlock()
	if e.err != nil && !e.errAfterStream {
		return nil, e.err
	}
	for _, tok := range e.tokens {
		if stream != nil {
			stream(tok)
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return &inference.Result{
		ID:   req.ID,
		Text: req.Prompt + strings.Join(e.tokens, ""),
		Stats: inference.Stats{
			PromptTokens:    len(req.Prompt),
			TokensGenerated: len(e.tokens),
			StopReason:      inference.StopLength,
			Duration:        time.Millisecond,
		},
	}, nil
}

func (e *testEngine) lastRequest() *inference.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func newTestEcho(engine inference.Engine) *echo.Echo {
	service := NewInferenceService(ServiceConfig{
		Engine:   engine,
		Defaults: config.DefaultGeneration(),
		Model:    "toy",
	})
	e := echo.New()
	NewServer(service, nil).Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEndpoint(t *testing.T) {
	t.Parallel()

	engine := &testEngine{tokens: []string{" wor", "ld"}}
	e := newTestEcho(engine)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hello","config":{"temperature":0,"sample_len":7,"seed":3}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.GeneratedText != "hello world" || resp.Model != "toy" || !strings.HasPrefix(resp.ID, "gen_") {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.CompletionTokens != 2 || resp.Usage.TotalTokens != 7 || resp.StopReason != "length" {
		t.Fatalf("unexpected usage: %+v", resp)
	}

	got := engine.lastRequest().Config
	if got.Temperature != nil || got.SampleLen != 7 || got.Seed != 3 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.TopP == nil || *got.TopP != config.DefaultTopP || got.RepeatLastN != config.DefaultRepeatLastN {
		t.Fatalf("unset fields should keep server defaults: %+v", got)
	}
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&testEngine{})
	tests := []struct {
		name, body, want string
	}{
		{"missing prompt", `{}`, "prompt is required"},
		{"blank prompt", `{"prompt":"  "}`, "prompt is required"},
		{"malformed", `{"prompt":`, ""},
		{"unknown field", `{"prompt":"x","max_tokens":3}`, ""},
		{"bad top_p", `{"prompt":"x","config":{"top_p":2}}`, "top_p"},
		{"bad penalty", `{"prompt":"x","config":{"repeat_penalty":0}}`, "repeat_penalty"},
	}
	for _, tc := range tests {
		rec := doJSON(t, e, http.MethodPost, "/v1/generate", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d body=%s", tc.name, rec.Code, rec.Body.String())
			continue
		}
		if !strings.Contains(rec.Body.String(), "invalid_request_error") || !strings.Contains(rec.Body.String(), tc.want) {
			t.Errorf("%s: unexpected body %s", tc.name, rec.Body.String())
		}
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
		typ    string
	}{
		{generr.New(generr.ErrUninitializedModel, "model not loaded"), http.StatusServiceUnavailable, "model_unavailable"},
		{fmt.Errorf("encode prompt: %w", generr.New(generr.ErrEncoding, "bad")), http.StatusUnprocessableEntity, "encoding_error"},
		{generr.New(generr.ErrLoadModel, "forward on unloaded model"), http.StatusServiceUnavailable, "model_unavailable"},
		{errors.New("tensor exploded"), http.StatusInternalServerError, "server_error"},
	}
	for _, tc := range tests {
		e := newTestEcho(&testEngine{err: tc.err})
		rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"x"}`)
		if rec.Code != tc.status || !strings.Contains(rec.Body.String(), tc.typ) {
			t.Errorf("%v: expected %d %s, got %d body=%s", tc.err, tc.status, tc.typ, rec.Code, rec.Body.String())
		}
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
	}{
		{newInvalidRequest("x"), http.StatusBadRequest},
		{generr.New(generr.ErrInvalidConfig, "x"), http.StatusBadRequest},
		{ErrBusy, http.StatusServiceUnavailable},
		{context.Canceled, 499},
		{fmt.Errorf("step: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{generr.New(generr.ErrDecoding, "x"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got, _ := statusFor(tc.err); got != tc.status {
			t.Errorf("statusFor(%v): expected %d, got %d", tc.err, tc.status, got)
		}
	}
}

func TestGenerateStream(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&testEngine{tokens: []string{"a", "", "b"}})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"x","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if n := strings.Count(body, "event: generation.delta"); n != 2 {
		t.Fatalf("expected 2 delta events, got %d:\n%s", n, body)
	}
	created := strings.Index(body, "generation.created")
	completed := strings.Index(body, "generation.completed")
	if created < 0 || completed < created || !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("unexpected event order:\n%s", body)
	}
	if !strings.Contains(body, `"generated_text":"xab"`) {
		t.Fatalf("completed event should carry the full text:\n%s", body)
	}
}

func TestGenerateStreamFailure(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&testEngine{tokens: []string{"a"}, err: errors.New("boom"), errAfterStream: true})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"x","stream":true}`)
	body := rec.Body.String()
	if !strings.Contains(body, "event: generation.failed") || !strings.Contains(body, "boom") {
		t.Fatalf("expected failed event, got:\n%s", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Fatalf("failed stream must not send [DONE]")
	}

	// Failures before the stream starts are plain JSON errors.
	e = newTestEcho(&testEngine{})
	rec = doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"","stream":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&testEngine{})
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

type blockingEngine struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingEngine) Generate(ctx context.Context, req *inference.Request, _ inference.StreamFunc) (*inference.Result, error) {
	close(b.started)
	<-b.release
	return &inference.Result{ID: req.ID}, nil
}

func TestInferenceServiceLimitsInflight(t *testing.T) {
	t.Parallel()

	engine := blockingEngine{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewInferenceService(ServiceConfig{
		Engine:       engine,
		Defaults:     config.DefaultGeneration(),
		MaxInflight:  1,
		QueueTimeout: 20 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "first"}, nil)
		done <- err
	}()
	<-engine.started

	if _, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "second"}, nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while the slot is held, got %v", err)
	}

	// A caller that gives up while queued gets its own error, not ErrBusy.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := svc.Generate(ctx, GenerateRequest{Prompt: "third"}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if status, _ := statusFor(err); status != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 for a queued deadline, got %d", status)
	}
	canceled, stop := context.WithCancel(context.Background())
	stop()
	if _, err := svc.Generate(canceled, GenerateRequest{Prompt: "fourth"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Canceled, got %v", err)
	}

	close(engine.release)
	if err := <-done; err != nil {
		t.Fatalf("first request: %v", err)
	}
}
