package api

import "github.com/samcharles93/wick/internal/config"

// GenerateRequest is the body of POST /v1/generate. Config overrides the
// server defaults field by field.
type GenerateRequest struct {
	Prompt           string            `json:"prompt"`
	Config           *config.Overrides `json:"config,omitempty"`
	Stream           bool              `json:"stream,omitempty"`
	ContinuationOnly bool              `json:"continuation_only,omitempty"`
}

type GenerateResponse struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	Model         string `json:"model,omitempty"`
	GeneratedText string `json:"generated_text"`
	StopReason    string `json:"stop_reason"`
	Usage         Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	DurationMS       int64   `json:"duration_ms"`
	TokensPerSecond  float64 `json:"tokens_per_second"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model,omitempty"`
	Version string `json:"version"`
}

// streamEvent is one server-sent event payload.
type streamEvent struct {
	Type     string            `json:"type"`
	ID       string            `json:"id"`
	Sequence int               `json:"sequence_number"`
	Delta    string            `json:"delta,omitempty"`
	Response *GenerateResponse `json:"response,omitempty"`
	Error    *ResponseError    `json:"error,omitempty"`
}
