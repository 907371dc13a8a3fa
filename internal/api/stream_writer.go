package api

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// SSEStreamWriter writes generation events as server-sent events:
// generation.created, one generation.delta per token, then
// generation.completed or generation.failed.
type SSEStreamWriter struct {
	w       io.Writer
	flusher func()
	id      string
	seq     int
	begun   bool
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	return &SSEStreamWriter{w: res, flusher: flusher.Flush, seq: 1}, nil
}

func (s *SSEStreamWriter) Begin(id string) error {
	s.begun = true
	s.id = id
	return s.send(streamEvent{Type: "generation.created"})
}

func (s *SSEStreamWriter) Started() bool {
	return s.begun
}

func (s *SSEStreamWriter) EmitToken(delta string) error {
	if delta == "" {
		return nil
	}
	return s.send(streamEvent{Type: "generation.delta", Delta: delta})
}

func (s *SSEStreamWriter) Complete(resp GenerateResponse) error {
	if err := s.send(streamEvent{Type: "generation.completed", Response: &resp}); err != nil {
		return err
	}
	_, err := io.WriteString(s.w, "data: [DONE]\n\n")
	s.flush()
	return err
}

func (s *SSEStreamWriter) Failed(err error) error {
	_, errType := statusFor(err)
	return s.send(streamEvent{
		Type:  "generation.failed",
		Error: &ResponseError{Message: err.Error(), Type: errType},
	})
}

func (s *SSEStreamWriter) send(ev streamEvent) error {
	ev.ID = s.id
	ev.Sequence = s.seq
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, b); err != nil {
		return err
	}
	s.seq++
	s.flush()
	return nil
}

func (s *SSEStreamWriter) flush() {
	if s.flusher != nil {
		s.flusher()
	}
}
