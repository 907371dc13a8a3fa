package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("should not appear")
	log.Debug("also should not appear")

	if buf.Len() > 0 {
		t.Fatalf("expected no output for info/debug at warn level, got: %s", buf.String())
	}

	log.Warn("should appear", "key", "value")
	out := buf.String()
	if !strings.Contains(out, "should appear") || !strings.Contains(out, `"key":"value"`) {
		t.Fatalf("expected warn message in output, got: %s", out)
	}
}

func TestSetup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"hello"`},
		{"text", "msg=hello"},
		{"pretty", "hello"},
		{"", "hello"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		log, err := Setup(tc.format, "info", &buf)
		if err != nil {
			t.Fatalf("Setup(%q): %v", tc.format, err)
		}
		log.Info("hello", "stage", "load")
		if !strings.Contains(buf.String(), tc.want) {
			t.Errorf("Setup(%q): expected %q in output, got: %s", tc.format, tc.want, buf.String())
		}
	}

	if _, err := Setup("xml", "info", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestNopDiscards(t *testing.T) {
	t.Parallel()
	log := Nop().With("k", "v").WithGroup("g")
	log.Error("nothing")
}

func TestWithAndGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("component", "sampler").WithGroup("req")
	log.Info("child message", "id", "abc")

	out := buf.String()
	if !strings.Contains(out, `"component":"sampler"`) {
		t.Fatalf("expected component in output, got: %s", out)
	}
	if !strings.Contains(out, `"req":{"id":"abc"}`) {
		t.Fatalf("expected grouped id in output, got: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("roundtrip test")
	if !strings.Contains(buf.String(), "roundtrip test") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext with no logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, &PrettyOptions{Level: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled at warn level")
	}
	if !NewPrettyHandler(&bytes.Buffer{}, nil).Enabled(context.Background(), slog.LevelInfo) {
		t.Error("nil options should log at info")
	}
}

func TestPrettyNoColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, &PrettyOptions{NoColor: true})).Warn("plain", "n", 3)

	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Fatalf("expected no escape codes, got: %q", out)
	}
	if !strings.Contains(out, "WARN  plain n=3") {
		t.Fatalf("unexpected line: %q", out)
	}
}

func TestPrettyHandlerAttrsAndGroups(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(h slog.Handler) slog.Handler
		args  []any
		want  string
	}{
		{
			name:  "with attrs",
			build: func(h slog.Handler) slog.Handler { return h.WithAttrs([]slog.Attr{slog.String("service", "wick")}) },
			want:  "service=wick",
		},
		{
			name:  "group",
			build: func(h slog.Handler) slog.Handler { return h.WithGroup("req") },
			args:  []any{"key", "val"},
			want:  "req.key=val",
		},
		{
			name:  "nested groups",
			build: func(h slog.Handler) slog.Handler { return h.WithGroup("a").WithGroup("b") },
			args:  []any{"key", "val"},
			want:  "a.b.key=val",
		},
		{
			name:  "inline group attr",
			build: func(h slog.Handler) slog.Handler { return h },
			args:  []any{slog.Group("stats", "tokens", 5)},
			want:  "stats.tokens=5",
		},
		{
			name:  "quoted value",
			build: func(h slog.Handler) slog.Handler { return h },
			args:  []any{"msg", "hello world"},
			want:  `msg="hello world"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			h := tc.build(NewPrettyHandler(&buf, &PrettyOptions{NoColor: true}))
			slog.New(h).Info("line", tc.args...)
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("expected %q in output, got: %s", tc.want, buf.String())
			}
		})
	}
}

func TestPrettyHandlerEmptyGroup(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup empty string should return same handler")
	}
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bool
	}{
		{"simple", false},
		{"has space", true},
		{"has\ttab", true},
		{"has\nnewline", true},
		{`has"quote`, true},
		{"k=v", true},
		{"", false},
	}

	for _, tc := range tests {
		if got := needsQuoting(tc.input); got != tc.expected {
			t.Errorf("needsQuoting(%q): expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}
