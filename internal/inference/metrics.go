package inference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wick_generations_total",
		Help: "Completed generation runs by stop reason",
	}, []string{"stop_reason"})

	generationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wick_generation_errors_total",
		Help: "Failed generation runs by error kind",
	}, []string{"kind"})

	promptTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wick_prompt_tokens_total",
		Help: "Prompt tokens encoded",
	})

	tokensGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wick_tokens_generated_total",
		Help: "Tokens sampled, including end-of-sequence tokens",
	})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wick_generation_duration_seconds",
		Help:    "Wall time of the decode loop",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	tokensPerSecond = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wick_tokens_per_second",
		Help:    "Decode throughput per run",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500, 1000},
	})
)

func observe(s Stats) {
	generationsTotal.WithLabelValues(string(s.StopReason)).Inc()
	promptTokensTotal.Add(float64(s.PromptTokens))
	tokensGenerated.Add(float64(s.TokensGenerated))
	generationDuration.Observe(s.Duration.Seconds())
	if s.TPS > 0 {
		tokensPerSecond.Observe(s.TPS)
	}
}
