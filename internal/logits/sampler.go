package logits

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var errEmptyLogits = errors.New("sample from empty logits")

// Sampler draws the next token from a logits vector. It owns a seeded PCG
// stream that advances once per non-greedy draw and is never reset, so two
// samplers with the same seed fed the same logits return the same tokens.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	rng         *rand.Rand
	temperature *float64
	topP        *float64
	probs       []float32
}

// NewSampler returns a sampler. A nil (or near-zero) temperature selects
// argmax; a nil topP disables nucleus truncation.
func NewSampler(seed uint64, temperature, topP *float64) *Sampler {
	return &Sampler{
		rng:         rand.New(rand.NewPCG(seed, seed)),
		temperature: temperature,
		topP:        topP,
	}
}

// Greedy reports whether Sample uses argmax.
func (s *Sampler) Greedy() bool { return IsGreedy(s.temperature) }

// Sample returns the chosen token id. logits is read, not modified.
func (s *Sampler) Sample(logits []float32) (uint32, error) {
	if len(logits) == 0 {
		return 0, errEmptyLogits
	}
	if s.Greedy() {
		return uint32(Argmax(logits)), nil
	}

	s.probs = Probabilities(s.probs, logits, *s.temperature)
	if s.topP != nil {
		TopP(s.probs, *s.topP)
	}

	var total float64
	for _, p := range s.probs {
		if p < 0 || math.IsNaN(float64(p)) {
			return 0, fmt.Errorf("invalid probability %v", p)
		}
		total += float64(p)
	}
	if total <= 0 || math.IsInf(total, 0) {
		return 0, fmt.Errorf("invalid distribution (total mass %v)", total)
	}

	r := s.rng.Float64() * total
	var cum float64
	last := 0
	for i, p := range s.probs {
		if p == 0 {
			continue
		}
		cum += float64(p)
		last = i
		if r < cum {
			return uint32(i), nil
		}
	}
	return uint32(last), nil
}
