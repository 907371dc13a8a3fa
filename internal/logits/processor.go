package logits

import (
	"cmp"
	"math"
	"slices"
)

// minTemperature is the temperature below which sampling falls back to
// argmax.
const minTemperature = 1e-7

// IsGreedy reports whether temperature selects argmax decoding.
func IsGreedy(temperature *float64) bool {
	return temperature == nil || *temperature < minTemperature
}

// Probabilities writes softmax(logits / temperature) into dst, reusing its
// capacity, and returns it.
func Probabilities(dst []float32, logits []float32, temperature float64) []float32 {
	dst = slices.Grow(dst[:0], len(logits))[:len(logits)]
	if len(logits) == 0 {
		return dst
	}
	inv := 1 / temperature
	maxv := math.Inf(-1)
	for _, l := range logits {
		maxv = max(maxv, float64(l)*inv)
	}
	var sum float64
	for i, l := range logits {
		e := math.Exp(float64(l)*inv - maxv)
		dst[i] = float32(e)
		sum += e
	}
	if sum > 0 {
		for i := range dst {
			dst[i] = float32(float64(dst[i]) / sum)
		}
	}
	return dst
}

// TopP keeps the smallest highest-probability prefix whose cumulative mass
// reaches p, zeroes the rest and renormalizes in place. Ties keep index order.
// A p outside (0, 1) leaves probs unchanged.
func TopP(probs []float32, p float64) {
	if p <= 0 || p >= 1 || len(probs) == 0 {
		return
	}
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(probs[b], probs[a])
	})

	var cum float64
	for _, i := range order {
		if cum >= p {
			probs[i] = 0
			continue
		}
		cum += float64(probs[i])
	}
	if cum <= 0 {
		return
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / cum)
	}
}

// Argmax returns the index of the largest value, the first one on ties.
func Argmax(x []float32) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
