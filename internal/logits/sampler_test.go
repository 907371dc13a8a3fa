package logits

import (
	"math"
	"slices"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestSamplerDeterminism(t *testing.T) {
	t.Parallel()
	logs := []float32{0, 1, 2, 3, 4, 5}
	s1 := NewSampler(42, ptr(0.9), ptr(0.95))
	s2 := NewSampler(42, ptr(0.9), ptr(0.95))
	for i := range 50 {
		a, err := s1.Sample(logs)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		b, _ := s2.Sample(logs)
		if a != b {
			t.Fatalf("draw %d: expected deterministic sample, got %d vs %d", i, a, b)
		}
	}
}

func TestSamplerDifferentSeedsDiverge(t *testing.T) {
	t.Parallel()
	logs := make([]float32, 64)
	s1 := NewSampler(1, ptr(1), nil)
	s2 := NewSampler(2, ptr(1), nil)
	var a, b []uint32
	for range 32 {
		x, _ := s1.Sample(logs)
		y, _ := s2.Sample(logs)
		a, b = append(a, x), append(b, y)
	}
	if slices.Equal(a, b) {
		t.Fatalf("independent seeds produced identical streams")
	}
}

func TestSamplerGreedy(t *testing.T) {
	t.Parallel()
	logs := []float32{-1, 5, 3, 7, 2, 7}

	for _, temp := range []*float64{nil, ptr(0), ptr(1e-8)} {
		s := NewSampler(99, temp, ptr(0.5))
		if !s.Greedy() {
			t.Fatalf("expected greedy for temperature %v", temp)
		}
		idx, err := s.Sample(logs)
		if err != nil || idx != 3 {
			t.Fatalf("expected greedy index 3 (first max), got %d %v", idx, err)
		}
	}
}

func TestGreedyDoesNotConsumeRNG(t *testing.T) {
	t.Parallel()
	logs := []float32{0.1, 0.2, 0.3, 0.4}

	a := NewSampler(5, ptr(1), nil)
	b := NewSampler(5, ptr(1), nil)
	greedy := NewSampler(5, nil, nil)
	for range 10 {
		_, _ = greedy.Sample(logs)
	}
	// Greedy draws on a sibling sampler never touch a's or b's stream.
	for range 10 {
		x, _ := a.Sample(logs)
		y, _ := b.Sample(logs)
		if x != y {
			t.Fatalf("streams diverged")
		}
	}
}

func TestSamplerTopPRestrictsSupport(t *testing.T) {
	t.Parallel()
	logs := []float32{10, 0, 0, 0, 0}
	s := NewSampler(7, ptr(1), ptr(0.5))
	for range 20 {
		idx, err := s.Sample(logs)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if idx != 0 {
			t.Fatalf("top-p sampling returned unexpected index %d", idx)
		}
	}
}

func TestSamplerCoversDistribution(t *testing.T) {
	t.Parallel()
	logs := []float32{0, 0}
	s := NewSampler(3, ptr(1), nil)
	counts := [2]int{}
	for range 2000 {
		idx, _ := s.Sample(logs)
		counts[idx]++
	}
	if counts[0] < 800 || counts[1] < 800 {
		t.Fatalf("expected roughly even split, got %v", counts)
	}
}

func TestSamplerErrors(t *testing.T) {
	t.Parallel()
	s := NewSampler(1, ptr(1), nil)
	if _, err := s.Sample(nil); err == nil {
		t.Fatalf("expected error for empty logits")
	}
	nan := float32(math.NaN())
	if _, err := s.Sample([]float32{nan, nan}); err == nil {
		t.Fatalf("expected error for NaN logits")
	}
}

func TestTopP(t *testing.T) {
	t.Parallel()

	probs := []float32{0.5, 0.3, 0.1, 0.1}
	TopP(probs, 0.8)
	want := []float32{0.625, 0.375, 0, 0}
	for i := range want {
		if math.Abs(float64(probs[i]-want[i])) > 1e-6 {
			t.Fatalf("TopP: expected %v, got %v", want, probs)
		}
	}

	shuffled := []float32{0.1, 0.3, 0.1, 0.5}
	TopP(shuffled, 0.8)
	if shuffled[0] != 0 || shuffled[2] != 0 || math.Abs(float64(shuffled[3]-0.625)) > 1e-6 {
		t.Fatalf("TopP must follow probability order, got %v", shuffled)
	}

	for _, p := range []float64{0, 1, 1.5, -0.1} {
		same := []float32{0.5, 0.3, 0.1, 0.1}
		TopP(same, p)
		if !slices.Equal(same, []float32{0.5, 0.3, 0.1, 0.1}) {
			t.Fatalf("TopP(%v) should be a no-op, got %v", p, same)
		}
	}
}

func TestProbabilities(t *testing.T) {
	t.Parallel()

	p := Probabilities(nil, []float32{1, 1, 1, 1}, 1)
	for _, v := range p {
		if math.Abs(float64(v-0.25)) > 1e-7 {
			t.Fatalf("expected uniform, got %v", p)
		}
	}
	sharp := Probabilities(p, []float32{0, 1}, 0.1)
	flat := Probabilities(nil, []float32{0, 1}, 10)
	if !(sharp[1] > flat[1]) || len(sharp) != 2 {
		t.Fatalf("lower temperature should sharpen: sharp=%v flat=%v", sharp, flat)
	}
	if len(Probabilities(nil, nil, 1)) != 0 {
		t.Fatalf("expected empty output")
	}
}

func TestApplyRepeatPenalty(t *testing.T) {
	t.Parallel()

	logs := []float32{2, -2, 4, 1}
	ApplyRepeatPenalty(logs, 2, []uint32{0, 1, 1, 9})
	want := []float32{1, -4, 4, 1}
	if !slices.Equal(logs, want) {
		t.Fatalf("expected %v, got %v", want, logs)
	}
}

func TestRepeatPenaltyDisabledIsBitIdentical(t *testing.T) {
	t.Parallel()

	orig := []float32{0.1, -0.3, float32(math.Inf(1)), 7.25}
	logs := slices.Clone(orig)
	ApplyRepeatPenalty(logs, 1.0, []uint32{0, 1, 2, 3})
	for i := range orig {
		if math.Float32bits(logs[i]) != math.Float32bits(orig[i]) {
			t.Fatalf("index %d changed with penalty 1.0", i)
		}
	}
}

func TestPenaltyWindow(t *testing.T) {
	t.Parallel()

	seq := []uint32{1, 2, 3, 4, 5}
	tests := []struct {
		lastN int
		want  []uint32
	}{
		{2, []uint32{4, 5}},
		{5, seq},
		{64, seq},
		{0, []uint32{}},
	}
	for _, tc := range tests {
		if got := PenaltyWindow(seq, tc.lastN); !slices.Equal(got, tc.want) {
			t.Errorf("PenaltyWindow(lastN=%d): expected %v, got %v", tc.lastN, tc.want, got)
		}
	}

	// A window longer than the sequence clamps: only ids 1 and 2 move.
	logs := []float32{1, 1, 1, 1}
	ApplyRepeatPenalty(logs, 2, PenaltyWindow([]uint32{1, 2}, 64))
	if !slices.Equal(logs, []float32{1, 0.5, 0.5, 1}) {
		t.Fatalf("unexpected logits %v", logs)
	}
}
