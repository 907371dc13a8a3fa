package logits

// PenaltyWindow returns the last lastN tokens of seq, or all of seq when it
// is shorter. The result aliases seq.
func PenaltyWindow(seq []uint32, lastN int) []uint32 {
	start := max(len(seq)-lastN, 0)
	return seq[start:]
}

// ApplyRepeatPenalty discourages every distinct id in window: positive logits
// are divided by penalty, negative ones multiplied. Ids outside the vocabulary
// are ignored. A penalty of exactly 1 leaves logits untouched.
func ApplyRepeatPenalty(logits []float32, penalty float32, window []uint32) {
	if penalty == 1 || len(window) == 0 {
		return
	}
	seen := make(map[uint32]struct{}, len(window))
	for _, id := range window {
		if int(id) >= len(logits) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if logits[id] >= 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}
