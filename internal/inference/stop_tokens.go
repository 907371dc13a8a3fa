package inference

// Fallback end-of-sequence symbols, tried in order after the tokenizer's own.
var fallbackEOS = []string{"<|endoftext|>", "</s>"}

// ResolveEOS finds the end-of-sequence token id. ok is false when the
// vocabulary has none, in which case only the length bound stops generation.
func ResolveEOS(tok Tokenizer) (id uint32, symbol string, ok bool) {
	candidates := fallbackEOS
	if s := tok.EOSToken(); s != "" {
		candidates = append([]string{s}, fallbackEOS...)
	}
	for _, s := range candidates {
		if id, ok := tok.TokenID(s); ok {
			return id, s, true
		}
	}
	return 0, "", false
}
