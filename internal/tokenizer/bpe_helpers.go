package tokenizer

import (
	"cmp"
	"slices"
	"strings"
)

// Pair represents a pair of adjacent BPE symbols.
type Pair struct {
	A string
	B string
}

type textPart struct {
	text    string
	added   bool
	special bool
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// bestPair returns the adjacent pair with the lowest merge rank.
func bestPair(word []string, ranks map[Pair]int) (Pair, bool) {
	best := Pair{}
	bestRank := -1
	for i := 0; i+1 < len(word); i++ {
		p := Pair{A: word[i], B: word[i+1]}
		if r, ok := ranks[p]; ok && (bestRank < 0 || r < bestRank) {
			best, bestRank = p, r
		}
	}
	return best, bestRank >= 0
}

func mergePair(word []string, pair Pair) []string {
	out := make([]string, 0, len(word))
	for i := 0; i < len(word); i++ {
		if i < len(word)-1 && word[i] == pair.A && word[i+1] == pair.B {
			out = append(out, word[i]+word[i+1])
			i++
			continue
		}
		out = append(out, word[i])
	}
	return out
}

// sortLongestFirst orders added tokens so the longest literal wins when
// several share a prefix.
func sortLongestFirst(tokens []addedToken) []addedToken {
	out := slices.Clone(tokens)
	slices.SortStableFunc(out, func(a, b addedToken) int {
		return cmp.Compare(len(b.Content), len(a.Content))
	})
	return out
}

// splitAdded cuts text around literal occurrences of added tokens.
func splitAdded(text string, added []addedToken) []textPart {
	if len(added) == 0 {
		return []textPart{{text: text}}
	}
	var parts []textPart
	var buf strings.Builder
	for i := 0; i < len(text); {
		var match *addedToken
		for j := range added {
			c := added[j].Content
			if c != "" && strings.HasPrefix(text[i:], c) {
				match = &added[j]
				break
			}
		}
		if match == nil {
			buf.WriteByte(text[i])
			i++
			continue
		}
		if buf.Len() > 0 {
			parts = append(parts, textPart{text: buf.String()})
			buf.Reset()
		}
		parts = append(parts, textPart{text: match.Content, added: true, special: match.Special})
		i += len(match.Content)
	}
	if buf.Len() > 0 {
		parts = append(parts, textPart{text: buf.String()})
	}
	return parts
}

// bytesToUnicode maps bytes to printable runes to make byte-level BPE
// reversible.
func bytesToUnicode() (map[byte]string, map[rune]byte) {
	var bs []int
	for i := int('!'); i <= int('~'); i++ {
		bs = append(bs, i)
	}
	for i := int('¡'); i <= int('¬'); i++ {
		bs = append(bs, i)
	}
	for i := int('®'); i <= int('ÿ'); i++ {
		bs = append(bs, i)
	}

	cs := slices.Clone(bs)
	n := 0
	for b := 0; b < 256; b++ {
		if !slices.Contains(bs, b) {
			bs = append(bs, b)
			cs = append(cs, 256+n)
			n++
		}
	}

	enc := make(map[byte]string, len(bs))
	dec := make(map[rune]byte, len(bs))
	for i := range bs {
		r := rune(cs[i])
		enc[byte(bs[i])] = string(r)
		dec[r] = byte(bs[i])
	}
	return enc, dec
}

// byteFallbackToken returns the sentencepiece spelling of a raw byte.
func byteFallbackToken(b byte) string {
	const hex = "0123456789ABCDEF"
	return "<0x" + string(hex[b>>4]) + string(hex[b&0x0f]) + ">"
}

// parseByteFallback reverses byteFallbackToken.
func parseByteFallback(tok string) (byte, bool) {
	if len(tok) != 6 || !strings.HasPrefix(tok, "<0x") || tok[5] != '>' {
		return 0, false
	}
	var v byte
	for _, c := range tok[3:5] {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= byte(c - '0')
		case c >= 'A' && c <= 'F':
			v |= byte(c-'A') + 10
		case c >= 'a' && c <= 'f':
			v |= byte(c-'a') + 10
		default:
			return 0, false
		}
	}
	return v, true
}
