package tokenizer

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

const metaspace = "▁"

// gpt2Pattern is the default byte-level pre-tokenizer split.
const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`

// llama3Pattern replaces pre-tokenizer regexes that rely on lookahead, which
// Go's regexp does not support.
const llama3Pattern = `(?:'[sS]|'[tT]|'[rR][eE]|'[vV][eE]|'[mM]|'[lL][lL]|'[dD])|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+`

type addedToken struct {
	ID      uint32 `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// component covers the nested normalizer, pre_tokenizer, post_processor and
// decoder objects of tokenizer.json. Only the fields the codec reads are
// mapped.
type component struct {
	Type          string      `json:"type"`
	Normalizers   []component `json:"normalizers"`
	Pretokenizers []component `json:"pretokenizers"`
	Processors    []component `json:"processors"`
	Decoders      []component `json:"decoders"`
	Pattern       struct {
		Regex  string `json:"Regex"`
		String string `json:"String"`
	} `json:"pattern"`
	Content string `json:"content"`
	Prepend string `json:"prepend"`

	// TemplateProcessing
	Single        []map[string]struct{ ID string `json:"id"` } `json:"single"`
	SpecialTokens map[string]struct{ IDs []uint32 `json:"ids"` } `json:"special_tokens"`
}

func (c *component) walk(fn func(*component)) {
	if c == nil {
		return
	}
	fn(c)
	for _, group := range [][]component{c.Normalizers, c.Pretokenizers, c.Processors, c.Decoders} {
		for i := range group {
			group[i].walk(fn)
		}
	}
}

type tokenizerJSON struct {
	AddedTokens   []addedToken `json:"added_tokens"`
	Normalizer    *component   `json:"normalizer"`
	PreTokenizer  *component   `json:"pre_tokenizer"`
	PostProcessor *component   `json:"post_processor"`
	Decoder       *component   `json:"decoder"`
	Model         struct {
		Type         string            `json:"type"`
		Vocab        map[string]uint32 `json:"vocab"`
		Merges       []any             `json:"merges"`
		UnkToken     string            `json:"unk_token"`
		ByteFallback bool              `json:"byte_fallback"`
		IgnoreMerges bool              `json:"ignore_merges"`
	} `json:"model"`
}

// tokenField accepts both "</s>" and {"content": "</s>", ...} spellings used
// by tokenizer_config.json.
type tokenField string

func (f *tokenField) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = tokenField(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*f = tokenField(obj.Content)
	return nil
}

type tokenizerConfig struct {
	AddBOS *bool      `json:"add_bos_token"`
	AddEOS *bool      `json:"add_eos_token"`
	BOS    tokenField `json:"bos_token"`
	EOS    tokenField `json:"eos_token"`
}

// BPE is a Hugging Face tokenizer.json BPE codec. It handles byte-level
// vocabularies (GPT-2 style) and metaspace vocabularies with byte fallback
// (Llama style). Safe for concurrent use.
type BPE struct {
	encoder  map[string]uint32
	decoder  []string
	ranks    map[Pair]int
	added    []addedToken // longest first
	addedIDs map[uint32]bool
	special  map[uint32]bool
	pattern  *regexp.Regexp
	byteEnc  map[byte]string
	byteDec  map[rune]byte
	unkID    int64
	eosToken string

	metaspace    bool
	prefixSpace  bool
	byteFallback bool
	ignoreMerges bool

	// Prepend normalizers add the marker even when the text already
	// starts with a space; the Metaspace pre-tokenizer does not.
	prependAlways bool

	prefix []uint32
	suffix []uint32

	mu    sync.Mutex
	cache map[string][]string
}

// ParseBPE builds a codec from the raw contents of tokenizer.json and an
// optional tokenizer_config.json.
func ParseBPE(tokJSON, tokConfig []byte) (*BPE, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(tokJSON, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if !strings.EqualFold(tj.Model.Type, "BPE") {
		return nil, fmt.Errorf("unsupported tokenizer model: %q", tj.Model.Type)
	}
	var cfg tokenizerConfig
	if len(tokConfig) > 0 {
		if err := json.Unmarshal(tokConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse tokenizer_config.json: %w", err)
		}
	}

	t := &BPE{
		encoder:      make(map[string]uint32, len(tj.Model.Vocab)+len(tj.AddedTokens)),
		ranks:        make(map[Pair]int, len(tj.Model.Merges)),
		addedIDs:     make(map[uint32]bool),
		special:      make(map[uint32]bool),
		unkID:        -1,
		eosToken:     string(cfg.EOS),
		byteFallback: tj.Model.ByteFallback,
		ignoreMerges: tj.Model.IgnoreMerges,
		cache:        make(map[string][]string),
	}

	var maxID uint32
	for tok, id := range tj.Model.Vocab {
		t.encoder[tok] = id
		maxID = max(maxID, id)
	}
	for _, at := range tj.AddedTokens {
		t.encoder[at.Content] = at.ID
		maxID = max(maxID, at.ID)
		t.addedIDs[at.ID] = true
		if at.Special {
			t.special[at.ID] = true
		}
	}
	t.decoder = make([]string, maxID+1)
	for tok, id := range t.encoder {
		t.decoder[id] = tok
	}
	t.added = sortLongestFirst(tj.AddedTokens)

	rank := 0
	for _, raw := range tj.Model.Merges {
		p, ok := parseMerge(raw)
		if !ok {
			continue
		}
		if _, dup := t.ranks[p]; !dup {
			t.ranks[p] = rank
			rank++
		}
	}

	if id, ok := t.encoder[tj.Model.UnkToken]; ok && tj.Model.UnkToken != "" {
		t.unkID = int64(id)
	}

	for _, c := range []*component{tj.Normalizer, tj.PreTokenizer, tj.Decoder} {
		c.walk(func(c *component) {
			switch c.Type {
			case "Metaspace":
				t.metaspace = true
				t.prefixSpace = true
			case "Prepend":
				if c.Prepend == metaspace {
					t.metaspace = true
					t.prefixSpace = true
					t.prependAlways = true
				}
			case "Replace":
				if c.Content == metaspace || c.Pattern.String == metaspace {
					t.metaspace = true
				}
			}
		})
	}
	if !t.metaspace {
		t.byteEnc, t.byteDec = bytesToUnicode()
		t.pattern = regexp.MustCompile(splitPattern(tj.PreTokenizer))
	}

	t.prefix, t.suffix = templateIDs(tj.PostProcessor)
	if tj.PostProcessor == nil || (len(t.prefix) == 0 && len(t.suffix) == 0) {
		t.prefix, t.suffix = nil, nil
		if cfg.AddBOS != nil && *cfg.AddBOS {
			if id, ok := t.encoder[string(cfg.BOS)]; ok {
				t.prefix = []uint32{id}
			}
		}
		if cfg.AddEOS != nil && *cfg.AddEOS {
			if id, ok := t.encoder[string(cfg.EOS)]; ok {
				t.suffix = []uint32{id}
			}
		}
	}
	for _, id := range slices.Concat(t.prefix, t.suffix) {
		t.special[id] = true
	}
	return t, nil
}

func parseMerge(raw any) (Pair, bool) {
	switch v := raw.(type) {
	case string:
		line := strings.TrimSpace(v)
		if line == "" || strings.HasPrefix(line, "#") {
			return Pair{}, false
		}
		a, b, ok := strings.Cut(line, " ")
		if !ok || strings.Contains(b, " ") {
			return Pair{}, false
		}
		return Pair{A: a, B: b}, true
	case []any:
		if len(v) != 2 {
			return Pair{}, false
		}
		a, aok := v[0].(string)
		b, bok := v[1].(string)
		return Pair{A: a, B: b}, aok && bok
	}
	return Pair{}, false
}

func splitPattern(pre *component) string {
	pat := gpt2Pattern
	pre.walk(func(c *component) {
		if c.Type == "Split" && c.Pattern.Regex != "" && pat == gpt2Pattern {
			pat = c.Pattern.Regex
		}
	})
	if strings.Contains(pat, `(?!\S)`) || strings.Contains(pat, "(?i:") {
		pat = llama3Pattern
	}
	return pat
}

// templateIDs reads the ids the TemplateProcessing "single" template places
// before and after the sequence.
func templateIDs(post *component) (prefix, suffix []uint32) {
	post.walk(func(c *component) {
		if c.Type != "TemplateProcessing" || prefix != nil || suffix != nil {
			return
		}
		seen := false
		for _, item := range c.Single {
			if _, ok := item["Sequence"]; ok {
				seen = true
				continue
			}
			sp, ok := item["SpecialToken"]
			if !ok {
				continue
			}
			ids := c.SpecialTokens[sp.ID].IDs
			if seen {
				suffix = append(suffix, ids...)
			} else {
				prefix = append(prefix, ids...)
			}
		}
	})
	return prefix, suffix
}

// Encode tokenizes text. addSpecial wraps the result in the template's
// BOS/EOS ids.
func (t *BPE) Encode(text string, addSpecial bool) ([]uint32, error) {
	var ids []uint32
	if addSpecial {
		ids = append(ids, t.prefix...)
	}
	first := true
	for _, part := range splitAdded(text, t.added) {
		if part.added {
			ids = append(ids, t.encoder[part.text])
			continue
		}
		var err error
		if t.metaspace {
			ids, err = t.encodeMetaspace(ids, part.text, first)
		} else {
			ids, err = t.encodeByteLevel(ids, part.text)
		}
		if err != nil {
			return nil, err
		}
		first = false
	}
	if addSpecial {
		ids = append(ids, t.suffix...)
	}
	return ids, nil
}

func (t *BPE) encodeByteLevel(ids []uint32, text string) ([]uint32, error) {
	for _, word := range t.pattern.FindAllString(text, -1) {
		var b strings.Builder
		for _, by := range []byte(word) {
			b.WriteString(t.byteEnc[by])
		}
		for _, sym := range t.bpe(b.String()) {
			id, ok := t.encoder[sym]
			if !ok {
				if t.unkID < 0 {
					return nil, fmt.Errorf("unknown token: %q", sym)
				}
				id = uint32(t.unkID)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *BPE) encodeMetaspace(ids []uint32, text string, first bool) ([]uint32, error) {
	norm := strings.ReplaceAll(text, " ", metaspace)
	if first && t.prefixSpace && (t.prependAlways || !strings.HasPrefix(norm, metaspace)) {
		norm = metaspace + norm
	}
	for _, word := range splitBeforeMetaspace(norm) {
		for _, sym := range t.bpe(word) {
			if id, ok := t.encoder[sym]; ok {
				ids = append(ids, id)
				continue
			}
			if t.byteFallback {
				var err error
				if ids, err = t.appendBytes(ids, sym); err != nil {
					return nil, err
				}
				continue
			}
			if t.unkID < 0 {
				return nil, fmt.Errorf("unknown token: %q", sym)
			}
			ids = append(ids, uint32(t.unkID))
		}
	}
	return ids, nil
}

func (t *BPE) appendBytes(ids []uint32, sym string) ([]uint32, error) {
	for _, by := range []byte(sym) {
		id, ok := t.encoder[byteFallbackToken(by)]
		if !ok {
			return nil, fmt.Errorf("no byte fallback token for 0x%02X", by)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitBeforeMetaspace cuts s into words that each start at a metaspace.
func splitBeforeMetaspace(s string) []string {
	var out []string
	for s != "" {
		// Searching from s[1:] skips a leading metaspace; the marker's
		// first byte never appears inside it.
		next := strings.Index(s[1:], metaspace)
		if next < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:next+1])
		s = s[next+1:]
	}
	return out
}

func (t *BPE) bpe(word string) []string {
	t.mu.Lock()
	cached, ok := t.cache[word]
	t.mu.Unlock()
	if ok {
		return cached
	}

	var out []string
	if _, whole := t.encoder[word]; whole && t.ignoreMerges {
		out = []string{word}
	} else {
		out = splitRunes(word)
		for len(out) > 1 {
			p, found := bestPair(out, t.ranks)
			if !found {
				break
			}
			out = mergePair(out, p)
		}
	}

	t.mu.Lock()
	t.cache[word] = out
	t.mu.Unlock()
	return out
}

// Decode maps ids back to text. skipSpecial drops special tokens.
func (t *BPE) Decode(ids []uint32, skipSpecial bool) (string, error) {
	var b []byte
	for _, id := range ids {
		if int(id) >= len(t.decoder) {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		if skipSpecial && t.special[id] {
			continue
		}
		tok := t.decoder[id]
		if t.addedIDs[id] {
			b = append(b, tok...)
			continue
		}
		if t.metaspace {
			if by, ok := parseByteFallback(tok); ok {
				b = append(b, by)
				continue
			}
			b = append(b, strings.ReplaceAll(tok, metaspace, " ")...)
			continue
		}
		for _, r := range tok {
			if by, ok := t.byteDec[r]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	if t.metaspace && t.prefixSpace && len(b) > 0 && b[0] == ' ' {
		b = b[1:]
	}
	return string(b), nil
}

// TokenID returns the id of an exact vocabulary or added-token symbol.
func (t *BPE) TokenID(symbol string) (uint32, bool) {
	id, ok := t.encoder[symbol]
	return id, ok
}

// EOSToken returns the eos_token named by tokenizer_config.json, or "".
func (t *BPE) EOSToken() string { return t.eosToken }

// VocabSize is one past the largest token id.
func (t *BPE) VocabSize() int { return len(t.decoder) }
