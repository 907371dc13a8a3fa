package tokenizer

import (
	"context"
	"os"
	"sync"

	"github.com/samcharles93/wick/internal/generr"
)

// Codec is the text/token mapping the adapter delegates to once loaded.
type Codec interface {
	Encode(text string, addSpecial bool) ([]uint32, error)
	Decode(ids []uint32, skipSpecial bool) (string, error)
	TokenID(symbol string) (uint32, bool)
	EOSToken() string
	VocabSize() int
}

// Adapter is a lazily loaded tokenizer. The zero value is unloaded; every
// operation before a successful Load fails with generr.ErrUninitializedModel.
type Adapter struct {
	mu    sync.RWMutex
	codec Codec
}

// NewAdapter returns an adapter that is already loaded with codec.
func NewAdapter(codec Codec) *Adapter {
	return &Adapter{codec: codec}
}

// Load reads tokenizer.json and the optional tokenizer_config.json (pass ""
// to skip it). A Load after a successful one is a no-op; a failed Load
// leaves the adapter unloaded so it can be retried.
func (a *Adapter) Load(ctx context.Context, tokenizerPath, configPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.codec != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := os.ReadFile(tokenizerPath)
	if err != nil {
		return generr.Wrap(generr.ErrLoadModel, err, "read tokenizer")
	}
	var cfg []byte
	if configPath != "" {
		cfg, err = os.ReadFile(configPath)
		if err != nil {
			return generr.Wrap(generr.ErrLoadModel, err, "read tokenizer config")
		}
	}
	codec, err := ParseBPE(raw, cfg)
	if err != nil {
		return generr.Wrap(generr.ErrLoadModel, err, "parse tokenizer")
	}
	a.codec = codec
	return nil
}

// Loaded reports whether Load has succeeded.
func (a *Adapter) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.codec != nil
}

func (a *Adapter) get() (Codec, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.codec == nil {
		return nil, generr.New(generr.ErrUninitializedModel, "tokenizer not loaded")
	}
	return a.codec, nil
}

func (a *Adapter) Encode(text string, addSpecial bool) ([]uint32, error) {
	c, err := a.get()
	if err != nil {
		return nil, err
	}
	ids, err := c.Encode(text, addSpecial)
	if err != nil {
		return nil, generr.Wrap(generr.ErrEncoding, err, "encode")
	}
	return ids, nil
}

func (a *Adapter) Decode(ids []uint32, skipSpecial bool) (string, error) {
	c, err := a.get()
	if err != nil {
		return "", err
	}
	s, err := c.Decode(ids, skipSpecial)
	if err != nil {
		return "", generr.Wrap(generr.ErrDecoding, err, "decode")
	}
	return s, nil
}

// TokenID looks up an exact symbol. It reports false when unloaded.
func (a *Adapter) TokenID(symbol string) (uint32, bool) {
	c, err := a.get()
	if err != nil {
		return 0, false
	}
	return c.TokenID(symbol)
}

// EOSToken returns the configured end-of-sequence symbol, or "".
func (a *Adapter) EOSToken() string {
	c, err := a.get()
	if err != nil {
		return ""
	}
	return c.EOSToken()
}

func (a *Adapter) VocabSize() int {
	c, err := a.get()
	if err != nil {
		return 0
	}
	return c.VocabSize()
}
