package model

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

const defaultNormEps = 1e-5

// Config is the config.json of a reference GPT checkpoint.
type Config struct {
	VocabSize int     `json:"vocab_size"`
	NEmbd     int     `json:"n_embd"`
	NHead     int     `json:"n_head"`
	NLayer    int     `json:"n_layer"`
	BlockSize int     `json:"block_size"`
	NormEps   float32 `json:"norm_eps"`
}

func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(raw)
}

func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config.json: %w", err)
	}
	if cfg.NormEps == 0 {
		cfg.NormEps = defaultNormEps
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.VocabSize <= 0:
		return fmt.Errorf("vocab_size must be positive, got %d", c.VocabSize)
	case c.NEmbd <= 0 || c.NHead <= 0:
		return fmt.Errorf("n_embd and n_head must be positive, got %d and %d", c.NEmbd, c.NHead)
	case c.NEmbd%c.NHead != 0:
		return fmt.Errorf("n_embd %d not divisible by n_head %d", c.NEmbd, c.NHead)
	case c.NLayer < 0:
		return fmt.Errorf("n_layer must be >= 0, got %d", c.NLayer)
	case c.BlockSize <= 0:
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	return nil
}
