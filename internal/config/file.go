package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File represents the wick configuration file (~/.config/wick/config.yaml).
// All fields are pointers or strings so "not set" is distinguishable from
// zero values.
type File struct {
	// Model selection
	ModelID  string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Revision string `json:"revision" yaml:"revision" toml:"revision"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	DType    string `json:"dtype" yaml:"dtype" toml:"dtype"`
	CPU      *bool  `json:"cpu" yaml:"cpu" toml:"cpu"`

	// Sampling defaults
	Seed          *uint64  `json:"seed" yaml:"seed" toml:"seed"`
	Temperature   *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP          *float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	SampleLen     *int     `json:"sample_len" yaml:"sample_len" toml:"sample_len"`
	RepeatPenalty *float32 `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	RepeatLastN   *int     `json:"repeat_last_n" yaml:"repeat_last_n" toml:"repeat_last_n"`
	UseFlashAttn  *bool    `json:"use_flash_attn" yaml:"use_flash_attn" toml:"use_flash_attn"`

	// Output
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Server
	ServerAddress string `json:"server_address" yaml:"server_address" toml:"server_address"`
	MaxInflight   *int   `json:"max_inflight" yaml:"max_inflight" toml:"max_inflight"`
}

// Overrides returns the sampling section of the file as request overrides.
func (f File) Overrides() Overrides {
	return Overrides{
		Seed:          f.Seed,
		Temperature:   f.Temperature,
		TopP:          f.TopP,
		SampleLen:     f.SampleLen,
		RepeatPenalty: f.RepeatPenalty,
		RepeatLastN:   f.RepeatLastN,
		UseFlashAttn:  f.UseFlashAttn,
	}
}

// DefaultPath returns the per-user config file location, or "" when the
// user config dir cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wick", "config.yaml")
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (File, error) {
	var cfg File
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load that treats a missing file as an empty config.
func LoadOptional(path string) (File, error) {
	if path == "" {
		return File{}, nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return File{}, nil
	}
	return cfg, err
}
