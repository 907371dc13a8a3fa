package config

import (
	"math"

	"github.com/samcharles93/wick/internal/generr"
)

const (
	DefaultSeed          uint64  = 299792458
	DefaultTemperature   float64 = 1.0
	DefaultTopP          float64 = 0.9
	DefaultSampleLen             = 100
	DefaultRepeatPenalty float32 = 1.0
	DefaultRepeatLastN           = 64
	DefaultDType                 = "f16"
	DefaultModelID               = "meta-llama/Llama-2-7b-hf"
	DefaultRevision              = "main"
)

// Generation is the per-request sampling configuration. A nil Temperature
// selects greedy decoding; a nil TopP disables nucleus truncation.
type Generation struct {
	Seed          uint64   `json:"seed" yaml:"seed" toml:"seed"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" toml:"top_p,omitempty"`
	SampleLen     int      `json:"sample_len" yaml:"sample_len" toml:"sample_len"`
	RepeatPenalty float32  `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	RepeatLastN   int      `json:"repeat_last_n" yaml:"repeat_last_n" toml:"repeat_last_n"`
	UseFlashAttn  bool     `json:"use_flash_attn" yaml:"use_flash_attn" toml:"use_flash_attn"`
}

// Model selects which weights to load and how.
type Model struct {
	ModelID  string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Revision string `json:"revision" yaml:"revision" toml:"revision"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	DType    string `json:"dtype" yaml:"dtype" toml:"dtype"`
	CPU      bool   `json:"cpu" yaml:"cpu" toml:"cpu"`
}

// DefaultGeneration returns the documented defaults.
func DefaultGeneration() Generation {
	return Generation{
		Seed:          DefaultSeed,
		Temperature:   Float64(DefaultTemperature),
		TopP:          Float64(DefaultTopP),
		SampleLen:     DefaultSampleLen,
		RepeatPenalty: DefaultRepeatPenalty,
		RepeatLastN:   DefaultRepeatLastN,
	}
}

// DefaultModel returns the documented model defaults.
func DefaultModel() Model {
	return Model{
		ModelID:  DefaultModelID,
		Revision: DefaultRevision,
		DType:    DefaultDType,
	}
}

// Validate rejects values the sampler cannot honour.
func (g Generation) Validate() error {
	if g.SampleLen < 0 {
		return generr.Newf(generr.ErrInvalidConfig, "sample_len must be >= 0, got %d", g.SampleLen)
	}
	if !finite(float64(g.RepeatPenalty)) || g.RepeatPenalty <= 0 {
		return generr.Newf(generr.ErrInvalidConfig, "repeat_penalty must be > 0, got %g", g.RepeatPenalty)
	}
	if g.RepeatLastN < 0 {
		return generr.Newf(generr.ErrInvalidConfig, "repeat_last_n must be >= 0, got %d", g.RepeatLastN)
	}
	if g.Temperature != nil && (!finite(*g.Temperature) || *g.Temperature <= 0) {
		return generr.Newf(generr.ErrInvalidConfig, "temperature must be > 0 when set, got %g", *g.Temperature)
	}
	if g.TopP != nil && (math.IsNaN(*g.TopP) || *g.TopP <= 0 || *g.TopP > 1) {
		return generr.Newf(generr.ErrInvalidConfig, "top_p must be in (0, 1], got %g", *g.TopP)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Overrides is a partial Generation. Nil fields keep the base value.
// A Temperature <= 0 switches the request to greedy decoding.
type Overrides struct {
	Seed          *uint64  `json:"seed,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	SampleLen     *int     `json:"sample_len,omitempty"`
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"`
	RepeatLastN   *int     `json:"repeat_last_n,omitempty"`
	UseFlashAttn  *bool    `json:"use_flash_attn,omitempty"`
}

// Apply returns base with every non-nil override copied in.
func (o Overrides) Apply(base Generation) Generation {
	out := base
	if o.Seed != nil {
		out.Seed = *o.Seed
	}
	if o.Temperature != nil {
		if *o.Temperature <= 0 {
			out.Temperature = nil
		} else {
			out.Temperature = Float64(*o.Temperature)
		}
	}
	if o.TopP != nil {
		out.TopP = Float64(*o.TopP)
	}
	if o.SampleLen != nil {
		out.SampleLen = *o.SampleLen
	}
	if o.RepeatPenalty != nil {
		out.RepeatPenalty = *o.RepeatPenalty
	}
	if o.RepeatLastN != nil {
		out.RepeatLastN = *o.RepeatLastN
	}
	if o.UseFlashAttn != nil {
		out.UseFlashAttn = *o.UseFlashAttn
	}
	return out
}

func Float64(v float64) *float64 {
	return &v
}
