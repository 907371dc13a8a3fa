package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wick/internal/config"
)

// applyModelConfig applies config file defaults to the model flags that were
// not set explicitly.
func applyModelConfig(c *cli.Command, cfg config.File) {
	if cfg.ModelID != "" && !c.IsSet("model-id") {
		modelID = cfg.ModelID
	}
	if cfg.Revision != "" && !c.IsSet("revision") {
		revision = cfg.Revision
	}
	if cfg.CacheDir != "" && !c.IsSet("cache-dir") {
		cacheDir = cfg.CacheDir
	}
	if cfg.DType != "" && !c.IsSet("dtype") {
		dtype = cfg.DType
	}
	if cfg.CPU != nil && !c.IsSet("cpu") {
		cpu = *cfg.CPU
	}
}

// applySamplingConfig applies config file defaults to the sampling flags.
func applySamplingConfig(c *cli.Command, cfg config.File) {
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.Temperature != nil && !c.IsSet("temperature") {
		temperature = *cfg.Temperature
	}
	if cfg.TopP != nil && !c.IsSet("top-p") {
		topP = *cfg.TopP
	}
	if cfg.SampleLen != nil && !c.IsSet("sample-len") {
		sampleLen = *cfg.SampleLen
	}
	if cfg.RepeatPenalty != nil && !c.IsSet("repeat-penalty") {
		repeatPenalty = float64(*cfg.RepeatPenalty)
	}
	if cfg.RepeatLastN != nil && !c.IsSet("repeat-last-n") {
		repeatLastN = *cfg.RepeatLastN
	}
	if cfg.UseFlashAttn != nil && !c.IsSet("use-flash-attn") {
		useFlashAttn = *cfg.UseFlashAttn
	}
}

func modelConfig() config.Model {
	return config.Model{
		ModelID:  modelID,
		Revision: revision,
		CacheDir: cacheDir,
		DType:    dtype,
		CPU:      cpu,
	}
}

// generationConfig builds the sampling config from the flags. A temperature
// <= 0 selects greedy decoding and a top-p <= 0 disables nucleus truncation.
func generationConfig() config.Generation {
	g := config.Generation{
		Seed:          seed,
		SampleLen:     sampleLen,
		RepeatPenalty: float32(repeatPenalty),
		RepeatLastN:   repeatLastN,
		UseFlashAttn:  useFlashAttn,
	}
	if temperature > 0 {
		g.Temperature = config.Float64(temperature)
	}
	if topP > 0 {
		g.TopP = config.Float64(topP)
	}
	return g
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg config.File, addr *string, maxInflight *int) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxInflight != nil && !c.IsSet("max-inflight") {
		*maxInflight = *cfg.MaxInflight
	}
}
