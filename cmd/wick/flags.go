package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wick/internal/config"
)

var (
	configFile string
	fileConfig config.File

	modelID  string
	revision string
	cacheDir string
	dtype    string
	cpu      bool

	seed          uint64
	temperature   float64
	topP          float64
	sampleLen     int
	repeatPenalty float64
	repeatLastN   int
	useFlashAttn  bool

	logLevel  string
	logFormat string
	debug     bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model-id",
			Aliases:     []string{"model", "m"},
			Usage:       "Hugging Face repository id or local checkpoint directory",
			Value:       config.DefaultModelID,
			Destination: &modelID,
		},
		&cli.StringFlag{
			Name:        "revision",
			Usage:       "repository revision",
			Value:       config.DefaultRevision,
			Destination: &revision,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "download cache directory (default: the Hugging Face cache)",
			Destination: &cacheDir,
		},
		&cli.StringFlag{
			Name:        "dtype",
			Usage:       "weight precision (f16, bf16, f32)",
			Value:       config.DefaultDType,
			Destination: &dtype,
		},
		&cli.BoolFlag{
			Name:        "cpu",
			Usage:       "run on the cpu",
			Destination: &cpu,
		},
	}
}

func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed",
			Value:       config.DefaultSeed,
			Destination: &seed,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature (<= 0 = greedy)",
			Value:       config.DefaultTemperature,
			Destination: &temperature,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p"},
			Usage:       "nucleus sampling threshold (<= 0 = disabled)",
			Value:       config.DefaultTopP,
			Destination: &topP,
		},
		&cli.IntFlag{
			Name:        "sample-len",
			Aliases:     []string{"sample_len", "n"},
			Usage:       "maximum number of tokens to generate",
			Value:       config.DefaultSampleLen,
			Destination: &sampleLen,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Aliases:     []string{"repeat_penalty"},
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       float64(config.DefaultRepeatPenalty),
			Destination: &repeatPenalty,
		},
		&cli.IntFlag{
			Name:        "repeat-last-n",
			Aliases:     []string{"repeat_last_n"},
			Usage:       "context size considered by the repeat penalty",
			Value:       config.DefaultRepeatLastN,
			Destination: &repeatLastN,
		},
		&cli.BoolFlag{
			Name:        "use-flash-attn",
			Usage:       "request the flash attention kernel",
			Destination: &useFlashAttn,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
