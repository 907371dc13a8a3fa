package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wick/internal/config"
	"github.com/samcharles93/wick/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "wick",
		Usage: "Sample text from a safetensors language model",
		Flags: append(loggingFlags(), &cli.StringFlag{
			Name:        "config",
			Usage:       "config file (.yaml, .toml or .json)",
			Value:       config.DefaultPath(),
			Destination: &configFile,
		}),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			generateCmd(),
			serveCmd(),
			tokenizeCmd(),
			toyCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and installs the logger on the context. The
// file only fills in flags that were not given on the command line.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.LoadOptional(configFile)
	if err != nil {
		return ctx, fmt.Errorf("load config: %w", err)
	}
	fileConfig = cfg
	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	if debug {
		logLevel = "debug"
	}
	log, err := logger.Setup(logFormat, logLevel, os.Stderr)
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}
