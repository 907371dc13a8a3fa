package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wick/internal/hub"
	"github.com/samcharles93/wick/internal/inference"
	"github.com/samcharles93/wick/internal/logger"
)

func generateCmd() *cli.Command {
	var (
		prompt           string
		stream           bool
		continuationOnly bool
		showTokens       bool
	)

	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen", "run"},
		Usage:   "Generate text from a prompt",
		Flags: append(append(commonModelFlags(), samplingFlags()...),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt text (default: the remaining arguments)",
				Destination: &prompt,
			},
			&cli.BoolFlag{
				Name:        "stream",
				Usage:       "print tokens as they are sampled",
				Destination: &stream,
			},
			&cli.BoolFlag{
				Name:        "continuation-only",
				Usage:       "print only the generated text, without the prompt",
				Destination: &continuationOnly,
			},
			&cli.BoolFlag{
				Name:        "show-tokens",
				Usage:       "print the token ids of the whole sequence to stderr",
				Destination: &showTokens,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(c, fileConfig)
			applySamplingConfig(c, fileConfig)

			if prompt == "" {
				prompt = strings.Join(c.Args().Slice(), " ")
			}
			if prompt == "" {
				return cli.Exit("error: a prompt is required (--prompt or arguments)", 1)
			}
			gen := generationConfig()
			if err := gen.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			loader := inference.Loader{
				Resolver: hub.NewResolver(cacheDir, os.Getenv("HF_TOKEN"), log),
				Logger:   log,
			}
			lr, err := loader.Load(ctx, modelConfig())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}

			var onToken inference.StreamFunc
			if stream {
				if !continuationOnly {
					fmt.Print(prompt)
				}
				onToken = func(tok string) { fmt.Print(tok) }
			}
			res, err := lr.Engine.Generate(ctx, &inference.Request{
				Prompt:           prompt,
				Config:           gen,
				ContinuationOnly: continuationOnly,
			}, onToken)
			if err != nil {
				if stream {
					fmt.Println()
				}
				return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
			}
			if stream {
				fmt.Println()
			} else {
				fmt.Println(res.Text)
			}
			if showTokens {
				_, _ = fmt.Fprintf(os.Stderr, "tokens: %v\n", res.Tokens)
			}
			log.Info("done",
				"tokens", res.Stats.TokensGenerated,
				"stop", res.Stats.StopReason,
				"tps", fmt.Sprintf("%.2f", res.Stats.TPS),
			)
			return nil
		},
	}
}
