package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wick/internal/logger"
	"github.com/samcharles93/wick/internal/toy"
)

func toyCmd() *cli.Command {
	opts := toy.DefaultOptions()
	var out string

	return &cli.Command{
		Name:  "toy",
		Usage: "Write a small random checkpoint for smoke tests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory",
				Value:       "toy-model",
				Destination: &out,
			},
			&cli.IntFlag{Name: "n-embd", Value: opts.NEmbd, Destination: &opts.NEmbd},
			&cli.IntFlag{Name: "n-head", Value: opts.NHead, Destination: &opts.NHead},
			&cli.IntFlag{Name: "n-layer", Value: opts.NLayer, Destination: &opts.NLayer},
			&cli.IntFlag{Name: "block-size", Value: opts.BlockSize, Destination: &opts.BlockSize},
			&cli.Uint64Flag{Name: "seed", Value: opts.Seed, Destination: &opts.Seed},
			&cli.StringFlag{
				Name:        "weight-dtype",
				Usage:       "on-disk weight encoding (F32, F16, BF16)",
				Value:       opts.DType,
				Destination: &opts.DType,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			files, err := toy.Write(out, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			logger.FromContext(ctx).Info("toy checkpoint written", "dir", out, "weights", files.Weights)
			fmt.Printf("wick generate --model-id %s --dtype f32 hello\n", out)
			return nil
		},
	}
}
