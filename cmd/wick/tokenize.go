package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wick/internal/hub"
	"github.com/samcharles93/wick/internal/logger"
	"github.com/samcharles93/wick/internal/tokenizer"
)

func tokenizeCmd() *cli.Command {
	var (
		decode      bool
		noSpecial   bool
		skipSpecial bool
	)

	return &cli.Command{
		Name:      "tokenize",
		Usage:     "Encode text to token ids, or decode ids with --decode",
		ArgsUsage: "<text> | <id> <id> ...",
		Flags: append(commonModelFlags(),
			&cli.BoolFlag{
				Name:        "decode",
				Aliases:     []string{"d"},
				Usage:       "treat the arguments as token ids and print the text",
				Destination: &decode,
			},
			&cli.BoolFlag{
				Name:        "no-special",
				Usage:       "do not add bos/eos tokens when encoding",
				Destination: &noSpecial,
			},
			&cli.BoolFlag{
				Name:        "skip-special",
				Usage:       "drop special tokens when decoding",
				Destination: &skipSpecial,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(c, fileConfig)
			if c.Args().Len() == 0 {
				return cli.Exit("error: nothing to tokenize", 1)
			}

			files, err := hub.NewResolver(cacheDir, os.Getenv("HF_TOKEN"), log).ResolveTokenizer(ctx, modelID, revision)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			var tok tokenizer.Adapter
			if err := tok.Load(ctx, files.Tokenizer, files.TokenizerConfig); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if decode {
				ids, err := parseIDs(c.Args().Slice())
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				text, err := tok.Decode(ids, skipSpecial)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				fmt.Println(text)
				return nil
			}

			ids, err := tok.Encode(strings.Join(c.Args().Slice(), " "), !noSpecial)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = strconv.FormatUint(uint64(id), 10)
			}
			fmt.Println(strings.Join(parts, " "))
			log.Debug("encoded", "tokens", len(ids), "vocab_size", tok.VocabSize())
			return nil
		},
	}
}

// parseIDs accepts ids separated by spaces or commas.
func parseIDs(args []string) ([]uint32, error) {
	var ids []uint32
	for _, arg := range args {
		for _, f := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			v, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid token id %q", f)
			}
			ids = append(ids, uint32(v))
		}
	}
	return ids, nil
}
