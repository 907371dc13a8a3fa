package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wick/internal/api"
	"github.com/samcharles93/wick/internal/hub"
	"github.com/samcharles93/wick/internal/inference"
	"github.com/samcharles93/wick/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxInflight int
		queueWait   time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation API over HTTP",
		Flags: append(append(commonModelFlags(), samplingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.IntFlag{
				Name:        "max-inflight",
				Usage:       "concurrent generations; further requests wait",
				Value:       1,
				Destination: &maxInflight,
			},
			&cli.DurationFlag{
				Name:        "queue-timeout",
				Usage:       "how long a request waits for a free slot before 503 (0 waits until the client gives up)",
				Value:       time.Minute,
				Destination: &queueWait,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(c, fileConfig)
			applySamplingConfig(c, fileConfig)
			applyServeConfig(c, fileConfig, &addr, &maxInflight)

			defaults := generationConfig()
			if err := defaults.Validate(); err != nil {
				return err
			}
			loader := inference.Loader{
				Resolver: hub.NewResolver(cacheDir, os.Getenv("HF_TOKEN"), log),
				Logger:   log,
				Metrics:  true,
			}
			lr, err := loader.Load(ctx, modelConfig())
			if err != nil {
				return err
			}

			service := api.NewInferenceService(api.ServiceConfig{
				Engine:       lr.Engine,
				Defaults:     defaults,
				Model:        modelID,
				MaxInflight:  maxInflight,
				QueueTimeout: queueWait,
			})
			server := api.NewServer(service, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "max_inflight", maxInflight)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
