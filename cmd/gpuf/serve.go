package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/gpunexus/gpuf/internal/api"
	"github.com/gpunexus/gpuf/internal/bridge"
	"github.com/gpunexus/gpuf/internal/config"
	"github.com/gpunexus/gpuf/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		resultTTL   time.Duration
		maxTokens   int64
		sampling    samplingFlagValues
	)

	flags := commonModelFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       config.DefaultServerAddress,
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.DurationFlag{
			Name:        "result-ttl",
			Usage:       "how long finished generations stay retrievable",
			Value:       config.DefaultResultTTL,
			Destination: &resultTTL,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Usage:       "default max_tokens for /v1/generate",
			Value:       config.DefaultMaxTokens,
			Destination: &maxTokens,
		},
	)
	flags = append(flags, samplingFlags(&sampling)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a model over a local HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := fileConfig
			applyModelConfig(c, cfg)
			if cfg.ServerAddress != "" && !c.IsSet("addr") {
				addr = cfg.ServerAddress
			}
			if cfg.ResultTTL != "" && !c.IsSet("result-ttl") {
				ttl, err := cfg.ResultTTLDuration()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: config: %v", err), 1)
				}
				resultTTL = ttl
			}
			if cfg.MaxTokens != nil && !c.IsSet("max-tokens") {
				maxTokens = int64(*cfg.MaxTokens)
			}
			if maxTokens < 0 {
				return cli.Exit("error: --max-tokens must not be negative", 1)
			}

			opts, err := sessionOptions()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			sc, err := samplerConfig(c, cfg, sampling)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: sampling: %v", err), 1)
			}

			host := bridge.NewHost(bridge.HostOptions{
				Backend:    backendName,
				MaxKVBytes: maxKV,
				Sampling:   sc,
				Logger:     log,
			})
			defer func() { _ = host.Close() }()
			if err := host.Runtime().Init(); err != nil {
				return cli.Exit(fmt.Sprintf("error: init: %v", err), 1)
			}
			if modelPath != "" {
				opts.Sampling = sc
				if _, err := host.Load(modelPath, opts); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), exitCode(err))
				}
			}

			results := api.NewResultStore(resultTTL)
			defer results.Close()
			server := api.NewServer(api.ServerOptions{
				Host:        host,
				Results:     results,
				ContextSize: opts.ContextSize,
				GPULayers:   opts.GPULayers,
				MaxTokens:   uint(maxTokens),
				Logger:      log,
			})

			e := echo.New()
			e.Use(api.RequestLogger(log))
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr)
			start := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return start.Start(ctx, e)
		},
	}
}
