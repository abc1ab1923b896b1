package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/api"
	"github.com/samcharles93/gguflens/internal/config"
	"github.com/samcharles93/gguflens/internal/logger"
	"github.com/samcharles93/gguflens/internal/modelstore"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxUpload   int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the inspection REST API",
		Flags: append(decodeFlags(),
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
			&cli.Int64Flag{
				Name:        "max-upload",
				Usage:       "largest body accepted by POST /v1/inspect, in bytes",
				Value:       api.DefaultMaxUpload,
				Destination: &maxUpload,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyDecodeConfig(c, cfg)
			if !c.IsSet("addr") {
				addr = cfg.ResolveServerAddress()
			}

			decodeOpts, err := decodeOptions(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			var store *modelstore.Store
			if modelsDir != "" {
				if store, err = modelstore.New(modelsDir); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			} else {
				log.Warn("no models directory configured; only POST /v1/inspect is available")
			}

			server := api.NewServer(store,
				api.WithLogger(log),
				api.WithDecodeOptions(decodeOpts...),
				api.WithMaxUpload(maxUpload),
			)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "models", modelsDir)
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
