package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/config"
	"github.com/samcharles93/gguflens/internal/logger"
	"github.com/samcharles93/gguflens/internal/version"
)

func main() {
	app := &cli.Command{
		Name:    "gguflens",
		Usage:   "Inspect GGUF model files",
		Version: version.String(),
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml",
				Value:       config.Path(),
				Destination: &configFile,
			},
		),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			tensorsCmd(),
			listModelsCmd(),
			probeCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and installs the logger every command reads
// from its context.
func setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	loaded, err := config.Load(configFile)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	cfg = loaded
	applyLoggingConfig(c, cfg)

	level := logLevel
	if debug {
		level = "debug"
	}
	log, err := logger.FromFormat(logFormat, level, os.Stderr)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	return logger.WithContext(ctx, log), nil
}
