package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/config"
)

var (
	configFile string
	cfg        config.Config
	modelsDir  string
	alignment  uint64
	logLevel   string
	logFormat  string
	debug      bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       config.DefaultLogLevel,
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       config.DefaultLogFormat,
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func modelsDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "models-dir",
		Aliases:     []string{"path"},
		Usage:       "directory containing .gguf models (env " + config.EnvModelsDir + ")",
		Destination: &modelsDir,
	}
}

// decodeFlags are shared by every command that decodes a file.
func decodeFlags() []cli.Flag {
	return []cli.Flag{
		modelsDirFlag(),
		&cli.Uint64Flag{
			Name:        "alignment",
			Usage:       "override the data section alignment (power of two)",
			Destination: &alignment,
		},
	}
}

type tensorFilterFlags struct {
	layer int64
	types string
	match string
	limit int64
}

func (f *tensorFilterFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "layer",
			Usage:       "only tensors of this block (-1 for tensors outside any block)",
			Destination: &f.layer,
		},
		&cli.StringFlag{
			Name:        "type",
			Usage:       "comma separated ggml types, e.g. q4_k,f32",
			Destination: &f.types,
		},
		&cli.StringFlag{
			Name:        "match",
			Usage:       "regular expression the whole tensor name must match",
			Destination: &f.match,
		},
		&cli.Int64Flag{
			Name:        "tensors-limit",
			Aliases:     []string{"limit", "n"},
			Usage:       "limit tensor listing (0 = no limit)",
			Value:       config.DefaultTensorLimit,
			Destination: &f.limit,
		},
	}
}
