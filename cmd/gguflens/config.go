package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/config"
	"github.com/samcharles93/gguflens/internal/gguf"
	"github.com/samcharles93/gguflens/internal/logger"
	"github.com/samcharles93/gguflens/internal/modelstore"
)

// applyLoggingConfig applies config file defaults to the logging flags
// when they were not set on the command line.
func applyLoggingConfig(c *cli.Command, cfg config.Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyDecodeConfig fills models-dir and alignment from the config file.
func applyDecodeConfig(c *cli.Command, cfg config.Config) {
	if !c.IsSet("models-dir") {
		modelsDir = cfg.ResolveModelsDir()
	}
	if cfg.Alignment != nil && !c.IsSet("alignment") {
		alignment = *cfg.Alignment
	}
}

func applyTensorConfig(c *cli.Command, cfg config.Config, f *tensorFilterFlags) {
	if !c.IsSet("tensors-limit") {
		f.limit = cfg.ResolveTensorLimit()
	}
}

// decodeOptions turns the shared decode flags into decoder options.
func decodeOptions(log logger.Logger) ([]gguf.DecodeOption, error) {
	opts := []gguf.DecodeOption{gguf.WithLogger(log)}
	if alignment != 0 {
		if alignment&(alignment-1) != 0 {
			return nil, fmt.Errorf("--alignment must be a power of two, got %d", alignment)
		}
		opts = append(opts, gguf.WithAlignment(alignment))
	}
	return opts, nil
}

// resolveModelPath accepts a file path or, when a models directory is
// configured, the name of a model in it.
func resolveModelPath(arg, dir string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("a model path or name is required")
	}
	if _, err := os.Stat(arg); err == nil {
		return filepath.Clean(arg), nil
	}
	if dir == "" {
		return "", fmt.Errorf("model %q not found", arg)
	}
	store, err := modelstore.New(dir)
	if err != nil {
		return "", err
	}
	return store.Resolve(arg)
}

// modelArg returns the --model flag or the first positional argument.
func modelArg(c *cli.Command, flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return c.Args().First()
}

// query builds a tensor selector from the filter flags.
func (f *tensorFilterFlags) query(c *cli.Command) (gguf.TensorQuery, error) {
	q := gguf.TensorQuery{AnyLayer: !c.IsSet("layer"), Layer: int(f.layer), Match: f.match}
	for name := range strings.SplitSeq(f.types, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tt, err := gguf.ParseTensorType(name)
		if err != nil {
			return q, err
		}
		q.Types = append(q.Types, tt)
	}
	return q, nil
}
