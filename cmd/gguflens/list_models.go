package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/config"
	"github.com/samcharles93/gguflens/internal/gguf"
	"github.com/samcharles93/gguflens/internal/logger"
	"github.com/samcharles93/gguflens/internal/modelstore"
)

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "list-models",
		Aliases: []string{"ls", "models"},
		Usage:   "List .gguf models in the models directory",
		Flags:   []cli.Flag{modelsDirFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			if !c.IsSet("models-dir") {
				modelsDir = cfg.ResolveModelsDir()
			}
			if modelsDir == "" {
				return cli.Exit("error: --models-dir is required unless "+config.EnvModelsDir+" or models_dir is set", 1)
			}

			store, err := modelstore.New(modelsDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			entries, err := store.List()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(entries) == 0 {
				log.Info("no models found", "path", store.Dir())
				return nil
			}
			writeModelList(os.Stdout, store.Dir(), entries, log)
			return nil
		},
	}
}

func writeModelList(w io.Writer, dir string, entries []modelstore.Entry, log logger.Logger) {
	fmt.Fprintf(w, "Models in %s:\n\n", dir)
	for _, e := range entries {
		size := gguf.FormatSize(uint64(e.Size))

		// Only the metadata table is needed for the architecture column.
		v, err := gguf.OpenMetadata(e.Path, gguf.WithLogger(log))
		if err != nil {
			log.Debug("skipping unreadable model", "path", e.Path, "error", err)
			fmt.Fprintf(w, "  %-40s %10s  (unreadable)\n", e.Name, size)
			continue
		}
		arch, ok := v.Architecture()
		if !ok {
			arch = "unknown"
		}
		ft := ""
		if t, ok := v.FileType(); ok {
			ft = " " + t.String()
		}
		fmt.Fprintf(w, "  %-40s %10s  (%s%s)\n", e.Name, size, arch, ft)
	}
	fmt.Fprintf(w, "\n%d model(s) found\n", len(entries))
}
