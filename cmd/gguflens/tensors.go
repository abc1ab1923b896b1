package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/gguf"
	"github.com/samcharles93/gguflens/internal/logger"
)

func tensorsCmd() *cli.Command {
	var (
		modelPath string
		asJSON    bool
		filter    tensorFilterFlags
	)

	return &cli.Command{
		Name:      "tensors",
		Usage:     "List tensor descriptors, optionally filtered",
		ArgsUsage: "<path.gguf | model name>",
		Flags: append(append(decodeFlags(),
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to .gguf file or model name in --models-dir",
				Destination: &modelPath,
			},
			&cli.BoolFlag{Name: "json", Usage: "print JSON", Destination: &asJSON},
		), filter.flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyDecodeConfig(c, cfg)
			applyTensorConfig(c, cfg, &filter)

			path, err := resolveModelPath(modelArg(c, modelPath), modelsDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			opts, err := decodeOptions(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			q, err := filter.query(c)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			f, err := gguf.Open(path, opts...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: decode %s: %v", path, err), 1)
			}
			if err := writeTensors(os.Stdout, f, q, int(filter.limit), asJSON); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

func writeTensors(w io.Writer, f *gguf.File, q gguf.TensorQuery, limit int, asJSON bool) error {
	matched, err := f.Query(q)
	if err != nil {
		return err
	}
	total := len(matched)
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	rows := tensorRows(matched)
	if asJSON {
		return writeJSON(w, rows)
	}
	writeTensorTable(w, rows)
	var bytes, params uint64
	for _, t := range matched {
		bytes += t.Size()
		params += t.Elements()
	}
	fmt.Fprintf(w, "\n%d of %d tensors, %s parameters, %s\n",
		len(rows), total, gguf.FormatParameters(params), gguf.FormatSize(bytes))
	return nil
}
