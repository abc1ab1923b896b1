package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	gojson "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/gguf"
	"github.com/samcharles93/gguflens/internal/logger"
)

type inspectOptions struct {
	showKV       bool
	showTensors  bool
	byType       bool
	metadataOnly bool
	asJSON       bool
	query        gguf.TensorQuery
	limit        int
}

func inspectCmd() *cli.Command {
	var (
		modelPath string
		opts      inspectOptions
		filter    tensorFilterFlags
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarise a .gguf file",
		ArgsUsage: "<path.gguf | model name>",
		Flags: append(append(decodeFlags(),
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to .gguf file or model name in --models-dir",
				Destination: &modelPath,
			},
			&cli.BoolFlag{Name: "kv", Usage: "show all metadata key/values", Destination: &opts.showKV},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensor descriptors", Destination: &opts.showTensors},
			&cli.BoolFlag{Name: "by-type", Usage: "group tensors by ggml type", Destination: &opts.byType},
			&cli.BoolFlag{Name: "metadata-only", Usage: "stop after the metadata table", Destination: &opts.metadataOnly},
			&cli.BoolFlag{Name: "json", Usage: "print a JSON report", Destination: &opts.asJSON},
		), filter.flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyDecodeConfig(c, cfg)
			applyTensorConfig(c, cfg, &filter)

			path, err := resolveModelPath(modelArg(c, modelPath), modelsDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			decodeOpts, err := decodeOptions(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if opts.query, err = filter.query(c); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			opts.limit = int(filter.limit)
			if c.IsSet("layer") || c.IsSet("type") || c.IsSet("match") {
				opts.showTensors = true
			}

			if opts.metadataOnly {
				v, err := gguf.OpenMetadata(path, decodeOpts...)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: decode %s: %v", path, err), 1)
				}
				return writeMetadataReport(os.Stdout, path, v, opts)
			}
			f, err := gguf.Open(path, decodeOpts...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: decode %s: %v", path, err), 1)
			}
			log.Debug("decoded", "path", path, "tensors", len(f.Tensors), "data_offset", f.DataOffset)
			if err := writeFileReport(os.Stdout, path, f, opts); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

type tensorRow struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Dims   []uint64 `json:"dims"`
	Offset uint64   `json:"offset"`
	Size   uint64   `json:"size"`
}

type metadataRow struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type report struct {
	Path     string        `json:"path"`
	Summary  gguf.Summary  `json:"summary"`
	Metadata []metadataRow `json:"metadata,omitempty"`
	Tensors  []tensorRow   `json:"tensors,omitempty"`
}

func metadataRows(kv gguf.Metadata) []metadataRow {
	keys := kv.Keys()
	rows := make([]metadataRow, len(keys))
	for i, k := range keys {
		rows[i] = metadataRow{Key: k, Type: kv[k].Type.String(), Value: kv[k].String()}
	}
	return rows
}

func tensorRows(ts []gguf.TensorInfo) []tensorRow {
	rows := make([]tensorRow, len(ts))
	for i, t := range ts {
		rows[i] = tensorRow{Name: t.Name, Type: t.Type.String(), Dims: t.Dims, Offset: t.Offset, Size: t.Size()}
	}
	return rows
}

func writeJSON(w io.Writer, v any) error {
	data, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeMetadataReport(w io.Writer, path string, v *gguf.MetadataView, opts inspectOptions) error {
	r := report{Path: path, Summary: gguf.SummarizeView(v)}
	if opts.showKV || opts.asJSON {
		r.Metadata = metadataRows(v.KV)
	}
	if opts.asJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprint(w, r.Summary.String())
	writeMetadata(w, r.Metadata)
	return nil
}

func writeFileReport(w io.Writer, path string, f *gguf.File, opts inspectOptions) error {
	r := report{Path: path, Summary: gguf.Summarize(f)}
	if opts.showKV || opts.asJSON {
		r.Metadata = metadataRows(f.KV)
	}
	matched, err := f.Query(opts.query)
	if err != nil {
		return err
	}
	total := len(matched)
	if opts.limit > 0 && opts.limit < len(matched) {
		matched = matched[:opts.limit]
	}
	if opts.showTensors || opts.asJSON {
		r.Tensors = tensorRows(matched)
	}
	if opts.asJSON {
		return writeJSON(w, r)
	}

	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprint(w, r.Summary.String())
	writeHyperparameters(w, f)
	writeMetadata(w, r.Metadata)
	if opts.showTensors {
		fmt.Fprintf(w, "\nTensors (%d of %d):\n", len(r.Tensors), total)
		writeTensorTable(w, r.Tensors)
		if len(r.Tensors) < total {
			fmt.Fprintf(w, "  ... %d more (use --tensors-limit 0 to list all)\n", total-len(r.Tensors))
		}
	}
	if opts.byType {
		writeByType(w, f)
	}
	return nil
}

func writeHyperparameters(w io.Writer, f *gguf.File) {
	fields := []struct {
		label string
		get   func() (int64, bool)
	}{
		{"context", f.ContextLength},
		{"embedding", f.EmbeddingLength},
		{"blocks", f.BlockCount},
		{"ffn", f.FeedForwardLength},
		{"heads", f.HeadCount},
		{"kv heads", f.HeadCountKV},
	}
	header := false
	for _, fld := range fields {
		n, ok := fld.get()
		if !ok {
			continue
		}
		if !header {
			fmt.Fprintln(w, "\nHyperparameters:")
			header = true
		}
		fmt.Fprintf(w, "  %-10s %d\n", fld.label+":", n)
	}
	if tok, ok := f.TokenizerModel(); ok {
		if !header {
			fmt.Fprintln(w, "\nHyperparameters:")
		}
		fmt.Fprintf(w, "  %-10s %s\n", "tokenizer:", tok)
	}
}

func writeMetadata(w io.Writer, rows []metadataRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "\nMetadata (%d):\n", len(rows))
	for _, r := range rows {
		fmt.Fprintf(w, "  %-44s %-6s %s\n", r.Key, r.Type, r.Value)
	}
}

func writeTensorTable(w io.Writer, rows []tensorRow) {
	for _, r := range rows {
		t := gguf.TensorInfo{Dims: r.Dims}
		fmt.Fprintf(w, "  %-48s %-7s %-20s %10s\n", r.Name, r.Type, t.DimsString(), gguf.FormatSize(r.Size))
	}
}

func writeByType(w io.Writer, f *gguf.File) {
	groups := f.TensorsByType()
	types := make([]gguf.TensorType, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	slices.Sort(types)
	fmt.Fprintln(w, "\nBy type:")
	for _, t := range types {
		fmt.Fprintf(w, "  %s (%d)\n", t, len(groups[t]))
		for _, ti := range groups[t] {
			fmt.Fprintf(w, "    %s %s\n", ti.Name, ti.DimsString())
		}
	}
}
