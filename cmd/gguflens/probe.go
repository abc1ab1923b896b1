package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gguflens/internal/gguf"
)

func probeCmd() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Report whether files are GGUF and which version",
		ArgsUsage: "<file>...",
		Action: func(ctx context.Context, c *cli.Command) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return cli.Exit("error: at least one file is required", 1)
			}
			if bad := probeFiles(os.Stdout, paths); bad > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// probeFiles prints one line per path and returns how many were not GGUF.
func probeFiles(w io.Writer, paths []string) int {
	bad := 0
	for _, p := range paths {
		version, err := probeFile(p)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", p, err)
			bad++
			continue
		}
		fmt.Fprintf(w, "%s: GGUF v%d\n", p, version)
	}
	return bad
}

func probeFile(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return gguf.PeekVersion(f)
}
