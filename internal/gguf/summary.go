package gguf

import (
	"fmt"
	"slices"
	"strings"

	"github.com/docker/go-units"
)

// TypeCount is the number of tensors of one element type and their bytes.
type TypeCount struct {
	Type    string `json:"type"`
	Tensors int    `json:"tensors"`
	Bytes   uint64 `json:"bytes"`
}

// Summary is the presentation form of a decoded file shared by the CLI and
// the HTTP service.
type Summary struct {
	Version       uint32 `json:"version"`
	Architecture  string `json:"architecture,omitempty"`
	Name          string `json:"name,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	TensorCount   uint64 `json:"tensor_count"`
	MetadataCount int    `json:"metadata_count"`
	Alignment     uint64 `json:"alignment"`

	// The fields below are zero for a metadata-only summary.
	DataOffset      uint64      `json:"data_offset,omitempty"`
	Parameters      uint64      `json:"parameters,omitempty"`
	ParametersHuman string      `json:"parameters_human,omitempty"`
	Size            uint64      `json:"size,omitempty"`
	SizeHuman       string      `json:"size_human,omitempty"`
	BitsPerWeight   float64     `json:"bits_per_weight,omitempty"`
	Layers          int         `json:"layers,omitempty"`
	Types           []TypeCount `json:"types,omitempty"`
	MetadataOnly    bool        `json:"metadata_only,omitempty"`
}

// Summarize collects the headline numbers of f.
func Summarize(f *File) Summary {
	s := summarizeMetadata(f.Header, f.KV)
	s.Alignment = f.Alignment
	s.DataOffset = f.DataOffset
	s.Parameters = f.TotalParameters()
	s.ParametersHuman = FormatParameters(s.Parameters)
	s.Size = f.TotalSize()
	s.SizeHuman = FormatSize(s.Size)
	s.BitsPerWeight = f.BitsPerWeight()
	s.Layers = len(f.Layers())

	for t, group := range f.TensorsByType() {
		tc := TypeCount{Type: t.String(), Tensors: len(group)}
		for _, ti := range group {
			tc.Bytes += ti.Size()
		}
		s.Types = append(s.Types, tc)
	}
	slices.SortFunc(s.Types, func(a, b TypeCount) int {
		if a.Bytes != b.Bytes {
			if a.Bytes > b.Bytes {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Type, b.Type)
	})
	return s
}

// SummarizeView is Summarize for a metadata-only decode.
func SummarizeView(v *MetadataView) Summary {
	s := summarizeMetadata(v.Header, v.KV)
	s.Alignment = v.Alignment()
	s.MetadataOnly = true
	return s
}

func summarizeMetadata(h Header, kv Metadata) Summary {
	s := Summary{
		Version:       h.Version,
		TensorCount:   h.TensorCount,
		MetadataCount: len(kv),
	}
	s.Architecture, _ = kv.Architecture()
	s.Name, _ = kv.String(KeyName)
	if ft, ok := kv.FileType(); ok {
		s.FileType = ft.String()
	}
	return s
}

// FormatParameters renders a parameter count the way model cards do,
// e.g. "6.74 B".
func FormatParameters(n uint64) string {
	return units.CustomSize("%.2f%s", float64(n), 1000.0, []string{"", " K", " M", " B", " T"})
}

func FormatSize(n uint64) string {
	return units.HumanSizeWithPrecision(float64(n), 3)
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "GGUF v%d\n", s.Version)
	if s.Name != "" {
		fmt.Fprintf(&b, "  name:          %s\n", s.Name)
	}
	if s.Architecture != "" {
		fmt.Fprintf(&b, "  architecture:  %s\n", s.Architecture)
	}
	if s.FileType != "" {
		fmt.Fprintf(&b, "  file type:     %s\n", s.FileType)
	}
	fmt.Fprintf(&b, "  tensors:       %d\n", s.TensorCount)
	fmt.Fprintf(&b, "  metadata keys: %d\n", s.MetadataCount)
	fmt.Fprintf(&b, "  alignment:     %d\n", s.Alignment)
	if s.MetadataOnly {
		return b.String()
	}
	fmt.Fprintf(&b, "  data offset:   %d\n", s.DataOffset)
	fmt.Fprintf(&b, "  parameters:    %s (%d)\n", s.ParametersHuman, s.Parameters)
	fmt.Fprintf(&b, "  size:          %s (%d bytes)\n", s.SizeHuman, s.Size)
	fmt.Fprintf(&b, "  bits/weight:   %.2f\n", s.BitsPerWeight)
	if s.Layers > 0 {
		fmt.Fprintf(&b, "  layers:        %d\n", s.Layers)
	}
	for _, t := range s.Types {
		fmt.Fprintf(&b, "    %-10s %5d tensors  %s\n", t.Type, t.Tensors, FormatSize(t.Bytes))
	}
	return b.String()
}
