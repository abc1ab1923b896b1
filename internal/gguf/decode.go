package gguf

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/samcharles93/gguflens/internal/logger"
)

type decodeConfig struct {
	order     binary.ByteOrder
	alignment uint64
	size      int64
	log       logger.Logger
}

type DecodeOption func(*decodeConfig)

// WithAlignment forces the tensor data alignment, ignoring general.alignment.
// Decode rejects n unless it is zero (no override) or a power of two.
func WithAlignment(n uint64) DecodeOption {
	return func(c *decodeConfig) { c.alignment = n }
}

// WithOrder decodes a non-standard big-endian file.
func WithOrder(order binary.ByteOrder) DecodeOption {
	return func(c *decodeConfig) { c.order = order }
}

// WithSize declares the source length. Reads past it fail with
// ErrEndOfStream without touching the source.
func WithSize(n int64) DecodeOption {
	return func(c *decodeConfig) { c.size = n }
}

func WithLogger(l logger.Logger) DecodeOption {
	return func(c *decodeConfig) { c.log = l }
}

func newDecodeConfig(opts []DecodeOption) decodeConfig {
	c := decodeConfig{order: binary.LittleEndian}
	for _, opt := range opts {
		opt(&c)
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	return c
}

func (c decodeConfig) validate() error {
	if c.alignment > 0 && (c.alignment&(c.alignment-1) != 0 || c.alignment > math.MaxInt64) {
		return newDecodeError(ErrInvariant, 0, "forced alignment %d is not a power of two within int64 range", c.alignment)
	}
	return nil
}

func (c decodeConfig) reader(rd io.Reader) *Reader {
	return NewReader(rd, WithByteOrder(c.order), WithLimit(c.size))
}

// Decode reads the header, the metadata table and every tensor descriptor
// from rd, then skips to the aligned start of tensor data. Tensor payloads
// are never read.
func Decode(rd io.Reader, opts ...DecodeOption) (*File, error) {
	cfg := newDecodeConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := cfg.reader(rd)

	header, kv, err := decodePreamble(r, cfg)
	if err != nil {
		return nil, err
	}

	tensors := make([]TensorInfo, 0, min(header.TensorCount, 1<<14))
	for i := range header.TensorCount {
		t, err := readTensorInfo(r)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		tensors = append(tensors, t)
	}
	params, size, ok := tensorTotals(tensors)
	if !ok {
		return nil, newDecodeError(ErrOverflow, r.Offset(), "tensor totals overflow across %d tensors", len(tensors))
	}

	alignment := uint64(DefaultAlignment)
	if a, ok := kv.alignment(); ok {
		alignment = a
	} else if v, present := kv[KeyAlignment]; present {
		cfg.log.Debug("ignoring invalid alignment", "key", KeyAlignment, "value", v.String())
	}
	if cfg.alignment > 0 {
		alignment = cfg.alignment
	}
	if err := r.Align(int64(alignment)); err != nil {
		return nil, fmt.Errorf("align tensor data: %w", err)
	}

	cfg.log.Debug("decoded tensor descriptors",
		"tensors", len(tensors),
		"parameters", params,
		"bytes", size,
		"alignment", alignment,
		"data_offset", r.Offset(),
	)
	return NewFile(header, kv, tensors, alignment, uint64(r.Offset()))
}

// DecodeContext is Decode with cancellation checked between reads of the
// underlying source.
func DecodeContext(ctx context.Context, rd io.Reader, opts ...DecodeOption) (*File, error) {
	return Decode(contextReader{ctx: ctx, r: rd}, opts...)
}

// DecodeHeaderAndMetadataContext is DecodeHeaderAndMetadata with
// cancellation checked between reads of the underlying source.
func DecodeHeaderAndMetadataContext(ctx context.Context, rd io.Reader, opts ...DecodeOption) (*MetadataView, error) {
	return DecodeHeaderAndMetadata(contextReader{ctx: ctx, r: rd}, opts...)
}

// DecodeHeaderAndMetadata stops after the metadata table. The view keeps
// the file's real tensor count; no descriptors are read.
func DecodeHeaderAndMetadata(rd io.Reader, opts ...DecodeOption) (*MetadataView, error) {
	cfg := newDecodeConfig(opts)
	r := cfg.reader(rd)

	header, kv, err := decodePreamble(r, cfg)
	if err != nil {
		return nil, err
	}
	return newMetadataView(header, kv)
}

func decodePreamble(r *Reader, cfg decodeConfig) (Header, Metadata, error) {
	header, err := readHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	cfg.log.Debug("read header",
		"version", header.Version,
		"tensors", header.TensorCount,
		"kv", header.KVCount,
	)

	kv := make(Metadata, min(header.KVCount, 1<<12))
	for i := range header.KVCount {
		key, err := r.ReadString()
		if err != nil {
			return Header{}, nil, fmt.Errorf("read key %d: %w", i, err)
		}
		val, err := readValue(r)
		if err != nil {
			return Header{}, nil, fmt.Errorf("read value for %s: %w", key, err)
		}
		if _, dup := kv[key]; dup {
			cfg.log.Debug("duplicate metadata key, keeping last", "key", key)
		}
		kv[key] = val
	}
	return header, kv, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
