package gguf

import (
	"fmt"
	"io"
)

const (
	// Magic is "GGUF" read as a little-endian uint32.
	Magic uint32 = 0x46554747

	MinVersion uint32 = 1
	MaxVersion uint32 = 3

	DefaultAlignment = 32
)

type Header struct {
	Magic       uint32
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

func (h Header) Valid() bool {
	return h.Magic == Magic && h.Version >= MinVersion && h.Version <= MaxVersion
}

func (h Header) VersionString() string {
	return fmt.Sprintf("v%d", h.Version)
}

func readHeader(r *Reader) (Header, error) {
	magic, err := r.U32()
	if err != nil {
		return Header{}, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return Header{}, newDecodeError(ErrMalformedHeader, 0, "invalid magic %#08x", magic)
	}
	version, err := r.I32()
	if err != nil {
		return Header{}, fmt.Errorf("read version: %w", err)
	}
	if version < int32(MinVersion) || version > int32(MaxVersion) {
		return Header{}, newDecodeError(ErrMalformedHeader, 4, "unsupported version %d", version)
	}
	tensorCount, err := r.U64()
	if err != nil {
		return Header{}, fmt.Errorf("read tensor count: %w", err)
	}
	kvCount, err := r.U64()
	if err != nil {
		return Header{}, fmt.Errorf("read metadata count: %w", err)
	}
	return Header{
		Magic:       magic,
		Version:     uint32(version),
		TensorCount: tensorCount,
		KVCount:     kvCount,
	}, nil
}

// IsGGUF reports whether rd starts with a supported GGUF magic and version.
// It consumes up to eight bytes.
func IsGGUF(rd io.Reader) bool {
	_, err := PeekVersion(rd)
	return err == nil
}

// PeekVersion reads the magic and version only.
func PeekVersion(rd io.Reader) (uint32, error) {
	r := NewReader(io.LimitReader(rd, 8))
	magic, err := r.U32()
	if err != nil {
		return 0, err
	}
	if magic != Magic {
		return 0, newDecodeError(ErrMalformedHeader, 0, "invalid magic %#08x", magic)
	}
	version, err := r.I32()
	if err != nil {
		return 0, err
	}
	if version < int32(MinVersion) || version > int32(MaxVersion) {
		return 0, newDecodeError(ErrMalformedHeader, 4, "unsupported version %d", version)
	}
	return uint32(version), nil
}
