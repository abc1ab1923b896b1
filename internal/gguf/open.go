package gguf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Open decodes the GGUF file at path. Tensor payloads are never read; the
// file and any mapping are released before Open returns.
func Open(path string, opts ...DecodeOption) (*File, error) {
	var out *File
	err := withSource(path, func(rd io.Reader, size int64) error {
		f, err := Decode(rd, append([]DecodeOption{WithSize(size)}, opts...)...)
		out = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenMetadata decodes only the header and metadata table of the file at
// path.
func OpenMetadata(path string, opts ...DecodeOption) (*MetadataView, error) {
	var out *MetadataView
	err := withSource(path, func(rd io.Reader, size int64) error {
		v, err := DecodeHeaderAndMetadata(rd, append([]DecodeOption{WithSize(size)}, opts...)...)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withSource hands fn a reader over the file at path. The file is mapped
// read-only where mmap is available and streamed otherwise.
func withSource(path string, fn func(io.Reader, int64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return err
	}
	if stat.IsDir() {
		return fmt.Errorf("%s: is a directory", path)
	}
	size := stat.Size()
	if size <= 0 || size > int64(int(^uint(0)>>1)) {
		return fn(f, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// Fallback path that does not require mmap support.
		return fn(f, size)
	}
	defer func() { _ = unix.Munmap(data) }()
	return fn(bytes.NewReader(data), size)
}
