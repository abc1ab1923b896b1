package gguf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

// directReadMax is the largest run Bytes allocates up front. Longer runs
// grow as bytes actually arrive so a lying length prefix on a short stream
// cannot force a huge allocation.
const directReadMax = 64 << 10

// maxStringLen bounds a single length-prefixed string when the source size
// is unknown.
const maxStringLen = 1 << 30

// Reader is a forward-only, position-tracking decoder of GGUF primitives.
// It is not safe for concurrent use.
type Reader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	off   int64
	limit int64
	buf   [8]byte
}

type ReaderOption func(*Reader)

// WithByteOrder sets the order used for multi-byte primitives. GGUF is
// little-endian on the wire, which is the default.
func WithByteOrder(order binary.ByteOrder) ReaderOption {
	return func(r *Reader) {
		if order != nil {
			r.order = order
		}
	}
}

// WithLimit declares the total number of bytes the source can deliver.
// Reads past the limit fail without touching the source.
func WithLimit(size int64) ReaderOption {
	return func(r *Reader) {
		if size > 0 {
			r.limit = size
		}
	}
}

func NewReader(rd io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		r:     bufio.NewReader(rd),
		order: binary.LittleEndian,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int64 { return r.off }

// ByteOrder reports the order used for multi-byte reads.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }

func (r *Reader) remaining() int64 {
	if r.limit == 0 {
		return -1
	}
	return r.limit - r.off
}

func (r *Reader) checkAvailable(n int64) error {
	if rem := r.remaining(); rem >= 0 && n > rem {
		return newDecodeError(ErrEndOfStream, r.off, "need %d bytes, %d remain", n, rem)
	}
	return nil
}

func (r *Reader) wrapReadErr(err error, want, got int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newDecodeError(ErrEndOfStream, r.off, "need %d bytes, got %d", want, got)
	}
	return fmt.Errorf("read at offset %d: %w", r.off, err)
}

// fill reads exactly len(p) bytes into p.
func (r *Reader) fill(p []byte) error {
	if err := r.checkAvailable(int64(len(p))); err != nil {
		return err
	}
	n, err := io.ReadFull(r.r, p)
	if err != nil {
		return r.wrapReadErr(err, int64(len(p)), int64(n))
	}
	r.off += int64(n)
	return nil
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n uint64) ([]byte, error) {
	if n > math.MaxInt64 {
		return nil, newDecodeError(ErrTooLarge, r.off, "byte run of %d", n)
	}
	if err := r.checkAvailable(int64(n)); err != nil {
		return nil, err
	}
	if n <= directReadMax {
		b := make([]byte, n)
		if err := r.fill(b); err != nil {
			return nil, err
		}
		return b, nil
	}
	var buf bytes.Buffer
	got, err := io.CopyN(&buf, r.r, int64(n))
	if err != nil {
		return nil, r.wrapReadErr(err, int64(n), got)
	}
	r.off += got
	return buf.Bytes(), nil
}

// Skip discards n bytes without inspecting them.
func (r *Reader) Skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("invalid skip length %d", n)
	}
	if err := r.checkAvailable(n); err != nil {
		return err
	}
	got, err := r.r.Discard(int(n))
	if err != nil {
		return r.wrapReadErr(err, n, int64(got))
	}
	r.off += int64(got)
	return nil
}

// Align skips forward to the next multiple of n. The skipped bytes are
// discarded, not validated.
func (r *Reader) Align(n int64) error {
	if n <= 0 {
		return fmt.Errorf("invalid alignment %d", n)
	}
	return r.Skip(padding(r.off, n))
}

func padding(off, n int64) int64 {
	return (n - off%n) % n
}

func (r *Reader) U8() (uint8, error) {
	if err := r.fill(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) U16() (uint16, error) {
	if err := r.fill(r.buf[:2]); err != nil {
		return 0, err
	}
	return r.order.Uint16(r.buf[:2]), nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) U32() (uint32, error) {
	if err := r.fill(r.buf[:4]); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.buf[:4]), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// U64 reads an unsigned 64-bit value. Values with the top bit set are
// rejected with ErrOverflow so every decoded count and offset also fits
// an int64; this is a deliberate limit, not truncation.
func (r *Reader) U64() (uint64, error) {
	start := r.off
	v, err := r.raw64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, newDecodeError(ErrOverflow, start, "value %#x", v)
	}
	return v, nil
}

func (r *Reader) I64() (int64, error) {
	v, err := r.raw64()
	return int64(v), err
}

func (r *Reader) raw64() (uint64, error) {
	if err := r.fill(r.buf[:8]); err != nil {
		return 0, err
	}
	return r.order.Uint64(r.buf[:8]), nil
}

func (r *Reader) F32() (float32, error) {
	u, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

func (r *Reader) F64() (float64, error) {
	u, err := r.raw64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// Bool treats any non-zero byte as true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

// ReadString reads a u64 length followed by that many bytes. Invalid UTF-8
// sequences are replaced with U+FFFD rather than rejected.
func (r *Reader) ReadString() (string, error) {
	start := r.off
	n, err := r.U64()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if r.limit == 0 && n > maxStringLen {
		return "", newDecodeError(ErrTooLarge, start, "string length %d", n)
	}
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), nil
	}
	return string(b), nil
}
