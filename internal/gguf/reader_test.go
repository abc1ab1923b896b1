package gguf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestReaderScalarsLittleEndian(t *testing.T) {
	t.Parallel()
	e := newEncoder().
		u8(0xfe).
		u8(0x80).
		u16(0xbeef).
		u16(0xff38).
		u32(0xdeadbeef).
		i32(-7).
		u64(1 << 40).
		u64(math.MaxUint64).
		u32(math.Float32bits(1.5)).
		u64(math.Float64bits(-2.25)).
		u8(2)
	r := NewReader(bytes.NewReader(e.Bytes()))

	if v, err := r.U8(); err != nil || v != 0xfe {
		t.Fatalf("U8 = %d, %v", v, err)
	}
	if v, err := r.I8(); err != nil || v != -128 {
		t.Fatalf("I8 = %d, %v", v, err)
	}
	if v, err := r.U16(); err != nil || v != 0xbeef {
		t.Fatalf("U16 = %#x, %v", v, err)
	}
	if v, err := r.I16(); err != nil || v != -200 {
		t.Fatalf("I16 = %d, %v", v, err)
	}
	if v, err := r.U32(); err != nil || v != 0xdeadbeef {
		t.Fatalf("U32 = %#x, %v", v, err)
	}
	if v, err := r.I32(); err != nil || v != -7 {
		t.Fatalf("I32 = %d, %v", v, err)
	}
	if v, err := r.U64(); err != nil || v != 1<<40 {
		t.Fatalf("U64 = %d, %v", v, err)
	}
	if v, err := r.I64(); err != nil || v != -1 {
		t.Fatalf("I64 = %d, %v", v, err)
	}
	if v, err := r.F32(); err != nil || v != 1.5 {
		t.Fatalf("F32 = %v, %v", v, err)
	}
	if v, err := r.F64(); err != nil || v != -2.25 {
		t.Fatalf("F64 = %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || !v {
		t.Fatalf("Bool(2) = %v, %v; any non-zero byte is true", v, err)
	}
	if got, want := r.Offset(), int64(e.Len()); got != want {
		t.Fatalf("Offset = %d, want %d", got, want)
	}
}

func TestReaderBigEndian(t *testing.T) {
	t.Parallel()
	e := newEncoder()
	e.order = binary.BigEndian
	e.u16(0x0102).u32(0x03040506).u64(0x0708)

	r := NewReader(bytes.NewReader(e.Bytes()), WithByteOrder(binary.BigEndian))
	if r.ByteOrder() != binary.BigEndian {
		t.Fatal("byte order option ignored")
	}
	a, _ := r.U16()
	b, _ := r.U32()
	c, err := r.U64()
	if err != nil {
		t.Fatal(err)
	}
	if a != 0x0102 || b != 0x03040506 || c != 0x0708 {
		t.Fatalf("got %#x %#x %#x", a, b, c)
	}
}

func TestReaderU64Overflow(t *testing.T) {
	t.Parallel()
	r := NewReader(bytes.NewReader(newEncoder().u64(1 << 63).Bytes()))
	_, err := r.U64()
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Offset != 0 {
		t.Fatalf("expected DecodeError at offset 0, got %#v", err)
	}
}

func TestReaderEndOfStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		read func(*Reader) error
	}{
		{"u8 empty", nil, func(r *Reader) error { _, err := r.U8(); return err }},
		{"u16 short", []byte{1}, func(r *Reader) error { _, err := r.U16(); return err }},
		{"u32 short", []byte{1, 2, 3}, func(r *Reader) error { _, err := r.U32(); return err }},
		{"u64 short", []byte{1, 2, 3, 4, 5, 6, 7}, func(r *Reader) error { _, err := r.U64(); return err }},
		{"f64 short", []byte{1}, func(r *Reader) error { _, err := r.F64(); return err }},
		{"bytes short", []byte{1, 2}, func(r *Reader) error { _, err := r.Bytes(3); return err }},
		{"skip short", []byte{1, 2}, func(r *Reader) error { return r.Skip(3) }},
		{"string body short", newEncoder().u64(10).raw([]byte("abc")).Bytes(),
			func(r *Reader) error { _, err := r.ReadString(); return err }},
		{"string prefix short", []byte{5, 0, 0},
			func(r *Reader) error { _, err := r.ReadString(); return err }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.read(NewReader(bytes.NewReader(tc.data)))
			if !errors.Is(err, ErrEndOfStream) {
				t.Fatalf("expected ErrEndOfStream, got %v", err)
			}
		})
	}
}

func TestReaderLimit(t *testing.T) {
	t.Parallel()
	data := newEncoder().u64(1 << 40).raw([]byte("tail")).Bytes()
	r := NewReader(bytes.NewReader(data), WithLimit(int64(len(data))))
	_, err := r.ReadString()
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream for length beyond limit, got %v", err)
	}
	if r.Offset() != 8 {
		t.Fatalf("limit check must not consume the body, offset = %d", r.Offset())
	}
}

func TestReaderStringWithoutLimitTooLarge(t *testing.T) {
	t.Parallel()
	r := NewReader(bytes.NewReader(newEncoder().u64(1 << 40).Bytes()))
	if _, err := r.ReadString(); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestReaderString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"ascii", "llama", "llama"},
		{"multibyte", "häst 🦙", "häst 🦙"},
		{"invalid byte", "a\xffb", "a�b"},
		{"invalid run", "a\xff\xfeb", "a�b"},
		{"truncated rune", "ok\xe2\x82", "ok�"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			data := newEncoder().str(tc.raw).Bytes()
			r := NewReader(bytes.NewReader(data))
			got, err := r.ReadString()
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if r.Offset() != int64(len(data)) {
				t.Fatalf("offset %d, want %d", r.Offset(), len(data))
			}
		})
	}
}

func TestReaderLargeBytes(t *testing.T) {
	t.Parallel()
	payload := bytes.Repeat([]byte("x"), directReadMax*3+7)
	r := NewReader(bytes.NewReader(payload))
	got, err := r.Bytes(uint64(len(payload)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch")
	}

	r = NewReader(strings.NewReader("short"))
	if _, err := r.Bytes(directReadMax + 1); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestReaderAlign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		consumed int
		align    int64
		want     int64
	}{
		{0, 32, 0},
		{1, 32, 32},
		{31, 32, 32},
		{32, 32, 32},
		{33, 32, 64},
		{5, 8, 8},
		{7, 1, 7},
	}
	for _, tc := range tests {
		data := bytes.Repeat([]byte{0xaa}, 128)
		r := NewReader(bytes.NewReader(data))
		if err := r.Skip(int64(tc.consumed)); err != nil {
			t.Fatal(err)
		}
		if err := r.Align(tc.align); err != nil {
			t.Fatalf("Align(%d) after %d: %v", tc.align, tc.consumed, err)
		}
		if r.Offset() != tc.want {
			t.Errorf("Align(%d) after %d: offset %d, want %d", tc.align, tc.consumed, r.Offset(), tc.want)
		}
	}

	r := NewReader(bytes.NewReader([]byte{1, 2, 3}))
	_, _ = r.U8()
	if err := r.Align(32); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream when padding is missing, got %v", err)
	}
	if err := NewReader(bytes.NewReader(nil)).Align(0); err == nil {
		t.Fatal("expected error for zero alignment")
	}
}

func TestPadding(t *testing.T) {
	t.Parallel()
	for off := int64(0); off < 100; off++ {
		p := padding(off, 32)
		if p < 0 || p >= 32 || (off+p)%32 != 0 {
			t.Fatalf("padding(%d, 32) = %d", off, p)
		}
	}
}
