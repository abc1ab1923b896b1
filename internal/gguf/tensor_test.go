package gguf

import (
	"bytes"
	"errors"
	"testing"
)

func TestLayerNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want int
	}{
		{"blk.7.attn_q.weight", 7},
		{"blk.0.ffn_up.bias", 0},
		{"output.weight", -1},
		{"token_embd.weight", -1},
		{"blk.x.attn_q.weight", -1},
		{"blk", -1},
		{"enc.blk.3.blk.4.weight", 3},
		{"blk.x.blk.12.weight", 12},
		{"vblk.5.weight", -1},
	}
	for _, tc := range tests {
		if got := (TensorInfo{Name: tc.name}).LayerNumber(); got != tc.want {
			t.Errorf("LayerNumber(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestWeightAndBias(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		weight, bias bool
	}{
		{"blk.7.attn_q.weight", true, false},
		{"output.weight", true, false},
		{"blk.1.attn_q.bias", false, true},
		{"rope_freqs", false, false},
		{"weight", false, false},
	}
	for _, tc := range tests {
		ti := TensorInfo{Name: tc.name}
		if ti.IsWeight() != tc.weight || ti.IsBias() != tc.bias {
			t.Errorf("%q: IsWeight=%v IsBias=%v", tc.name, ti.IsWeight(), ti.IsBias())
		}
	}
}

func TestTensorInfoSize(t *testing.T) {
	t.Parallel()
	ti := TensorInfo{Name: "t.weight", Dims: []uint64{2, 3}, Type: GGMLTypeF32}
	if ti.Elements() != 6 || ti.Size() != 24 {
		t.Fatalf("elements=%d size=%d", ti.Elements(), ti.Size())
	}
	if got := ti.DimsString(); got != "[2x3]" {
		t.Fatalf("DimsString = %q", got)
	}
	q := TensorInfo{Name: "blk.0.ffn_down.weight", Dims: []uint64{11008, 4096}, Type: GGMLTypeQ6_K}
	if got, want := q.Size(), uint64(11008*4096/256*210); got != want {
		t.Fatalf("Q6_K size = %d, want %d", got, want)
	}
}

func TestReadTensorInfo(t *testing.T) {
	t.Parallel()
	want := TensorInfo{Name: "blk.3.attn_k.weight", Dims: []uint64{4096, 1024}, Type: GGMLTypeQ4_K, Offset: 1 << 20}
	data := newEncoder().tensor(want).Bytes()
	r := NewReader(bytes.NewReader(data))
	got, err := readTensorInfo(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != want.Name || got.Type != want.Type || got.Offset != want.Offset || got.DimsString() != want.DimsString() {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadTensorInfoErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty name", newEncoder().str("").u32(1).u64(1).i32(0).u64(0).Bytes(), ErrInvariant},
		{"zero dims", newEncoder().str("a").u32(0).i32(0).u64(0).Bytes(), ErrInvariant},
		{"too many dims", newEncoder().str("a").u32(MaxDims + 1).Bytes(), ErrTooLarge},
		{"element overflow", newEncoder().str("a").u32(2).u64(1 << 40).u64(1 << 40).i32(0).u64(0).Bytes(), ErrTooLarge},
		{"dense size overflow", newEncoder().tensor(TensorInfo{Name: "big.weight", Dims: []uint64{1 << 61}, Type: GGMLTypeF64}).Bytes(), ErrOverflow},
		{"block size overflow", newEncoder().tensor(TensorInfo{Name: "q.weight", Dims: []uint64{1<<63 - 1, 2}, Type: GGMLTypeQ4_0}).Bytes(), ErrOverflow},
		{"retired type", newEncoder().str("a").u32(1).u64(8).i32(4).u64(0).Bytes(), ErrUnknownType},
		{"type out of range", newEncoder().str("a").u32(1).u64(8).i32(36).u64(0).Bytes(), ErrUnknownType},
		{"negative type", newEncoder().str("a").u32(1).u64(8).i32(-1).u64(0).Bytes(), ErrUnknownType},
		{"truncated dims", newEncoder().str("a").u32(3).u64(8).Bytes(), ErrEndOfStream},
		{"missing offset", newEncoder().str("a").u32(1).u64(8).i32(0).Bytes(), ErrEndOfStream},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := readTensorInfo(NewReader(bytes.NewReader(tc.data)))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
