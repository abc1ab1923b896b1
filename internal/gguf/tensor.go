package gguf

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// MaxDims bounds the dimension count of a tensor descriptor. GGML tensors
// have at most four.
const MaxDims = 8

// TensorInfo describes one tensor. Offset is relative to File.DataOffset.
type TensorInfo struct {
	Name   string
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

// Elements is the product of Dims.
func (t TensorInfo) Elements() uint64 {
	n := uint64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Size is the byte size of the tensor payload.
func (t TensorInfo) Size() uint64 {
	return t.Type.Size(t.Elements())
}

func (t TensorInfo) IsWeight() bool {
	return strings.HasSuffix(t.Name, ".weight")
}

func (t TensorInfo) IsBias() bool {
	return strings.HasSuffix(t.Name, ".bias")
}

// LayerNumber returns N for names containing the segments "blk.N", or -1.
// The first such pair from the left wins.
func (t TensorInfo) LayerNumber() int {
	parts := strings.Split(t.Name, ".")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] != "blk" {
			continue
		}
		if n, err := strconv.Atoi(parts[i+1]); err == nil {
			return n
		}
	}
	return -1
}

func (t TensorInfo) DimsString() string {
	parts := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		parts[i] = strconv.FormatUint(d, 10)
	}
	return "[" + strings.Join(parts, "x") + "]"
}

func (t TensorInfo) String() string {
	return fmt.Sprintf("%s %s %s off=%d size=%d", t.Name, t.Type, t.DimsString(), t.Offset, t.Size())
}

// checkedElements multiplies dims and reports overflow.
func checkedElements(dims []uint64) (uint64, bool) {
	n := uint64(1)
	for _, d := range dims {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// tensorTotals sums element counts and byte sizes across tensors and
// reports whether either sum overflows.
func tensorTotals(tensors []TensorInfo) (params, size uint64, ok bool) {
	for _, t := range tensors {
		var c1, c2 uint64
		params, c1 = bits.Add64(params, t.Elements(), 0)
		size, c2 = bits.Add64(size, t.Size(), 0)
		if c1 != 0 || c2 != 0 {
			return 0, 0, false
		}
	}
	return params, size, true
}

func readTensorInfo(r *Reader) (TensorInfo, error) {
	off := r.Offset()
	name, err := r.ReadString()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("read tensor name: %w", err)
	}
	if name == "" {
		return TensorInfo{}, newDecodeError(ErrInvariant, off, "empty tensor name")
	}

	off = r.Offset()
	nDim, err := r.U32()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("read tensor dims %s: %w", name, err)
	}
	if nDim == 0 {
		return TensorInfo{}, newDecodeError(ErrInvariant, off, "tensor %s has no dimensions", name)
	}
	if nDim > MaxDims {
		return TensorInfo{}, newDecodeError(ErrTooLarge, off, "tensor %s has %d dimensions", name, nDim)
	}
	dims := make([]uint64, nDim)
	for d := range dims {
		v, err := r.U64()
		if err != nil {
			return TensorInfo{}, fmt.Errorf("read tensor dim %s[%d]: %w", name, d, err)
		}
		dims[d] = v
	}
	elements, ok := checkedElements(dims)
	if !ok {
		return TensorInfo{}, newDecodeError(ErrTooLarge, off, "tensor %s element count overflows", name)
	}

	off = r.Offset()
	tag, err := r.U32()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("read tensor type %s: %w", name, err)
	}
	ttype, err := LookupTensorType(tag)
	if err != nil {
		return TensorInfo{}, newDecodeError(ErrUnknownType, off, "tensor %s has ggml type %d", name, int32(tag))
	}
	if _, ok := ttype.checkedSize(elements); !ok {
		return TensorInfo{}, newDecodeError(ErrOverflow, off, "tensor %s: %d %s elements overflow the byte size", name, elements, ttype)
	}

	offset, err := r.U64()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("read tensor offset %s: %w", name, err)
	}
	return TensorInfo{
		Name:   name,
		Dims:   dims,
		Type:   ttype,
		Offset: offset,
	}, nil
}
