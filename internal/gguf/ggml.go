package gguf

import (
	"fmt"
	"math/bits"
	"strings"
)

// TensorType is the GGML element encoding of a tensor (ggml_type).
type TensorType uint32

const (
	GGMLTypeF32     TensorType = 0
	GGMLTypeF16     TensorType = 1
	GGMLTypeQ4_0    TensorType = 2
	GGMLTypeQ4_1    TensorType = 3
	GGMLTypeQ5_0    TensorType = 6
	GGMLTypeQ5_1    TensorType = 7
	GGMLTypeQ8_0    TensorType = 8
	GGMLTypeQ8_1    TensorType = 9
	GGMLTypeQ2_K    TensorType = 10
	GGMLTypeQ3_K    TensorType = 11
	GGMLTypeQ4_K    TensorType = 12
	GGMLTypeQ5_K    TensorType = 13
	GGMLTypeQ6_K    TensorType = 14
	GGMLTypeQ8_K    TensorType = 15
	GGMLTypeIQ2_XXS TensorType = 16
	GGMLTypeIQ2_XS  TensorType = 17
	GGMLTypeIQ3_XXS TensorType = 18
	GGMLTypeIQ1_S   TensorType = 19
	GGMLTypeIQ4_NL  TensorType = 20
	GGMLTypeIQ3_S   TensorType = 21
	GGMLTypeIQ2_S   TensorType = 22
	GGMLTypeIQ4_XS  TensorType = 23
	GGMLTypeI8      TensorType = 24
	GGMLTypeI16     TensorType = 25
	GGMLTypeI32     TensorType = 26
	GGMLTypeI64     TensorType = 27
	GGMLTypeF64     TensorType = 28
	GGMLTypeIQ1_M   TensorType = 29
	GGMLTypeBF16    TensorType = 30
	GGMLTypeQ4_0_44 TensorType = 31
	GGMLTypeQ4_0_48 TensorType = 32
	GGMLTypeQ4_0_88 TensorType = 33
	GGMLTypeTQ1_0   TensorType = 34
	GGMLTypeTQ2_0   TensorType = 35
)

const (
	qk    = 32
	qkK   = 256
	nTags = 36
)

type tensorTypeInfo struct {
	name      string
	blockSize uint64
	typeSize  uint64 // bytes per block
}

// tensorTypes is indexed by wire tag. Retired tags (4, 5) have a zero
// blockSize and decode as unknown. Block and type sizes are ggml's own
// (block_q4_0 and friends), not a flat bytes-per-element approximation.
var tensorTypes = [nTags]tensorTypeInfo{
	GGMLTypeF32:     {"F32", 1, 4},
	GGMLTypeF16:     {"F16", 1, 2},
	GGMLTypeQ4_0:    {"Q4_0", qk, 2 + qk/2},
	GGMLTypeQ4_1:    {"Q4_1", qk, 2 + 2 + qk/2},
	GGMLTypeQ5_0:    {"Q5_0", qk, 2 + 4 + qk/2},
	GGMLTypeQ5_1:    {"Q5_1", qk, 2 + 2 + 4 + qk/2},
	GGMLTypeQ8_0:    {"Q8_0", qk, 2 + qk},
	GGMLTypeQ8_1:    {"Q8_1", qk, 2 + 2 + qk},
	GGMLTypeQ2_K:    {"Q2_K", qkK, qkK/16 + qkK/4 + 2 + 2},
	GGMLTypeQ3_K:    {"Q3_K", qkK, qkK/8 + qkK/4 + 12 + 2},
	GGMLTypeQ4_K:    {"Q4_K", qkK, 2 + 2 + 12 + qkK/2},
	GGMLTypeQ5_K:    {"Q5_K", qkK, 2 + 2 + 12 + qkK/8 + qkK/2},
	GGMLTypeQ6_K:    {"Q6_K", qkK, qkK/2 + qkK/4 + qkK/16 + 2},
	GGMLTypeQ8_K:    {"Q8_K", qkK, 4 + qkK + 2*qkK/16},
	GGMLTypeIQ2_XXS: {"IQ2_XXS", qkK, 2 + 2*qkK/8},
	GGMLTypeIQ2_XS:  {"IQ2_XS", qkK, 2 + 2*qkK/8 + qkK/32},
	GGMLTypeIQ3_XXS: {"IQ3_XXS", qkK, 2 + qkK/4 + qkK/8},
	GGMLTypeIQ1_S:   {"IQ1_S", qkK, 2 + qkK/8 + qkK/16},
	GGMLTypeIQ4_NL:  {"IQ4_NL", qk, 2 + qk/2},
	GGMLTypeIQ3_S:   {"IQ3_S", qkK, 2 + qkK/4 + qkK/8 + qkK/32 + 4},
	GGMLTypeIQ2_S:   {"IQ2_S", qkK, 2 + qkK/4 + qkK/16},
	GGMLTypeIQ4_XS:  {"IQ4_XS", qkK, 2 + 2 + qkK/2 + qkK/64},
	GGMLTypeI8:      {"I8", 1, 1},
	GGMLTypeI16:     {"I16", 1, 2},
	GGMLTypeI32:     {"I32", 1, 4},
	GGMLTypeI64:     {"I64", 1, 8},
	GGMLTypeF64:     {"F64", 1, 8},
	GGMLTypeIQ1_M:   {"IQ1_M", qkK, qkK/8 + qkK/16 + qkK/32},
	GGMLTypeBF16:    {"BF16", 1, 2},
	GGMLTypeQ4_0_44: {"Q4_0_4_4", qk, 2 + qk/2},
	GGMLTypeQ4_0_48: {"Q4_0_4_8", qk, 2 + qk/2},
	GGMLTypeQ4_0_88: {"Q4_0_8_8", qk, 2 + qk/2},
	GGMLTypeTQ1_0:   {"TQ1_0", qkK, 2 + (qkK-4*qkK/64)/5 + qkK/64},
	GGMLTypeTQ2_0:   {"TQ2_0", qkK, 2 + qkK/4},
}

// TensorTypes lists every recognised element type in tag order.
func TensorTypes() []TensorType {
	out := make([]TensorType, 0, nTags)
	for tag := range tensorTypes {
		if t := TensorType(tag); t.Valid() {
			out = append(out, t)
		}
	}
	return out
}

// LookupTensorType maps a wire tag onto the catalog.
func LookupTensorType(tag uint32) (TensorType, error) {
	t := TensorType(tag)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: ggml type %d", ErrUnknownType, tag)
	}
	return t, nil
}

// ParseTensorType is the inverse of String; matching is case-insensitive.
func ParseTensorType(s string) (TensorType, error) {
	for _, t := range TensorTypes() {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: ggml type %q", ErrUnknownType, s)
}

func (t TensorType) info() tensorTypeInfo {
	if uint32(t) >= nTags {
		return tensorTypeInfo{}
	}
	return tensorTypes[t]
}

func (t TensorType) Valid() bool {
	return t.info().blockSize != 0
}

func (t TensorType) String() string {
	if i := t.info(); i.blockSize != 0 {
		return i.name
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// BlockSize is the number of elements per storage block; 1 for dense types.
func (t TensorType) BlockSize() uint64 {
	return t.info().blockSize
}

// TypeSize is the number of bytes per storage block.
func (t TensorType) TypeSize() uint64 {
	return t.info().typeSize
}

// BytesPerElement is the nominal storage cost of one element. It is
// fractional for most quantized types.
func (t TensorType) BytesPerElement() float64 {
	i := t.info()
	if i.blockSize == 0 {
		return 0
	}
	return float64(i.typeSize) / float64(i.blockSize)
}

func (t TensorType) IsQuantized() bool {
	return t.info().blockSize > 1
}

// Size is the storage size of n elements. Quantized types round n up to
// whole blocks. It returns 0 when the size does not fit in a uint64;
// descriptors accepted by Decode never do.
func (t TensorType) Size(n uint64) uint64 {
	size, _ := t.checkedSize(n)
	return size
}

// checkedSize is Size with overflow reported.
func (t TensorType) checkedSize(n uint64) (uint64, bool) {
	i := t.info()
	if i.blockSize == 0 {
		return 0, true
	}
	blocks := n / i.blockSize
	if n%i.blockSize != 0 {
		blocks++
	}
	hi, lo := bits.Mul64(blocks, i.typeSize)
	if hi != 0 {
		return 0, false
	}
	return lo, true
}

// FileType is the general.file_type value (llama_ftype): the dominant
// quantization of a whole model file.
type FileType uint32

var fileTypeNames = map[FileType]string{
	0:  "F32",
	1:  "F16",
	2:  "Q4_0",
	3:  "Q4_1",
	4:  "Q4_1_SOME_F16",
	7:  "Q8_0",
	8:  "Q5_0",
	9:  "Q5_1",
	10: "Q2_K",
	11: "Q3_K_S",
	12: "Q3_K_M",
	13: "Q3_K_L",
	14: "Q4_K_S",
	15: "Q4_K_M",
	16: "Q5_K_S",
	17: "Q5_K_M",
	18: "Q6_K",
	19: "IQ2_XXS",
	20: "IQ2_XS",
	21: "Q2_K_S",
	22: "IQ3_XS",
	23: "IQ3_XXS",
	24: "IQ1_S",
	25: "IQ4_NL",
	26: "IQ3_S",
	27: "IQ3_M",
	28: "IQ2_S",
	29: "IQ2_M",
	30: "IQ4_XS",
	31: "IQ1_M",
	32: "BF16",
	33: "Q4_0_4_4",
	34: "Q4_0_4_8",
	35: "Q4_0_8_8",
	36: "TQ1_0",
	37: "TQ2_0",
}

func (ft FileType) String() string {
	if s, ok := fileTypeNames[ft]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint32(ft))
}
