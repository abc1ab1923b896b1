package gguf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"testing"
)

// encoder writes GGUF bytes for test fixtures. The package itself never
// encodes.
type encoder struct {
	buf   bytes.Buffer
	order binary.AppendByteOrder
}

func newEncoder() *encoder {
	return &encoder{order: binary.LittleEndian}
}

func (e *encoder) Bytes() []byte { return e.buf.Bytes() }
func (e *encoder) Len() int      { return e.buf.Len() }

func (e *encoder) raw(p []byte) *encoder {
	e.buf.Write(p)
	return e
}

func (e *encoder) u8(v uint8) *encoder {
	e.buf.WriteByte(v)
	return e
}

func (e *encoder) u16(v uint16) *encoder {
	e.buf.Write(e.order.AppendUint16(nil, v))
	return e
}

func (e *encoder) u32(v uint32) *encoder {
	e.buf.Write(e.order.AppendUint32(nil, v))
	return e
}

func (e *encoder) i32(v int32) *encoder { return e.u32(uint32(v)) }

func (e *encoder) u64(v uint64) *encoder {
	e.buf.Write(e.order.AppendUint64(nil, v))
	return e
}

func (e *encoder) str(s string) *encoder {
	e.u64(uint64(len(s)))
	e.buf.WriteString(s)
	return e
}

func (e *encoder) header(version uint32, tensors, kv uint64) *encoder {
	return e.u32(Magic).u32(version).u64(tensors).u64(kv)
}

func (e *encoder) kv(key string, v Value) *encoder {
	e.str(key)
	return e.value(v)
}

func (e *encoder) value(v Value) *encoder {
	e.i32(int32(v.Type))
	if v.Type == TypeArray {
		arr := v.Value.(ArrayValue)
		e.i32(int32(arr.ElemType))
		e.u64(uint64(len(arr.Values)))
		for _, elem := range arr.Values {
			e.scalar(arr.ElemType, elem)
		}
		return e
	}
	return e.scalar(v.Type, v.Value)
}

func (e *encoder) scalar(t ValueType, v any) *encoder {
	switch t {
	case TypeUint8:
		return e.u8(v.(uint8))
	case TypeInt8:
		return e.u8(uint8(v.(int8)))
	case TypeUint16:
		return e.u16(v.(uint16))
	case TypeInt16:
		return e.u16(uint16(v.(int16)))
	case TypeUint32:
		return e.u32(v.(uint32))
	case TypeInt32:
		return e.i32(v.(int32))
	case TypeUint64:
		return e.u64(v.(uint64))
	case TypeInt64:
		return e.u64(uint64(v.(int64)))
	case TypeFloat32:
		return e.u32(math.Float32bits(v.(float32)))
	case TypeFloat64:
		return e.u64(math.Float64bits(v.(float64)))
	case TypeBool:
		if v.(bool) {
			return e.u8(1)
		}
		return e.u8(0)
	case TypeString:
		return e.str(v.(string))
	default:
		panic(fmt.Sprintf("encoder: cannot write %s as scalar", t))
	}
}

func (e *encoder) tensor(t TensorInfo) *encoder {
	e.str(t.Name)
	e.u32(uint32(len(t.Dims)))
	for _, d := range t.Dims {
		e.u64(d)
	}
	e.i32(int32(t.Type))
	return e.u64(t.Offset)
}

// pad writes zero bytes up to the next multiple of n.
func (e *encoder) pad(n int) *encoder {
	for e.buf.Len()%n != 0 {
		e.buf.WriteByte(0)
	}
	return e
}

type kvPair struct {
	key string
	val Value
}

type fixture struct {
	version uint32
	kv      []kvPair
	tensors []TensorInfo
	align   int
}

// encode renders f followed by alignment padding and returns the bytes
// plus the expected data offset.
func (f fixture) encode(t testing.TB) ([]byte, uint64) {
	t.Helper()
	version := f.version
	if version == 0 {
		version = 3
	}
	align := f.align
	if align == 0 {
		align = DefaultAlignment
	}
	e := newEncoder().header(version, uint64(len(f.tensors)), uint64(len(f.kv)))
	for _, p := range f.kv {
		e.kv(p.key, p.val)
	}
	for _, ti := range f.tensors {
		e.tensor(ti)
	}
	e.pad(align)
	return e.Bytes(), uint64(e.Len())
}

func str(s string) Value   { return Value{Type: TypeString, Value: s} }
func u32(v uint32) Value   { return Value{Type: TypeUint32, Value: v} }
func i32(v int32) Value    { return Value{Type: TypeInt32, Value: v} }
func u64(v uint64) Value   { return Value{Type: TypeUint64, Value: v} }
func f32(v float32) Value  { return Value{Type: TypeFloat32, Value: v} }
func boolean(v bool) Value { return Value{Type: TypeBool, Value: v} }

func strArray(s ...string) Value {
	vals := make([]any, len(s))
	for i, v := range s {
		vals[i] = v
	}
	return Value{Type: TypeArray, Value: ArrayValue{ElemType: TypeString, Values: vals}}
}

// llamaFixture is the minimal model used across the decode tests.
func llamaFixture() fixture {
	return fixture{
		version: 3,
		kv: []kvPair{
			{KeyArchitecture, str("llama")},
			{KeyName, str("example")},
		},
		tensors: []TensorInfo{
			{Name: "t.weight", Dims: []uint64{2, 3}, Type: GGMLTypeF32, Offset: 0},
		},
	}
}
