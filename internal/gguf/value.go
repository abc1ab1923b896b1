package gguf

import (
	"fmt"
	"math"
	"strings"
)

// MaxArrayLen bounds the element count of a single metadata array.
const MaxArrayLen = math.MaxInt32

// ValueType is the wire tag of a metadata value.
type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeUint32:
		return "u32"
	case TypeInt32:
		return "i32"
	case TypeUint64:
		return "u64"
	case TypeInt64:
		return "i64"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

func (t ValueType) Valid() bool {
	return t <= TypeFloat64
}

// ArrayValue is the payload of a TypeArray value. Every element has the Go
// type that ElemType decodes to; ElemType is never TypeArray.
type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

func (a ArrayValue) Len() int { return len(a.Values) }

// Value is one decoded metadata value. The dynamic type of Value is fixed
// by Type:
//
//	u8 uint8, i8 int8, u16 uint16, i16 int16, u32 uint32, i32 int32,
//	u64 uint64, i64 int64, f32 float32, f64 float64, bool bool,
//	string string, array ArrayValue.
type Value struct {
	Type  ValueType
	Value any
}

func (v Value) IsString() bool { return v.Type == TypeString }
func (v Value) IsArray() bool  { return v.Type == TypeArray }
func (v Value) IsBool() bool   { return v.Type == TypeBool }

func (v Value) IsFloat() bool {
	return v.Type == TypeFloat32 || v.Type == TypeFloat64
}

func (v Value) IsInteger() bool {
	switch v.Type {
	case TypeUint8, TypeInt8, TypeUint16, TypeInt16,
		TypeUint32, TypeInt32, TypeUint64, TypeInt64:
		return true
	default:
		return false
	}
}

// Is32BitInteger reports the u32/i32 family.
func (v Value) Is32BitInteger() bool {
	return v.Type == TypeUint32 || v.Type == TypeInt32
}

// Is64BitInteger reports the u64/i64 family.
func (v Value) Is64BitInteger() bool {
	return v.Type == TypeUint64 || v.Type == TypeInt64
}

// Int64 widens any integer value. Decoded u64 values always fit because
// the reader rejects the top bit.
func (v Value) Int64() (int64, bool) {
	switch t := v.Value.(type) {
	case uint8:
		return int64(t), true
	case int8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case int16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case int64:
		return t, true
	default:
		return 0, false
	}
}

func (v Value) Float64() (float64, bool) {
	switch t := v.Value.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch val := v.Value.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case ArrayValue:
		return formatArray(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

// formatArray renders short arrays in full and long ones as a summary.
func formatArray(a ArrayValue, max int) string {
	if len(a.Values) > max {
		return fmt.Sprintf("[%s array with %d elements]", a.ElemType, len(a.Values))
	}
	parts := make([]string, len(a.Values))
	for i, e := range a.Values {
		parts[i] = fmt.Sprint(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// readValue reads one type tag and the value it announces.
func readValue(r *Reader) (Value, error) {
	off := r.Offset()
	tag, err := r.I32()
	if err != nil {
		return Value{}, err
	}
	vtype := ValueType(uint32(tag))
	if tag < 0 || !vtype.Valid() {
		return Value{}, newDecodeError(ErrUnknownType, off, "metadata value type %d", tag)
	}
	if vtype == TypeArray {
		arr, err := readArray(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: TypeArray, Value: arr}, nil
	}
	v, err := readScalar(r, vtype)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: vtype, Value: v}, nil
}

func readArray(r *Reader) (ArrayValue, error) {
	off := r.Offset()
	tag, err := r.I32()
	if err != nil {
		return ArrayValue{}, err
	}
	elemType := ValueType(uint32(tag))
	switch {
	case elemType == TypeArray:
		return ArrayValue{}, newDecodeError(ErrNestedArray, off, "array element type is array")
	case tag < 0 || !elemType.Valid():
		return ArrayValue{}, newDecodeError(ErrUnknownType, off, "array element type %d", tag)
	}

	off = r.Offset()
	count, err := r.U64()
	if err != nil {
		return ArrayValue{}, err
	}
	if count > MaxArrayLen {
		return ArrayValue{}, newDecodeError(ErrTooLarge, off, "array of %d %s", count, elemType)
	}

	values := make([]any, 0, min(count, 1<<16))
	for range count {
		v, err := readScalar(r, elemType)
		if err != nil {
			return ArrayValue{}, err
		}
		values = append(values, v)
	}
	return ArrayValue{ElemType: elemType, Values: values}, nil
}

// readScalar decodes every non-array type.
func readScalar(r *Reader, vtype ValueType) (any, error) {
	switch vtype {
	case TypeUint8:
		return r.U8()
	case TypeInt8:
		return r.I8()
	case TypeUint16:
		return r.U16()
	case TypeInt16:
		return r.I16()
	case TypeUint32:
		return r.U32()
	case TypeInt32:
		return r.I32()
	case TypeUint64:
		return r.U64()
	case TypeInt64:
		return r.I64()
	case TypeFloat32:
		return r.F32()
	case TypeFloat64:
		return r.F64()
	case TypeBool:
		return r.Bool()
	case TypeString:
		return r.ReadString()
	case TypeArray:
		return nil, newDecodeError(ErrNestedArray, r.Offset(), "array inside array")
	default:
		return nil, newDecodeError(ErrUnknownType, r.Offset(), "metadata value type %d", uint32(vtype))
	}
}
