// Package gguftest builds small GGUF files for tests in other packages.
//
// Tests inside package gguf keep their own encoder in encode_test.go:
// they drive unexported readers (readValue, readTensorInfo) and write
// deliberately malformed bytes, and importing gguftest from there would
// be an import cycle.
package gguftest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/gguflens/internal/gguf"
)

type kv struct {
	key string
	val gguf.Value
}

// Builder accumulates metadata and tensor descriptors in insertion order.
type Builder struct {
	Version uint32
	kvs     []kv
	tensors []gguf.TensorInfo
}

func New() *Builder {
	return &Builder{Version: 3}
}

func (b *Builder) KV(key string, v gguf.Value) *Builder {
	b.kvs = append(b.kvs, kv{key, v})
	return b
}

func (b *Builder) String(key, v string) *Builder {
	return b.KV(key, gguf.Value{Type: gguf.TypeString, Value: v})
}

func (b *Builder) Uint32(key string, v uint32) *Builder {
	return b.KV(key, gguf.Value{Type: gguf.TypeUint32, Value: v})
}

func (b *Builder) Strings(key string, vs ...string) *Builder {
	vals := make([]any, len(vs))
	for i, v := range vs {
		vals[i] = v
	}
	return b.KV(key, gguf.Value{Type: gguf.TypeArray, Value: gguf.ArrayValue{ElemType: gguf.TypeString, Values: vals}})
}

func (b *Builder) Tensor(name string, typ gguf.TensorType, dims ...uint64) *Builder {
	var off uint64
	if n := len(b.tensors); n > 0 {
		last := b.tensors[n-1]
		off = align(last.Offset+last.Size(), gguf.DefaultAlignment)
	}
	b.tensors = append(b.tensors, gguf.TensorInfo{Name: name, Dims: dims, Type: typ, Offset: off})
	return b
}

// Bytes encodes the header, metadata and descriptors, padded to the
// default alignment. No tensor payload is written.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	u32 := func(v uint32) { buf.Write(le.AppendUint32(nil, v)) }
	u64 := func(v uint64) { buf.Write(le.AppendUint64(nil, v)) }
	str := func(s string) { u64(uint64(len(s))); buf.WriteString(s) }

	u32(gguf.Magic)
	u32(b.Version)
	u64(uint64(len(b.tensors)))
	u64(uint64(len(b.kvs)))
	for _, p := range b.kvs {
		str(p.key)
		u32(uint32(p.val.Type))
		if arr, ok := p.val.Value.(gguf.ArrayValue); ok {
			u32(uint32(arr.ElemType))
			u64(uint64(len(arr.Values)))
			for _, e := range arr.Values {
				writeScalar(&buf, e)
			}
			continue
		}
		writeScalar(&buf, p.val.Value)
	}
	for _, t := range b.tensors {
		str(t.Name)
		u32(uint32(len(t.Dims)))
		for _, d := range t.Dims {
			u64(d)
		}
		u32(uint32(t.Type))
		u64(t.Offset)
	}
	for buf.Len()%gguf.DefaultAlignment != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// WriteFile writes the encoded file into dir and returns its path.
func (b *Builder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeScalar(buf *bytes.Buffer, v any) {
	le := binary.LittleEndian
	switch x := v.(type) {
	case uint8:
		buf.WriteByte(x)
	case int8:
		buf.WriteByte(byte(x))
	case uint16:
		buf.Write(le.AppendUint16(nil, x))
	case int16:
		buf.Write(le.AppendUint16(nil, uint16(x)))
	case uint32:
		buf.Write(le.AppendUint32(nil, x))
	case int32:
		buf.Write(le.AppendUint32(nil, uint32(x)))
	case uint64:
		buf.Write(le.AppendUint64(nil, x))
	case int64:
		buf.Write(le.AppendUint64(nil, uint64(x)))
	case float32:
		buf.Write(le.AppendUint32(nil, math.Float32bits(x)))
	case float64:
		buf.Write(le.AppendUint64(nil, math.Float64bits(x)))
	case bool:
		if x {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case string:
		buf.Write(le.AppendUint64(nil, uint64(len(x))))
		buf.WriteString(x)
	default:
		panic("gguftest: unsupported scalar")
	}
}

func align(n, a uint64) uint64 {
	return (n + a - 1) / a * a
}

// Llama returns a two-layer llama-shaped model.
func Llama() *Builder {
	return New().
		String(gguf.KeyArchitecture, "llama").
		String(gguf.KeyName, "tiny-llama").
		Uint32(gguf.KeyFileType, 15).
		Uint32("llama.context_length", 2048).
		Uint32("llama.block_count", 2).
		String(gguf.KeyTokenizerModel, "llama").
		Strings(gguf.KeyTokens, "<unk>", "<s>", "</s>").
		Tensor("token_embd.weight", gguf.GGMLTypeQ4_K, 256, 3).
		Tensor("blk.0.attn_q.weight", gguf.GGMLTypeQ4_K, 256, 256).
		Tensor("blk.0.attn_q.bias", gguf.GGMLTypeF32, 256).
		Tensor("blk.1.attn_q.weight", gguf.GGMLTypeQ6_K, 256, 256).
		Tensor("output_norm.weight", gguf.GGMLTypeF32, 256)
}
