package gguf

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
)

// File is a decoded GGUF header, metadata table and tensor descriptor list.
// It is built once by Decode and must not be mutated.
type File struct {
	Header  Header
	KV      Metadata
	Tensors []TensorInfo

	// Alignment is the tensor data alignment that was applied.
	Alignment uint64
	// DataOffset is the aligned byte offset at which tensor payloads begin.
	DataOffset uint64
}

// NewFile checks the counts announced by the header against the decoded
// tables. Duplicate keys collapse (last write wins), so the table may hold
// fewer entries than KVCount but never more.
func NewFile(h Header, kv Metadata, tensors []TensorInfo, alignment, dataOffset uint64) (*File, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: magic %#08x version %d", ErrMalformedHeader, h.Magic, h.Version)
	}
	if uint64(len(tensors)) != h.TensorCount {
		return nil, fmt.Errorf("%w: header announces %d tensors, decoded %d", ErrInvariant, h.TensorCount, len(tensors))
	}
	if uint64(len(kv)) > h.KVCount || (h.KVCount > 0 && len(kv) == 0) {
		return nil, fmt.Errorf("%w: header announces %d metadata entries, decoded %d", ErrInvariant, h.KVCount, len(kv))
	}
	if kv == nil {
		kv = Metadata{}
	}
	return &File{
		Header:     h,
		KV:         kv,
		Tensors:    tensors,
		Alignment:  alignment,
		DataOffset: dataOffset,
	}, nil
}

func (f *File) Architecture() (string, bool) { return f.KV.Architecture() }

func (f *File) Name() (string, bool) { return f.KV.String(KeyName) }

func (f *File) FileType() (FileType, bool) { return f.KV.FileType() }

func (f *File) QuantizationVersion() (int64, bool) {
	return f.KV.Count(KeyQuantizationVersion)
}

// TotalParameters is the sum of every tensor's element count.
func (f *File) TotalParameters() uint64 {
	var n uint64
	for _, t := range f.Tensors {
		n += t.Elements()
	}
	return n
}

// TotalSize is the sum of every tensor's payload size in bytes.
func (f *File) TotalSize() uint64 {
	var n uint64
	for _, t := range f.Tensors {
		n += t.Size()
	}
	return n
}

// BitsPerWeight is TotalSize*8/TotalParameters, or 0 for a file without
// parameters.
func (f *File) BitsPerWeight() float64 {
	params := f.TotalParameters()
	if params == 0 {
		return 0
	}
	return float64(f.TotalSize()) * 8 / float64(params)
}

// ArchInt looks up "<architecture><suffix>" as a 32- or 64-bit integer.
func (f *File) ArchInt(suffix string) (int64, bool) { return f.KV.ArchCount(suffix) }

func (f *File) ContextLength() (int64, bool)     { return f.KV.ArchCount(SuffixContextLength) }
func (f *File) EmbeddingLength() (int64, bool)   { return f.KV.ArchCount(SuffixEmbeddingLength) }
func (f *File) BlockCount() (int64, bool)        { return f.KV.ArchCount(SuffixBlockCount) }
func (f *File) FeedForwardLength() (int64, bool) { return f.KV.ArchCount(SuffixFeedForwardLength) }
func (f *File) HeadCount() (int64, bool)         { return f.KV.ArchCount(SuffixHeadCount) }
func (f *File) HeadCountKV() (int64, bool)       { return f.KV.ArchCount(SuffixHeadCountKV) }

func (f *File) TokenizerModel() (string, bool) { return f.KV.String(KeyTokenizerModel) }
func (f *File) BOSTokenID() (int64, bool)      { return f.KV.Count(KeyBOSTokenID) }
func (f *File) EOSTokenID() (int64, bool)      { return f.KV.Count(KeyEOSTokenID) }
func (f *File) UNKTokenID() (int64, bool)      { return f.KV.Count(KeyUNKTokenID) }
func (f *File) PADTokenID() (int64, bool)      { return f.KV.Count(KeyPADTokenID) }

// TensorByName returns the tensor info for the given name.
func (f *File) TensorByName(name string) (TensorInfo, bool) {
	for _, t := range f.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return TensorInfo{}, false
}

// FilterTensors returns the tensors accepted by keep, in file order.
func (f *File) FilterTensors(keep func(TensorInfo) bool) []TensorInfo {
	var out []TensorInfo
	for _, t := range f.Tensors {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (f *File) TensorsByLayer(layer int) []TensorInfo {
	return f.FilterTensors(func(t TensorInfo) bool { return t.LayerNumber() == layer })
}

func (f *File) WeightTensors() []TensorInfo {
	return f.FilterTensors(TensorInfo.IsWeight)
}

func (f *File) BiasTensors() []TensorInfo {
	return f.FilterTensors(TensorInfo.IsBias)
}

// MatchTensors returns tensors whose whole name matches pattern.
func (f *File) MatchTensors(pattern string) ([]TensorInfo, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("tensor pattern: %w", err)
	}
	return f.FilterTensors(func(t TensorInfo) bool { return re.MatchString(t.Name) }), nil
}

// TensorQuery selects tensors. Zero-valued fields match everything; Layer
// is only consulted when AnyLayer is false.
type TensorQuery struct {
	AnyLayer bool
	Layer    int
	Types    []TensorType
	Match    string
}

// AllTensors matches every tensor.
var AllTensors = TensorQuery{AnyLayer: true}

// Query applies q in file order. Match is anchored like MatchTensors.
func (f *File) Query(q TensorQuery) ([]TensorInfo, error) {
	var re *regexp.Regexp
	if q.Match != "" {
		var err error
		if re, err = regexp.Compile("^(?:" + q.Match + ")$"); err != nil {
			return nil, fmt.Errorf("tensor pattern: %w", err)
		}
	}
	return f.FilterTensors(func(t TensorInfo) bool {
		if !q.AnyLayer && t.LayerNumber() != q.Layer {
			return false
		}
		if len(q.Types) > 0 && !slices.Contains(q.Types, t.Type) {
			return false
		}
		return re == nil || re.MatchString(t.Name)
	}), nil
}

// TensorsByType groups tensors by element type.
func (f *File) TensorsByType() map[TensorType][]TensorInfo {
	out := make(map[TensorType][]TensorInfo)
	for _, t := range f.Tensors {
		out[t.Type] = append(out[t.Type], t)
	}
	return out
}

// Layers returns the distinct layer numbers present, ascending.
func (f *File) Layers() []int {
	seen := make(map[int]struct{})
	for _, t := range f.Tensors {
		if n := t.LayerNumber(); n >= 0 {
			seen[n] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

func (f *File) String() string {
	arch, ok := f.Architecture()
	if !ok {
		arch = "unknown"
	}
	return fmt.Sprintf("GGUF %s arch=%s tensors=%d params=%d",
		f.Header.VersionString(), arch, len(f.Tensors), f.TotalParameters())
}
