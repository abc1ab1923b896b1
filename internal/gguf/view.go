package gguf

import "fmt"

// MetadataView is the result of decoding only the header and metadata
// table. Header.TensorCount is the count the file announces; no tensor
// descriptors are held, so tensor-derived queries are not available.
type MetadataView struct {
	Header Header
	KV     Metadata
}

func newMetadataView(h Header, kv Metadata) (*MetadataView, error) {
	if uint64(len(kv)) > h.KVCount || (h.KVCount > 0 && len(kv) == 0) {
		return nil, fmt.Errorf("%w: header announces %d metadata entries, decoded %d", ErrInvariant, h.KVCount, len(kv))
	}
	if kv == nil {
		kv = Metadata{}
	}
	return &MetadataView{Header: h, KV: kv}, nil
}

func (v *MetadataView) Architecture() (string, bool) { return v.KV.Architecture() }

func (v *MetadataView) Name() (string, bool) { return v.KV.String(KeyName) }

func (v *MetadataView) FileType() (FileType, bool) { return v.KV.FileType() }

func (v *MetadataView) QuantizationVersion() (int64, bool) {
	return v.KV.Count(KeyQuantizationVersion)
}

func (v *MetadataView) ArchInt(suffix string) (int64, bool) { return v.KV.ArchCount(suffix) }

func (v *MetadataView) ContextLength() (int64, bool) { return v.KV.ArchCount(SuffixContextLength) }

func (v *MetadataView) BlockCount() (int64, bool) { return v.KV.ArchCount(SuffixBlockCount) }

// Alignment is general.alignment when present and valid, else the default.
func (v *MetadataView) Alignment() uint64 {
	if a, ok := v.KV.alignment(); ok {
		return a
	}
	return DefaultAlignment
}
