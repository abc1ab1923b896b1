package gguf

import "slices"

// Well-known metadata keys.
const (
	KeyArchitecture        = "general.architecture"
	KeyName                = "general.name"
	KeyAuthor              = "general.author"
	KeyDescription         = "general.description"
	KeyLicense             = "general.license"
	KeyFileType            = "general.file_type"
	KeyQuantizationVersion = "general.quantization_version"
	KeyAlignment           = "general.alignment"

	KeyTokenizerModel = "tokenizer.ggml.model"
	KeyTokenizerPre   = "tokenizer.ggml.pre"
	KeyTokens         = "tokenizer.ggml.tokens"
	KeyMerges         = "tokenizer.ggml.merges"
	KeyBOSTokenID     = "tokenizer.ggml.bos_token_id"
	KeyEOSTokenID     = "tokenizer.ggml.eos_token_id"
	KeyUNKTokenID     = "tokenizer.ggml.unknown_token_id"
	KeyPADTokenID     = "tokenizer.ggml.padding_token_id"
	KeyChatTemplate   = "tokenizer.chat_template"
)

// Suffixes appended to the architecture name for per-architecture keys.
const (
	SuffixContextLength     = ".context_length"
	SuffixEmbeddingLength   = ".embedding_length"
	SuffixBlockCount        = ".block_count"
	SuffixFeedForwardLength = ".feed_forward_length"
	SuffixHeadCount         = ".attention.head_count"
	SuffixHeadCountKV       = ".attention.head_count_kv"
	SuffixRMSEpsilon        = ".attention.layer_norm_rms_epsilon"
	SuffixRopeDimCount      = ".rope.dimension_count"
	SuffixRopeFreqBase      = ".rope.freq_base"
	SuffixVocabSize         = ".vocab_size"
)

// Metadata is the decoded key/value table. Keys are case-sensitive.
type Metadata map[string]Value

// Keys returns every key in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m Metadata) Get(key string) (Value, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

func (m Metadata) Bool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value.(bool)
	return b, ok
}

// Int64 accepts any integer width.
func (m Metadata) Int64(key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return v.Int64()
}

// Uint64 accepts any integer width holding a non-negative value.
func (m Metadata) Uint64(key string) (uint64, bool) {
	n, ok := m.Int64(key)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

// Count looks up a 32- or 64-bit integer, the widths GGUF writers use for
// sizes and counts, normalised to int64.
func (m Metadata) Count(key string) (int64, bool) {
	v, ok := m[key]
	if !ok || !(v.Is32BitInteger() || v.Is64BitInteger()) {
		return 0, false
	}
	return v.Int64()
}

func (m Metadata) Float64(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return v.Float64()
}

// GetArray retrieves a slice of type T from the metadata.
// It checks that the value exists, is an array, and that all elements can be asserted to type T.
func GetArray[T any](m Metadata, key string) ([]T, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.Value.(ArrayValue)
	if !ok {
		return nil, false
	}

	out := make([]T, 0, len(arr.Values))
	for _, item := range arr.Values {
		tItem, ok := item.(T)
		if !ok {
			return nil, false
		}
		out = append(out, tItem)
	}
	return out, true
}

// Architecture is general.architecture.
func (m Metadata) Architecture() (string, bool) {
	return m.String(KeyArchitecture)
}

// ArchCount resolves "<architecture><suffix>", e.g. "llama.context_length".
func (m Metadata) ArchCount(suffix string) (int64, bool) {
	arch, ok := m.Architecture()
	if !ok || arch == "" {
		return 0, false
	}
	return m.Count(arch + suffix)
}

func (m Metadata) FileType() (FileType, bool) {
	v, ok := m[KeyFileType]
	if !ok || !v.Is32BitInteger() {
		return 0, false
	}
	n, _ := v.Int64()
	if n < 0 {
		return 0, false
	}
	return FileType(n), true
}

// alignment returns general.alignment when it is a usable power of two.
func (m Metadata) alignment() (uint64, bool) {
	n, ok := m.Uint64(KeyAlignment)
	if !ok || n == 0 || n&(n-1) != 0 {
		return 0, false
	}
	return n, true
}
