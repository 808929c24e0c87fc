package core

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math"
	"reflect"

	"github.com/go-crypt/x/blake2b"
)

// Metadata keys attached to chunks as they move through the pipeline.
const (
	MetaSource              = "source"
	MetaCategory            = "category"
	MetaExtension           = "extension"
	MetaChunkIndex          = "chunk_index"
	MetaContentHash         = "content_hash"
	MetaEmbeddingModel      = "embedding_model"
	MetaEmbeddingDimensions = "embedding_dimensions"
)

// Metadata is free-form key/value data carried alongside a chunk.
// Values must be JSON-representable. Integers are carried as int64 and
// other numbers as float64; decoding restores those types.
type Metadata map[string]any

// UnmarshalJSON decodes a JSON object, keeping integral numbers as int64.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSONValue(data)
	if err != nil {
		return err
	}
	if v == nil {
		*m = nil
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return &json.UnmarshalTypeError{Value: "non-object", Type: reflect.TypeFor[Metadata]()}
	}
	*m = Metadata(obj)
	return nil
}

// DecodeJSONValue decodes a single JSON value. Numbers without a fraction
// that fit in an int64 decode as int64, all other numbers as float64.
func DecodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

// NormalizeMetadata restores canonical number types in metadata decoded by
// a reader that produced float64 for every number. Integral values within
// float64's exact integer range become int64.
func NormalizeMetadata(m map[string]any) Metadata {
	if m == nil {
		return nil
	}
	return Metadata(normalizeNumbers(m).(map[string]any))
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) <= 1<<53 {
			return int64(t)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		// Out-of-range values saturate to +/-Inf.
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeNumbers(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalizeNumbers(inner)
		}
		return t
	default:
		return v
	}
}

// Clone returns a shallow copy of m. A nil map clones to an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value stored under key if it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Chunk is a bounded span of text cut from a source document.
type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// EmbeddedChunk pairs a chunk with the vector computed from its content.
type EmbeddedChunk struct {
	Vector   []float32 `json:"vector"`
	Document Chunk     `json:"document"`
}

// ContentHash returns a short BLAKE2b digest of text, hex encoded.
// Identical content always produces the same hash.
func ContentHash(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
