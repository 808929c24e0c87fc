package core

import (
	"encoding/json"
	"fmt"
)

// Codec converts items to and from the bytes carried on a queue.
// Encoded output must be valid JSON so it can be embedded in a queue envelope.
type Codec[T any] interface {
	Encode(item T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec encodes items with encoding/json.
type JSONCodec[T any] struct{}

var (
	_ Codec[Chunk]         = JSONCodec[Chunk]{}
	_ Codec[EmbeddedChunk] = JSONCodec[EmbeddedChunk]{}
)

// Encode marshals item to JSON.
func (JSONCodec[T]) Encode(item T) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// Decode unmarshals data into a new T.
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return item, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return item, nil
}

// ChunkCodec returns the codec used for the document queue.
func ChunkCodec() Codec[Chunk] {
	return JSONCodec[Chunk]{}
}

// EmbeddedChunkCodec returns the codec used for the embedding queue.
func EmbeddedChunkCodec() Codec[EmbeddedChunk] {
	return JSONCodec[EmbeddedChunk]{}
}
