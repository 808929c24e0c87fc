package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := ContentHash(tt.content)
			h2 := ContentHash(tt.content)
			assert.Equal(t, h1, h2)
			assert.Len(t, h1, 16)
		})
	}
}

func TestContentHash_Different(t *testing.T) {
	assert.NotEqual(t, ContentHash("content1"), ContentHash("content2"))
}

func TestMetadataClone(t *testing.T) {
	original := Metadata{MetaSource: "a.txt", MetaCategory: "notes"}
	clone := original.Clone()
	clone[MetaCategory] = "other"

	assert.Equal(t, "notes", original.String(MetaCategory))
	assert.Equal(t, "other", clone.String(MetaCategory))

	var nilMeta Metadata
	assert.NotNil(t, nilMeta.Clone())
	assert.Empty(t, nilMeta.String(MetaSource))
}

func TestChunkCodec_RoundTrip(t *testing.T) {
	codec := ChunkCodec()
	chunk := Chunk{
		Content: "The quick brown fox",
		Metadata: Metadata{
			MetaSource:     "data/notes/fox.txt",
			MetaCategory:   "notes",
			MetaChunkIndex: int64(3),
			"reviewed":     true,
			"ratio":        0.75,
		},
	}

	data, err := codec.Encode(chunk)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestChunkCodec_IntegerMetadata(t *testing.T) {
	codec := ChunkCodec()
	chunk := Chunk{
		Content: "x",
		Metadata: Metadata{
			MetaChunkIndex: 3,
			"big":          int64(1<<53 + 1),
			"negative":     int64(-42),
			"nested": map[string]any{
				"count": 7,
				"list":  []any{1, 2.5},
			},
		},
	}

	data, err := codec.Encode(chunk)
	require.NoError(t, err)
	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, int64(3), decoded.Metadata[MetaChunkIndex])
	assert.Equal(t, int64(1<<53+1), decoded.Metadata["big"])
	assert.Equal(t, int64(-42), decoded.Metadata["negative"])
	assert.Equal(t, map[string]any{
		"count": int64(7),
		"list":  []any{int64(1), 2.5},
	}, decoded.Metadata["nested"])
}

func TestMetadata_UnmarshalJSON(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":1.5,"c":"s","d":null,"e":18446744073709551615}`), &m))
	assert.Equal(t, Metadata{
		"a": int64(1),
		"b": 1.5,
		"c": "s",
		"d": nil,
		"e": float64(18446744073709551615),
	}, m)

	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Nil(t, m)

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
}

func TestEmbeddedChunkCodec_RoundTrip(t *testing.T) {
	codec := EmbeddedChunkCodec()
	item := EmbeddedChunk{
		Vector: []float32{0.1, -0.25, 3.5, 1e-7},
		Document: Chunk{
			Content:  "vectors survive the trip",
			Metadata: Metadata{MetaCategory: "science"},
		},
	}

	data, err := codec.Encode(item)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, item, decoded)
}

func TestCodec_DecodeError(t *testing.T) {
	_, err := ChunkCodec().Decode([]byte("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNormalizeMetadata(t *testing.T) {
	m := NormalizeMetadata(map[string]any{
		MetaChunkIndex: float64(2),
		"score":        0.5,
		"huge":         float64(1 << 60),
		"tags":         []any{float64(1), "a"},
	})
	assert.Equal(t, Metadata{
		MetaChunkIndex: int64(2),
		"score":        0.5,
		"huge":         float64(1 << 60),
		"tags":         []any{int64(1), "a"},
	}, m)
	assert.Nil(t, NormalizeMetadata(nil))
}
