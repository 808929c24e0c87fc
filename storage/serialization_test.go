package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/core"
)

func TestRecordSerialization(t *testing.T) {
	record := Record{
		ID:         "id-1",
		Collection: "c",
		Content:    "hello",
		Metadata: core.Metadata{
			core.MetaSource:              "notes/a.txt",
			core.MetaChunkIndex:          int64(3),
			core.MetaEmbeddingDimensions: int64(768),
			"big":                        int64(1<<53 + 1),
			"score":                      0.25,
			"reviewed":                   true,
			"missing":                    nil,
			"tags":                       []any{"x", int64(2)},
		},
		Vector:   []float32{0.5, -1.25, 3e-7},
		StoredAt: time.Date(2025, 3, 14, 15, 9, 26, 535897000, time.UTC),
	}

	data, err := MarshalRecord(record)
	require.NoError(t, err)

	decoded, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestRecordSerialization_CanonicalIntegers(t *testing.T) {
	data, err := MarshalRecord(Record{
		ID: "id",
		Metadata: core.Metadata{
			core.MetaChunkIndex: 4,
			"small":             int8(-3),
			"unsigned":          uint64(7),
			"ratio":             float32(0.5),
		},
	})
	require.NoError(t, err)

	decoded, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, core.Metadata{
		core.MetaChunkIndex: int64(4),
		"small":             int64(-3),
		"unsigned":          int64(7),
		"ratio":             0.5,
	}, decoded.Metadata)
}

func TestRecordSerialization_Deterministic(t *testing.T) {
	record := Record{ID: "id", Metadata: core.Metadata{"a": "1", "b": int64(2), "c": 3.5, "d": false}}
	first, err := MarshalRecord(record)
	require.NoError(t, err)
	for range 10 {
		again, err := MarshalRecord(record)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRecordSerialization_NilAndEmpty(t *testing.T) {
	data, err := MarshalRecord(Record{ID: "id"})
	require.NoError(t, err)
	decoded, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.Metadata)
	assert.Nil(t, decoded.Vector)
	assert.True(t, decoded.StoredAt.IsZero())

	data, err = MarshalRecord(Record{ID: "id", Metadata: core.Metadata{}})
	require.NoError(t, err)
	decoded, err = UnmarshalRecord(data)
	require.NoError(t, err)
	assert.NotNil(t, decoded.Metadata)
	assert.Empty(t, decoded.Metadata)
}

func TestRecordSerialization_Errors(t *testing.T) {
	_, err := MarshalRecord(Record{ID: "id", Metadata: core.Metadata{"ch": make(chan int)}})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalRecord([]byte("{not a record"))
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalRecord(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	data, err := MarshalRecord(Record{ID: "id", Content: "some content"})
	require.NoError(t, err)
	_, err = UnmarshalRecord(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrSerializationFailed)
	_, err = UnmarshalRecord(append(data, 0))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
