package reembed

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/ai/mock"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
	"github.com/poiesic/docflow/storage/badger"
)

func setupStore(t *testing.T, contents ...string) (*badger.Store, []string) {
	t.Helper()
	store, err := badger.NewMemoryStore("docs", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	items := make([]core.EmbeddedChunk, len(contents))
	for i, c := range contents {
		items[i] = core.EmbeddedChunk{
			Vector: []float32{1, 0},
			Document: core.Chunk{Content: c, Metadata: core.Metadata{
				core.MetaSource:         c + ".txt",
				core.MetaEmbeddingModel: "old-model",
			}},
		}
	}
	ids, err := store.AddChunks(context.Background(), items)
	require.NoError(t, err)
	return store, ids
}

func loadAll(t *testing.T, store *badger.Store, ids []string) []storage.Record {
	t.Helper()
	records := make([]storage.Record, len(ids))
	for i, id := range ids {
		r, err := store.GetRecord(context.Background(), id)
		require.NoError(t, err)
		records[i] = r
	}
	return records
}

// unnormalized returns [1,2,2] for every text: magnitude 3.
func unnormalized() *mock.MockEmbedder {
	return &mock.MockEmbedder{
		EmbedTextsFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 2, 2}
			}
			return out, nil
		},
	}
}

func TestBatchProcessor_Process(t *testing.T) {
	store, ids := setupStore(t, "first", "second")
	ctx := context.Background()

	processor := NewBatchProcessor(store, unnormalized(), "new-model", 3, time.Millisecond, nil)
	require.NoError(t, processor.Process(ctx, loadAll(t, store, ids)))

	for _, r := range loadAll(t, store, ids) {
		require.Len(t, r.Vector, 3)
		assert.InDelta(t, 1.0/3, r.Vector[0], 1e-6)
		assert.InDelta(t, 2.0/3, r.Vector[1], 1e-6)

		var magnitude float64
		for _, v := range r.Vector {
			magnitude += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)

		assert.Equal(t, "new-model", r.Metadata.String(core.MetaEmbeddingModel))
		assert.Equal(t, int64(3), r.Metadata[core.MetaEmbeddingDimensions])
		assert.Equal(t, r.Content+".txt", r.Metadata.String(core.MetaSource), "other metadata survives")
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := unnormalized()
	processor := NewBatchProcessor(nil, embedder, "m", 1, time.Millisecond, nil)
	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_RetriesTransientFailure(t *testing.T) {
	store, ids := setupStore(t, "only")
	attempts := 0
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("temporary failure")
			}
			return [][]float32{{0, 5}}, nil
		},
	}

	processor := NewBatchProcessor(store, embedder, "", 3, time.Millisecond, nil)
	require.NoError(t, processor.Process(context.Background(), loadAll(t, store, ids)))
	assert.Equal(t, 3, attempts)

	r := loadAll(t, store, ids)[0]
	assert.InDeltaSlice(t, []float32{0, 1}, r.Vector, 1e-6)
	assert.Equal(t, "old-model", r.Metadata.String(core.MetaEmbeddingModel), "empty model leaves the old name")
}

func TestBatchProcessor_GivesUp(t *testing.T) {
	store, ids := setupStore(t, "only")
	boom := errors.New("permanent failure")
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(context.Context, []string) ([][]float32, error) {
			return nil, boom
		},
	}

	processor := NewBatchProcessor(store, embedder, "m", 2, time.Millisecond, nil)
	err := processor.Process(context.Background(), loadAll(t, store, ids))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []float32{1, 0}, loadAll(t, store, ids)[0].Vector)
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	store, ids := setupStore(t, "one", "two")
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		},
	}

	processor := NewBatchProcessor(store, embedder, "m", 1, time.Millisecond, nil)
	err := processor.Process(context.Background(), loadAll(t, store, ids))
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}
