package ingestion

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/ai/mock"
	"github.com/poiesic/docflow/core"
)

func chunksOf(texts ...string) []core.Chunk {
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = core.Chunk{
			Content:  text,
			Metadata: core.Metadata{core.MetaSource: fmt.Sprintf("doc%d.txt", i)},
		}
	}
	return chunks
}

func newTestProcessor(t *testing.T, embedder *mock.MockEmbedder, opts ...EmbeddingOption) *EmbeddingProcessor {
	t.Helper()
	opts = append([]EmbeddingOption{WithRetry(1, time.Millisecond)}, opts...)
	ep, err := NewEmbeddingProcessor(embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(ep.Release)
	return ep
}

func TestNewEmbeddingProcessor_Validation(t *testing.T) {
	_, err := NewEmbeddingProcessor(nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	embedder := mock.NewMockEmbedder()
	_, err = NewEmbeddingProcessor(embedder, WithConcurrency(0))
	assert.Error(t, err)
	_, err = NewEmbeddingProcessor(embedder, WithSubBatchSize(-1))
	assert.Error(t, err)
	_, err = NewEmbeddingProcessor(embedder, WithCacheSize(-1))
	assert.Error(t, err)
	_, err = NewEmbeddingProcessor(embedder, WithRetry(0, time.Second))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestEmbeddingProcessor_PreservesOrderAndMetadata(t *testing.T) {
	embedder := &mock.MockEmbedder{Dimensions: 4}
	ep := newTestProcessor(t, embedder, WithModelName("mock-embed"), WithSubBatchSize(2), WithConcurrency(3))

	texts := []string{"one", "two", "three", "four", "five"}
	out, err := ep.Process(context.Background(), chunksOf(texts...))
	require.NoError(t, err)
	require.Len(t, out, 5)

	for i, item := range out {
		assert.Equal(t, texts[i], item.Document.Content)
		assert.Equal(t, fmt.Sprintf("doc%d.txt", i), item.Document.Metadata.String(core.MetaSource))
		assert.Equal(t, "mock-embed", item.Document.Metadata[core.MetaEmbeddingModel])
		assert.Equal(t, int64(4), item.Document.Metadata[core.MetaEmbeddingDimensions])
		want, _ := embedder.EmbedText(context.Background(), texts[i])
		assert.Equal(t, want, item.Vector)
	}
	// 5 texts in sub-batches of 2, plus one EmbedText per assertion.
	assert.Equal(t, 3+5, embedder.CallCount())
}

func TestEmbeddingProcessor_DoesNotMutateInput(t *testing.T) {
	ep := newTestProcessor(t, &mock.MockEmbedder{Dimensions: 2}, WithModelName("m"))
	in := chunksOf("a")
	_, err := ep.Process(context.Background(), in)
	require.NoError(t, err)
	_, ok := in[0].Metadata[core.MetaEmbeddingModel]
	assert.False(t, ok)
}

func TestEmbeddingProcessor_DropsInvalidChunks(t *testing.T) {
	ep := newTestProcessor(t, &mock.MockEmbedder{Dimensions: 2})
	out, err := ep.Process(context.Background(), chunksOf("keep", "   ", "also"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "keep", out[0].Document.Content)
	assert.Equal(t, "also", out[1].Document.Content)
}

func TestEmbeddingProcessor_AllInvalid(t *testing.T) {
	embedder := &mock.MockEmbedder{Dimensions: 2}
	ep := newTestProcessor(t, embedder)
	_, err := ep.Process(context.Background(), chunksOf("", " "))
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Zero(t, embedder.CallCount())
}

func TestEmbeddingProcessor_TotalFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("service unavailable")
	}
	ep := newTestProcessor(t, embedder)

	out, err := ep.Process(context.Background(), chunksOf("a", "b"))
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Empty(t, out)
}

func TestEmbeddingProcessor_LengthMismatchIsFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	ep := newTestProcessor(t, embedder)

	_, err := ep.Process(context.Background(), chunksOf("a", "b"))
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestEmbeddingProcessor_PartialFailureDropsSubBatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if slices.Contains(texts, "poison") {
			return nil, errors.New("rejected")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 2}
		}
		return out, nil
	}
	ep := newTestProcessor(t, embedder, WithSubBatchSize(2))

	out, err := ep.Process(context.Background(), chunksOf("a", "b", "poison", "c", "d"))
	require.NoError(t, err)

	var contents []string
	for _, item := range out {
		contents = append(contents, item.Document.Content)
	}
	assert.Equal(t, []string{"a", "b", "d"}, contents)
}

func TestEmbeddingProcessor_RetriesSubBatch(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return [][]float32{{1}}, nil
	}
	ep, err := NewEmbeddingProcessor(embedder, WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	defer ep.Release()

	out, err := ep.Process(context.Background(), chunksOf("a"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, attempts)
}

func TestEmbeddingProcessor_NoRetryByDefault(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return nil, errors.New("unavailable")
	}
	ep, err := NewEmbeddingProcessor(embedder)
	require.NoError(t, err)
	defer ep.Release()

	out, err := ep.Process(context.Background(), chunksOf("a"))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, attempts)
}

func TestEmbeddingProcessor_Cache(t *testing.T) {
	embedder := &mock.MockEmbedder{Dimensions: 2}
	ep := newTestProcessor(t, embedder, WithCacheSize(16))
	ctx := context.Background()

	first, err := ep.Process(ctx, chunksOf("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.TextCount())

	second, err := ep.Process(ctx, chunksOf("b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.TextCount(), "only the unseen text is embedded")
	assert.Equal(t, first[1].Vector, second[0].Vector)

	_, err = ep.Process(ctx, chunksOf("a", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.TextCount())
}

func TestEmbeddingProcessor_CanceledContext(t *testing.T) {
	ep := newTestProcessor(t, mock.NewMockEmbedder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ep.Process(ctx, chunksOf("a"))
	assert.Error(t, err)
}
