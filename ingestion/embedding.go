package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
)

const (
	defaultConcurrency  = 4
	defaultSubBatchSize = 16
	defaultMaxAttempts  = 1
	defaultRetryDelay   = 500 * time.Millisecond
)

// EmbeddingProcessor turns chunks into embedded chunks. Each batch is split
// into sub-batches that are embedded concurrently on a worker pool. A
// sub-batch whose embedding call fails is dropped and the rest of the batch
// carries on; calls are made once unless WithRetry raises the attempt
// count. Output order follows input order.
type EmbeddingProcessor struct {
	embedder     ai.Embedder
	model        string
	pool         *ants.Pool
	cache        *lru.Cache[string, []float32]
	subBatchSize int
	maxAttempts  int
	retryDelay   time.Duration
	logger       *slog.Logger
}

// EmbeddingOption configures an EmbeddingProcessor.
type EmbeddingOption func(*embeddingSettings) error

type embeddingSettings struct {
	model        string
	concurrency  int
	subBatchSize int
	cacheSize    int
	maxAttempts  int
	retryDelay   time.Duration
	logger       *slog.Logger
}

// WithModelName records the embedding model on every chunk's metadata.
func WithModelName(model string) EmbeddingOption {
	return func(s *embeddingSettings) error {
		s.model = model
		return nil
	}
}

// WithConcurrency sets how many sub-batches are embedded at once.
func WithConcurrency(n int) EmbeddingOption {
	return func(s *embeddingSettings) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		s.concurrency = n
		return nil
	}
}

// WithSubBatchSize sets how many texts go to the embedder per request.
func WithSubBatchSize(n int) EmbeddingOption {
	return func(s *embeddingSettings) error {
		if n <= 0 {
			return fmt.Errorf("sub-batch size must be positive, got %d", n)
		}
		s.subBatchSize = n
		return nil
	}
}

// WithCacheSize enables an LRU cache of vectors keyed by content hash.
// Zero disables caching.
func WithCacheSize(n int) EmbeddingOption {
	return func(s *embeddingSettings) error {
		if n < 0 {
			return fmt.Errorf("cache size must not be negative, got %d", n)
		}
		s.cacheSize = n
		return nil
	}
}

// WithRetry sets the attempts per sub-batch and the base backoff delay.
func WithRetry(maxAttempts int, delay time.Duration) EmbeddingOption {
	return func(s *embeddingSettings) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		s.maxAttempts = maxAttempts
		s.retryDelay = delay
		return nil
	}
}

// WithEmbeddingLogger sets the logger. A nil logger falls back to slog.Default.
func WithEmbeddingLogger(logger *slog.Logger) EmbeddingOption {
	return func(s *embeddingSettings) error {
		s.logger = logger
		return nil
	}
}

// NewEmbeddingProcessor creates an embedding processor backed by embedder.
// Release must be called to free the worker pool.
func NewEmbeddingProcessor(embedder ai.Embedder, opts ...EmbeddingOption) (*EmbeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	settings := &embeddingSettings{
		concurrency:  defaultConcurrency,
		subBatchSize: defaultSubBatchSize,
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryDelay,
	}
	for _, opt := range opts {
		if err := opt(settings); err != nil {
			return nil, err
		}
	}
	if settings.logger == nil {
		settings.logger = slog.Default()
	}

	pool, err := ants.NewPool(settings.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}

	ep := &EmbeddingProcessor{
		embedder:     embedder,
		model:        settings.model,
		pool:         pool,
		subBatchSize: settings.subBatchSize,
		maxAttempts:  settings.maxAttempts,
		retryDelay:   settings.retryDelay,
		logger:       settings.logger.With("processor", "embeddings"),
	}
	if settings.cacheSize > 0 {
		cache, err := lru.New[string, []float32](settings.cacheSize)
		if err != nil {
			pool.Release()
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		ep.cache = cache
	}
	return ep, nil
}

// Process embeds chunks. Invalid chunks and failed sub-batches are dropped
// with a log entry. An error is returned only when nothing could be embedded.
func (ep *EmbeddingProcessor) Process(ctx context.Context, chunks []core.Chunk) ([]core.EmbeddedChunk, error) {
	ep.logger.Debug("processing chunks for embeddings", "chunks", len(chunks))

	valid := make([]core.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			ep.logger.Warn("dropping invalid chunk", "source", chunk.Metadata.String(core.MetaSource), "err", err)
			continue
		}
		valid = append(valid, chunk)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid chunks in batch of %d", ErrEmbeddingFailed, len(chunks))
	}

	vectors := make([][]float32, len(valid))
	var misses []int
	for i, chunk := range valid {
		if v, ok := ep.cached(chunk.Content); ok {
			vectors[i] = v
			continue
		}
		misses = append(misses, i)
	}

	if len(misses) > 0 {
		if err := ep.embedMisses(ctx, valid, misses, vectors); err != nil {
			return nil, err
		}
	}

	out := make([]core.EmbeddedChunk, 0, len(valid))
	for i, chunk := range valid {
		if vectors[i] == nil {
			continue
		}
		meta := chunk.Metadata.Clone()
		if ep.model != "" {
			meta[core.MetaEmbeddingModel] = ep.model
		}
		meta[core.MetaEmbeddingDimensions] = int64(len(vectors[i]))
		out = append(out, core.EmbeddedChunk{
			Vector:   vectors[i],
			Document: core.Chunk{Content: chunk.Content, Metadata: meta},
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: all %d chunks failed", ErrEmbeddingFailed, len(valid))
	}
	if dropped := len(chunks) - len(out); dropped > 0 {
		ep.logger.Warn("embedded partial batch", "embedded", len(out), "dropped", dropped)
	}
	return out, nil
}

// embedMisses fills vectors at the given indices. Sub-batches run on the
// pool; a failed sub-batch leaves its slots nil.
func (ep *EmbeddingProcessor) embedMisses(ctx context.Context, chunks []core.Chunk, misses []int, vectors [][]float32) error {
	var wg sync.WaitGroup
	for start := 0; start < len(misses); start += ep.subBatchSize {
		idx := misses[start:min(start+ep.subBatchSize, len(misses))]

		wg.Add(1)
		err := ep.pool.Submit(func() {
			defer wg.Done()
			ep.embedSubBatch(ctx, chunks, idx, vectors)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("failed to submit embedding task: %w", err)
		}
	}
	wg.Wait()
	return ctx.Err()
}

func (ep *EmbeddingProcessor) embedSubBatch(ctx context.Context, chunks []core.Chunk, idx []int, vectors [][]float32) {
	texts := make([]string, len(idx))
	for i, n := range idx {
		texts[i] = chunks[n].Content
	}

	var result [][]float32
	err := RetryWithBackoff(ctx, ep.logger, func() error {
		embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(texts), len(embeddings))
		}
		result = embeddings
		return nil
	}, ep.maxAttempts, ep.retryDelay)
	if err != nil {
		ep.logger.Error("dropping sub-batch after failed embedding", "chunks", len(texts), "err", err)
		return
	}

	// Slots are disjoint across sub-batches.
	for i, n := range idx {
		vectors[n] = result[i]
		ep.remember(texts[i], result[i])
	}
}

func (ep *EmbeddingProcessor) cached(content string) ([]float32, bool) {
	if ep.cache == nil {
		return nil, false
	}
	return ep.cache.Get(core.ContentHash(content))
}

func (ep *EmbeddingProcessor) remember(content string, vector []float32) {
	if ep.cache == nil || len(vector) == 0 {
		return
	}
	ep.cache.Add(core.ContentHash(content), vector)
}

// Release frees the worker pool.
func (ep *EmbeddingProcessor) Release() {
	ep.pool.Release()
}
