package docflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/documents"
	"github.com/poiesic/docflow/ingestion"
	"github.com/poiesic/docflow/pipeline"
	"github.com/poiesic/docflow/queue"
)

// Ingestion is one configured run of the pipeline: the chunk, embed and
// persist workers plus the queue handles they own.
type Ingestion struct {
	db       *Database
	pipeline *pipeline.Pipeline
	embedder *ingestion.EmbeddingProcessor

	docsOut, docsIn *queue.BufferQueue[core.Chunk]
	embOut, embIn   *queue.BufferQueue[core.EmbeddedChunk]
}

// NewIngestion connects the queue handles and builds the pipeline. Nothing
// runs until Run. Close releases what NewIngestion acquired.
func (db *Database) NewIngestion(ctx context.Context) (_ *Ingestion, err error) {
	ing := &Ingestion{db: db}
	defer func() {
		if err != nil {
			ing.Close()
		}
	}()

	queueOpts := []queue.Option{queue.WithLogger(db.logger)}
	chunkCodec, embeddedCodec := core.ChunkCodec(), core.EmbeddedChunkCodec()
	docsCfg, embCfg := db.cfg.DocumentQueue(), db.cfg.EmbeddingQueue()

	// Producer and consumer of a queue never share a handle.
	if ing.docsOut, err = queue.New(ctx, docsCfg, chunkCodec, queueOpts...); err != nil {
		return nil, fmt.Errorf("document queue: %w", err)
	}
	if ing.docsIn, err = queue.New(ctx, docsCfg, chunkCodec, queueOpts...); err != nil {
		return nil, fmt.Errorf("document queue: %w", err)
	}
	if ing.embOut, err = queue.New(ctx, embCfg, embeddedCodec, queueOpts...); err != nil {
		return nil, fmt.Errorf("embedding queue: %w", err)
	}
	if ing.embIn, err = queue.New(ctx, embCfg, embeddedCodec, queueOpts...); err != nil {
		return nil, fmt.Errorf("embedding queue: %w", err)
	}

	chunker, err := documents.NewService(db.cfg.Documents, db.logger)
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	ing.embedder, err = ingestion.NewEmbeddingProcessor(db.provider.Embedder(),
		db.cfg.EmbeddingOptions(db.provider.Model(), db.logger)...)
	if err != nil {
		return nil, fmt.Errorf("embed processor: %w", err)
	}
	persister, err := ingestion.NewPersistProcessor(db.store, db.logger)
	if err != nil {
		return nil, fmt.Errorf("persist processor: %w", err)
	}

	ing.pipeline, err = pipeline.New(db.cfg.PipelineConfig(), pipeline.Stages{
		Chunker:       chunker,
		DocumentsOut:  ing.docsOut,
		DocumentsIn:   ing.docsIn,
		Embedder:      ing.embedder,
		EmbeddingsOut: ing.embOut,
		EmbeddingsIn:  ing.embIn,
		Persister:     persister,
	}, pipeline.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}
	return ing, nil
}

// Run executes the pipeline until every document has been stored, a worker
// fails, or ctx ends.
func (ing *Ingestion) Run(ctx context.Context) error {
	return ing.pipeline.Run(ctx)
}

// Pipeline returns the underlying pipeline for callers that drive it step by
// step.
func (ing *Ingestion) Pipeline() *pipeline.Pipeline {
	return ing.pipeline
}

// ClearQueues drops everything left in both queues by an earlier run,
// including stale end-of-stream markers.
func (ing *Ingestion) ClearQueues(ctx context.Context) error {
	if err := ing.docsOut.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", ing.docsOut.Name(), err)
	}
	if err := ing.embOut.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", ing.embOut.Name(), err)
	}
	return nil
}

// QueueSizes returns the number of records in the document and embedding
// queues.
func (ing *Ingestion) QueueSizes(ctx context.Context) (docs, embedded int64, err error) {
	if docs, err = ing.docsIn.Size(ctx); err != nil {
		return 0, 0, err
	}
	if embedded, err = ing.embIn.Size(ctx); err != nil {
		return 0, 0, err
	}
	return docs, embedded, nil
}

// Close stops the pipeline if it is still running, then closes the queue
// handles and the embedding pool. The database stays open.
func (ing *Ingestion) Close() error {
	var errs []error
	if ing.pipeline != nil {
		if err := ing.pipeline.Stop(); err != nil {
			ing.db.logger.Debug("pipeline stopped with error", "err", err)
		}
	}
	errs = append(errs, closeQueue(ing.docsOut), closeQueue(ing.docsIn),
		closeQueue(ing.embOut), closeQueue(ing.embIn))
	if ing.embedder != nil {
		ing.embedder.Release()
	}
	return errors.Join(errs...)
}

// closeQueue tolerates handles that were never opened.
func closeQueue[T any](q *queue.BufferQueue[T]) error {
	if q == nil {
		return nil
	}
	return q.Close()
}
