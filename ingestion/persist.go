package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

// PersistProcessor writes embedded chunks to a vector store. It is the
// terminal stage's processor; its output is the stored record ids.
type PersistProcessor struct {
	store  storage.VectorStore
	logger *slog.Logger
}

// NewPersistProcessor creates a persist processor.
func NewPersistProcessor(store storage.VectorStore, logger *slog.Logger) (*PersistProcessor, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistProcessor{
		store:  store,
		logger: logger.With("processor", "persist"),
	}, nil
}

// Process stores items and returns their ids. Items that fail validation are
// dropped. Every call stores fresh records, so items delivered twice are
// stored twice.
func (pp *PersistProcessor) Process(ctx context.Context, items []core.EmbeddedChunk) ([]string, error) {
	valid := make([]core.EmbeddedChunk, 0, len(items))
	for _, item := range items {
		if err := core.ValidateEmbeddedChunk(item); err != nil {
			pp.logger.Warn("dropping invalid embedded chunk", "source", item.Document.Metadata.String(core.MetaSource), "err", err)
			continue
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: batch of %d", ErrNothingToPersist, len(items))
	}

	ids, err := pp.store.AddChunks(ctx, valid)
	if err != nil {
		pp.logger.Error("error persisting chunks", "chunks", len(valid), "err", err)
		return nil, err
	}
	pp.logger.Debug("persisted chunks", "chunks", len(ids))
	return ids, nil
}
