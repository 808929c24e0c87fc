package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/ingestion"
	"github.com/poiesic/docflow/storage"
)

// BatchProcessor embeds the content of a batch of records and writes the new
// vectors back.
type BatchProcessor struct {
	repo           storage.RecordRepository
	embedder       ai.Embedder
	model          string
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor. model is recorded in each
// record's metadata and may be empty.
func NewBatchProcessor(repo storage.RecordRepository, embedder ai.Embedder, model string, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		model:          model,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}
}

// Process embeds records and updates them in the store. Vectors are
// normalized to unit length before they are written.
func (bp *BatchProcessor) Process(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Content
	}

	var embeddings [][]float32
	err := ingestion.RetryWithBackoff(ctx, bp.logger, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(records), len(embeddings))
	}

	updated := make([]storage.Record, len(records))
	for i, record := range records {
		record.Vector = NormalizeVector(embeddings[i])
		record.Metadata = record.Metadata.Clone()
		if bp.model != "" {
			record.Metadata[core.MetaEmbeddingModel] = bp.model
		}
		record.Metadata[core.MetaEmbeddingDimensions] = int64(len(record.Vector))
		updated[i] = record
	}

	if err := bp.repo.UpdateRecords(ctx, updated); err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}
	return nil
}
