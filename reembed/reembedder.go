// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records embedded and rewritten together.
	BatchSize int

	// ReportInterval is how many records pass between progress lines.
	ReportInterval int

	// MaxRetries bounds the attempts per embedding call.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary describes a finished run.
type Summary struct {
	Records int
	Elapsed time.Duration
}

// Reembedder rewrites the vector of every record in a collection using the
// current embedding provider.
type Reembedder struct {
	repo      storage.RecordRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder. Progress lines go to progress,
// typically os.Stderr; a nil writer discards them.
func NewReembedder(repo storage.RecordRepository, provider ai.AIProvider, config *Config, progress io.Writer, logger *slog.Logger) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reembed")

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, provider.Embedder(), provider.Model(), config.MaxRetries, config.RetryDelay, logger),
		logger:    logger,
	}, nil
}

// Run reembeds every record. A batch that cannot be embedded or written
// aborts the run; records already rewritten keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (Summary, error) {
	total, err := r.repo.Count(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found (0 records)\n")
		return Summary{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d records (batch size: %d, model: %s)\n",
		total, r.config.BatchSize, r.processor.model)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.repo.ScanRecords(ctx, r.config.BatchSize, func(records []storage.Record) error {
		if err := r.processor.Process(ctx, records); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(records)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding aborted", "processed", processed, "total", total, "err", err)
		return Summary{Records: processed, Elapsed: tracker.Elapsed()}, err
	}
	tracker.Finish()

	summary := Summary{Records: processed, Elapsed: tracker.Elapsed()}
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		processed, summary.Elapsed.Round(time.Millisecond), float64(processed)/summary.Elapsed.Seconds())
	return summary, nil
}
