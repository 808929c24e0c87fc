package storage

import (
	"context"

	"github.com/poiesic/docflow/core"
)

// VectorStore persists embedded chunks into a named collection.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// AddChunks stores items and returns one freshly generated id per item,
	// in input order. Content, vector, and metadata are stored as given.
	// Nothing deduplicates: storing the same item twice yields two records.
	AddChunks(ctx context.Context, items []core.EmbeddedChunk) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// VectorSearcher finds stored chunks similar to a query vector.
type VectorSearcher interface {
	// FindSimilar returns records with similarity >= minSimilarity, up to
	// limit results, ordered by score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]SearchResult, error)
}

// SearchResult is a stored record paired with its similarity to a query.
type SearchResult struct {
	Record Record
	Score  float32
}

// RecordRepository walks and rewrites the records of a collection in place.
// Only stores that own their data locally implement it.
type RecordRepository interface {
	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// ScanRecords calls fn with successive batches of at most batchSize
	// records, in key order. Iteration stops at the first error from fn.
	ScanRecords(ctx context.Context, batchSize int, fn func([]Record) error) error

	// UpdateRecords overwrites existing records, matched by ID. A record
	// that no longer exists yields ErrNotFound and nothing is written.
	UpdateRecords(ctx context.Context, records []Record) error
}
