package reembed

import "errors"

var (
	// ErrRepositoryRequired is returned when no record repository is provided.
	ErrRepositoryRequired = errors.New("record repository required")

	// ErrProviderRequired is returned when no AI provider is provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrInvalidBatchSize is returned for a batch size below 1.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrEmbeddingMismatch is returned when the embedder returns the wrong
	// number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
