package ingestion

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrInvalidMaxAttempts is returned when a retry is configured with fewer than one attempt.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrEmbeddingFailed is returned when no chunk in a batch could be embedded.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrNothingToPersist is returned when every item in a batch was invalid.
	ErrNothingToPersist = errors.New("no valid items to persist")
)
