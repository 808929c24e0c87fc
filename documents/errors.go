package documents

import "errors"

var (
	// ErrRootRequired is returned when no input root is configured.
	ErrRootRequired = errors.New("documents root required")

	// ErrNoExtensions is returned when the extension filter is empty.
	ErrNoExtensions = errors.New("at least one file extension required")

	// ErrInvalidChunking is returned for a non-positive chunk size or an
	// overlap that is negative or not smaller than the chunk size.
	ErrInvalidChunking = errors.New("invalid chunk size or overlap")

	// ErrInvalidBatchSize is returned for a non-positive batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)
