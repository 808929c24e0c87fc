package pipeline

import "errors"

var (
	// ErrChunkerRequired is returned when no chunker feeds the first stage.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrQueueRequired is returned when a stage is missing a queue handle.
	ErrQueueRequired = errors.New("queue handle required")

	// ErrProcessorRequired is returned when the embed or persist processor is missing.
	ErrProcessorRequired = errors.New("processor required")

	// ErrInvalidStartDelay is returned for a negative start delay.
	ErrInvalidStartDelay = errors.New("start delay must not be negative")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("pipeline already started")

	// ErrNotStarted is returned when awaiting a pipeline that was never started.
	ErrNotStarted = errors.New("pipeline not started")

	// ErrWorkerFailed wraps the error of the first worker to fail.
	ErrWorkerFailed = errors.New("worker failed")

	// ErrStoppedBeforeCompletion is returned by AwaitCompletion when every
	// worker exited without the terminal stage reaching end of stream.
	ErrStoppedBeforeCompletion = errors.New("pipeline stopped before completion")
)
