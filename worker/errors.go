package worker

import "errors"

var (
	// ErrSourceRequired is returned when a worker is built without an upstream source.
	ErrSourceRequired = errors.New("source required")

	// ErrProcessorRequired is returned when a worker is built without a processor.
	ErrProcessorRequired = errors.New("processor required")

	// ErrSignalRequired is returned when a terminal worker has no completion signal.
	ErrSignalRequired = errors.New("terminal worker requires a completion signal")

	// ErrUnexpectedSignal is returned when a worker with a sink is given a completion signal.
	ErrUnexpectedSignal = errors.New("only the terminal worker may hold the completion signal")

	// ErrInvalidBatchSize is returned when the batch size is less than 1.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidIdleDelay is returned when the idle delay is negative.
	ErrInvalidIdleDelay = errors.New("idle delay cannot be negative")

	// ErrAlreadyRunning is returned when Run is called more than once.
	ErrAlreadyRunning = errors.New("worker already running")

	// ErrWorkerPanic wraps a panic recovered from the worker loop.
	ErrWorkerPanic = errors.New("worker panicked")
)
