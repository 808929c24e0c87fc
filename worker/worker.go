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


package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is a worker's lifecycle position. It only moves forward.
type State int32

const (
	// StateRunning is the initial state.
	StateRunning State = iota
	// StateStopping means a stop was requested and the loop will exit at its
	// next iteration boundary.
	StateStopping
	// StateStopped means the loop has exited.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds the per-stage settings of a worker.
type Config struct {
	// Name identifies the worker in logs and status reports.
	Name string

	// BatchSize is the maximum number of items pulled per iteration.
	BatchSize int

	// IdleDelay is the pause after every iteration that did not end the stream.
	IdleDelay time.Duration
}

// Processor transforms one batch of input into output.
// A terminal processor returns receipts for the side effects it performed.
type Processor[In, Out any] interface {
	Process(ctx context.Context, items []In) ([]Out, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc[In, Out any] func(ctx context.Context, items []In) ([]Out, error)

// Process calls f(ctx, items).
func (f ProcessorFunc[In, Out]) Process(ctx context.Context, items []In) ([]Out, error) {
	return f(ctx, items)
}

// Passthrough returns a processor that forwards its input unchanged.
func Passthrough[T any]() Processor[T, T] {
	return ProcessorFunc[T, T](func(_ context.Context, items []T) ([]T, error) {
		return items, nil
	})
}

// Stage binds a worker to its collaborators.
// Exactly one of Sink and Signal is set: Sink for intermediate stages,
// Signal for the terminal stage.
type Stage[In, Out any] struct {
	Source    Source[In]
	Processor Processor[In, Out]
	Sink      Sink[Out]
	Signal    *Signal
}

// Stats counts items as they move through a worker.
type Stats struct {
	Batches   int64 // batches handed to the processor
	Processed int64 // input items processed successfully
	Dropped   int64 // input items dropped after a processing error
	Emitted   int64 // output items pushed downstream or recorded as receipts
}

// Option configures a Worker.
type Option func(*settings) error

type settings struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Worker runs one pipeline stage: pull a batch, process it, push the
// result, pause, repeat, until end of stream or a stop request.
type Worker[In, Out any] struct {
	cfg    Config
	stage  Stage[In, Out]
	logger *slog.Logger

	state    atomic.Int32
	started  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error // written before done is closed

	batches   atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	emitted   atomic.Int64
}

// New creates a worker for stage.
func New[In, Out any](cfg Config, stage Stage[In, Out], opts ...Option) (*Worker[In, Out], error) {
	if stage.Source == nil {
		return nil, ErrSourceRequired
	}
	if stage.Processor == nil {
		return nil, ErrProcessorRequired
	}
	if stage.Sink == nil && stage.Signal == nil {
		return nil, ErrSignalRequired
	}
	if stage.Sink != nil && stage.Signal != nil {
		return nil, ErrUnexpectedSignal
	}
	if cfg.BatchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if cfg.IdleDelay < 0 {
		return nil, ErrInvalidIdleDelay
	}

	s := &settings{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return &Worker[In, Out]{
		cfg:    cfg,
		stage:  stage,
		logger: s.logger.With("worker", cfg.Name),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Name returns the worker's configured name.
func (w *Worker[In, Out]) Name() string {
	return w.cfg.Name
}

// State returns the current lifecycle state.
func (w *Worker[In, Out]) State() State {
	return State(w.state.Load())
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker[In, Out]) Stats() Stats {
	return Stats{
		Batches:   w.batches.Load(),
		Processed: w.processed.Load(),
		Dropped:   w.dropped.Load(),
		Emitted:   w.emitted.Load(),
	}
}

// Done returns a channel closed once Run has returned.
func (w *Worker[In, Out]) Done() <-chan struct{} {
	return w.done
}

// Err returns the error Run returned. Only meaningful after Done is closed.
func (w *Worker[In, Out]) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Stop asks the loop to exit at its next iteration boundary and wakes an
// idle wait. It does not interrupt a batch in flight. Stop is idempotent.
func (w *Worker[In, Out]) Stop() {
	w.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Run executes the loop until end of stream, a stop request, or a fatal
// error from the source or sink. Processing errors are logged and the batch
// is dropped. A panic inside the loop is returned as ErrWorkerPanic.
func (w *Worker[In, Out]) Run(ctx context.Context) (err error) {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrWorkerPanic, w.cfg.Name, r)
		}
		w.err = err
		w.state.Store(int32(StateStopped))
		close(w.done)

		stats := w.Stats()
		if err != nil {
			w.logger.Error("worker failed", "err", err,
				"processed", stats.Processed, "dropped", stats.Dropped, "emitted", stats.Emitted)
		} else {
			w.logger.Info("worker stopped",
				"processed", stats.Processed, "dropped", stats.Dropped, "emitted", stats.Emitted)
		}
	}()

	w.logger.Info("worker started", "batchSize", w.cfg.BatchSize, "idleDelay", w.cfg.IdleDelay)

	for {
		if w.stopRequested() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := w.stage.Source.PopBatch(ctx, w.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("%s: pop batch: %w", w.cfg.Name, err)
		}

		if len(batch.Items) > 0 {
			if err := w.handle(ctx, batch.Items); err != nil {
				return err
			}
		}

		if batch.Ended {
			return w.endStream(ctx)
		}

		w.idle(ctx)
	}
}

// handle processes one batch and forwards the output.
func (w *Worker[In, Out]) handle(ctx context.Context, items []In) error {
	w.batches.Add(1)

	out, err := w.stage.Processor.Process(ctx, items)
	if err != nil {
		w.dropped.Add(int64(len(items)))
		w.logger.Error("dropping batch after processing error", "items", len(items), "err", err)
		return nil
	}
	w.processed.Add(int64(len(items)))

	if w.stage.Sink == nil || len(out) == 0 {
		w.emitted.Add(int64(len(out)))
		w.logger.Debug("processed batch", "items", len(items), "results", len(out))
		return nil
	}

	if err := w.stage.Sink.PushBatch(ctx, out); err != nil {
		return fmt.Errorf("%s: push batch: %w", w.cfg.Name, err)
	}
	w.emitted.Add(int64(len(out)))
	w.logger.Debug("forwarded batch", "items", len(items), "results", len(out))
	return nil
}

// endStream propagates end of stream downstream, or fires the completion
// signal if this is the terminal stage.
func (w *Worker[In, Out]) endStream(ctx context.Context) error {
	if w.stage.Sink != nil {
		if err := w.stage.Sink.PushEndOfStream(ctx); err != nil {
			return fmt.Errorf("%s: push end of stream: %w", w.cfg.Name, err)
		}
		w.logger.Info("end of stream forwarded")
		return nil
	}

	if w.stage.Signal.Fire() {
		w.logger.Info("end of stream reached, pipeline complete")
	}
	return nil
}

// idle waits for IdleDelay, returning early on Stop or context cancellation.
func (w *Worker[In, Out]) idle(ctx context.Context) {
	if w.cfg.IdleDelay <= 0 {
		return
	}

	timer := time.NewTimer(w.cfg.IdleDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-w.stopCh:
	case <-ctx.Done():
	}
}

func (w *Worker[In, Out]) stopRequested() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}
