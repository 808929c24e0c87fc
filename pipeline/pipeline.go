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


package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/ingestion"
	"github.com/poiesic/docflow/worker"
)

// Worker names, in start order.
const (
	ChunkWorker   = "chunk"
	EmbedWorker   = "embed"
	PersistWorker = "persist"
)

// Config holds the pipeline's timing and per-stage settings.
type Config struct {
	// StartDelay separates the start of successive workers.
	StartDelay time.Duration

	Chunk   worker.Config
	Embed   worker.Config
	Persist worker.Config
}

// DefaultConfig returns a 3s start delay and, per stage, batches of 50 with
// a 2s idle delay.
func DefaultConfig() Config {
	stage := func(name string) worker.Config {
		return worker.Config{Name: name, BatchSize: 50, IdleDelay: 2 * time.Second}
	}
	return Config{
		StartDelay: 3 * time.Second,
		Chunk:      stage(ChunkWorker),
		Embed:      stage(EmbedWorker),
		Persist:    stage(PersistWorker),
	}
}

// Stages supplies the collaborators of the three workers. Each queue handle
// belongs to exactly one worker: the producer and consumer of a queue hold
// separate handles.
type Stages struct {
	// Chunker produces the input of the chunk worker.
	Chunker ingestion.Chunker

	// DocumentsOut is the chunk worker's handle on the document queue.
	DocumentsOut worker.Sink[core.Chunk]
	// DocumentsIn is the embed worker's handle on the document queue.
	DocumentsIn worker.Source[core.Chunk]

	// Embedder turns chunks into embedded chunks.
	Embedder worker.Processor[core.Chunk, core.EmbeddedChunk]

	// EmbeddingsOut is the embed worker's handle on the embedding queue.
	EmbeddingsOut worker.Sink[core.EmbeddedChunk]
	// EmbeddingsIn is the persist worker's handle on the embedding queue.
	EmbeddingsIn worker.Source[core.EmbeddedChunk]

	// Persister stores embedded chunks and returns their ids.
	Persister worker.Processor[core.EmbeddedChunk, string]
}

func (s Stages) validate() error {
	switch {
	case s.Chunker == nil:
		return ErrChunkerRequired
	case s.DocumentsOut == nil || s.DocumentsIn == nil:
		return fmt.Errorf("%w: document queue", ErrQueueRequired)
	case s.EmbeddingsOut == nil || s.EmbeddingsIn == nil:
		return fmt.Errorf("%w: embedding queue", ErrQueueRequired)
	case s.Embedder == nil:
		return fmt.Errorf("%w: embed", ErrProcessorRequired)
	case s.Persister == nil:
		return fmt.Errorf("%w: persist", ErrProcessorRequired)
	}
	return nil
}

// Status reports one worker's progress.
type Status struct {
	Name  string
	State worker.State
	Stats worker.Stats
}

// runner is the type-erased view of a worker the pipeline drives.
type runner interface {
	Name() string
	State() worker.State
	Stats() worker.Stats
	Run(ctx context.Context) error
	Stop()
	Done() <-chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// Pipeline runs the chunk, embed and persist workers and tracks completion.
type Pipeline struct {
	cfg     Config
	workers []runner
	source  *worker.SeqSource[core.Chunk]
	signal  *worker.Signal
	logger  *slog.Logger

	mu       sync.Mutex
	started  bool
	stopping bool
	launched int
	cancel   context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once

	fault     error
	faultCh   chan struct{}
	faultOnce sync.Once

	exited chan struct{}
}

// New wires the three workers. Nothing runs until Start.
func New(cfg Config, stages Stages, opts ...Option) (*Pipeline, error) {
	if cfg.StartDelay < 0 {
		return nil, ErrInvalidStartDelay
	}
	if err := stages.validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		signal:  worker.NewSignal(),
		logger:  slog.Default(),
		stopCh:  make(chan struct{}),
		faultCh: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")
	workerOpts := []worker.Option{worker.WithLogger(p.logger)}

	p.source = worker.FromSeqFunc(stages.Chunker.ScanAndChunk)
	chunk, err := worker.New(withName(cfg.Chunk, ChunkWorker), worker.Stage[core.Chunk, core.Chunk]{
		Source:    p.source,
		Processor: worker.Passthrough[core.Chunk](),
		Sink:      stages.DocumentsOut,
	}, workerOpts...)
	if err != nil {
		return nil, fmt.Errorf("chunk worker: %w", err)
	}

	embed, err := worker.New(withName(cfg.Embed, EmbedWorker), worker.Stage[core.Chunk, core.EmbeddedChunk]{
		Source:    stages.DocumentsIn,
		Processor: stages.Embedder,
		Sink:      stages.EmbeddingsOut,
	}, workerOpts...)
	if err != nil {
		return nil, fmt.Errorf("embed worker: %w", err)
	}

	persist, err := worker.New(withName(cfg.Persist, PersistWorker), worker.Stage[core.EmbeddedChunk, string]{
		Source:    stages.EmbeddingsIn,
		Processor: stages.Persister,
		Signal:    p.signal,
	}, workerOpts...)
	if err != nil {
		return nil, fmt.Errorf("persist worker: %w", err)
	}

	p.workers = []runner{chunk, embed, persist}
	return p, nil
}

func withName(cfg worker.Config, name string) worker.Config {
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cfg
}

// Start launches the workers in order, waiting StartDelay between launches.
// It returns once every worker is running, or early if ctx ends, Stop is
// called, or a worker fails during the stagger. Workers keep running after
// ctx ends; call Stop to end them.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.mu.Unlock()

	group, groupCtx := errgroup.WithContext(runCtx)
	defer func() {
		go func() {
			group.Wait()
			close(p.exited)
		}()
	}()

	for i, w := range p.workers {
		if i > 0 {
			if err := p.stagger(ctx); err != nil {
				return err
			}
		}

		p.mu.Lock()
		if p.stopping {
			p.mu.Unlock()
			return nil
		}
		p.launched++
		p.mu.Unlock()

		p.logger.Info("starting worker", "worker", w.Name())
		first := i == 0
		group.Go(func() error {
			err := w.Run(groupCtx)
			if first {
				// The sequence is only touched from this goroutine.
				p.source.Close()
			}
			if err != nil {
				p.recordFault(w.Name(), err)
			}
			return err
		})
	}
	return nil
}

// stagger waits StartDelay unless ctx ends, Stop is called, or a worker fails.
func (p *Pipeline) stagger(ctx context.Context) error {
	if p.cfg.StartDelay <= 0 {
		return p.faultErr()
	}
	timer := time.NewTimer(p.cfg.StartDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-p.stopCh:
		return nil
	case <-p.faultCh:
		return p.fault
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) recordFault(name string, err error) {
	p.faultOnce.Do(func() {
		p.fault = fmt.Errorf("%w: %s: %w", ErrWorkerFailed, name, err)
		close(p.faultCh)
		p.logger.Error("worker failed, shutting down pipeline", "worker", name, "err", err)
	})
}

func (p *Pipeline) faultErr() error {
	select {
	case <-p.faultCh:
		return p.fault
	default:
		return nil
	}
}

// AwaitCompletion blocks until the terminal stage has drained its queue
// (nil), a worker fails (ErrWorkerFailed), every worker has exited without
// completion (ErrStoppedBeforeCompletion), or ctx ends.
func (p *Pipeline) AwaitCompletion(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	select {
	case <-p.signal.Done():
		return nil
	case <-p.faultCh:
		return p.fault
	case <-p.exited:
		if p.signal.IsSet() {
			return nil
		}
		if err := p.faultErr(); err != nil {
			return err
		}
		return ErrStoppedBeforeCompletion
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop asks every launched worker to stop, then waits for each to exit in
// start order. No worker is launched after Stop. It returns the first worker
// failure, if any, and is safe to call more than once.
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopping = true
		close(p.stopCh)
		launched := p.workers[:p.launched]
		started := p.started
		cancel := p.cancel
		p.mu.Unlock()

		p.logger.Info("stopping pipeline", "workers", len(launched))
		for _, w := range launched {
			w.Stop()
		}
		for _, w := range launched {
			<-w.Done()
			p.logger.Debug("worker exited", "worker", w.Name(), "state", w.State())
		}

		if len(launched) == 0 {
			p.source.Close()
		}
		if cancel != nil {
			cancel()
		}
		if started {
			<-p.exited
		}
		p.logger.Info("pipeline stopped", "completed", p.signal.IsSet())
	})
	return p.faultErr()
}

// Run starts the pipeline, waits for completion or ctx, and stops it.
// The first error encountered is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	err := p.Start(ctx)
	if err == nil {
		err = p.AwaitCompletion(ctx)
	}
	if stopErr := p.Stop(); err == nil {
		err = stopErr
	}
	return err
}

// Completed reports whether the terminal stage has reached end of stream.
func (p *Pipeline) Completed() bool {
	return p.signal.IsSet()
}

// Done returns a channel closed when the pipeline completes.
func (p *Pipeline) Done() <-chan struct{} {
	return p.signal.Done()
}

// Workers returns the status of each worker in start order.
func (p *Pipeline) Workers() []Status {
	statuses := make([]Status, len(p.workers))
	for i, w := range p.workers {
		statuses[i] = Status{Name: w.Name(), State: w.State(), Stats: w.Stats()}
	}
	return statuses
}
