package worker

import (
	"context"
	"iter"

	"github.com/poiesic/docflow/queue"
)

// Source supplies batches to a worker.
type Source[T any] interface {
	PopBatch(ctx context.Context, maxItems int) (queue.Batch[T], error)
}

// Sink receives a worker's output and its end-of-stream marker.
type Sink[T any] interface {
	PushBatch(ctx context.Context, items []T) error
	PushEndOfStream(ctx context.Context) error
}

var (
	_ Source[int] = (*queue.BufferQueue[int])(nil)
	_ Sink[int]   = (*queue.BufferQueue[int])(nil)
	_ Source[int] = (*SeqSource[int])(nil)
)

// SeqSource adapts a finite lazy sequence of batches into a Source. It
// re-slices the sequence's batches to the requested size and reports Ended
// once the sequence is exhausted. It never waits on anything but the
// sequence itself.
//
// A SeqSource is not safe for concurrent use.
type SeqSource[T any] struct {
	open    func(ctx context.Context) iter.Seq[[]T]
	next    func() ([]T, bool)
	stop    func()
	pending []T
	done    bool
}

// FromSeq returns a Source that drains seq.
func FromSeq[T any](seq iter.Seq[[]T]) *SeqSource[T] {
	return FromSeqFunc(func(context.Context) iter.Seq[[]T] { return seq })
}

// FromSeqFunc returns a Source that calls open with the context of the first
// pop and drains the sequence it returns.
func FromSeqFunc[T any](open func(ctx context.Context) iter.Seq[[]T]) *SeqSource[T] {
	return &SeqSource[T]{open: open}
}

// PopBatch returns up to maxItems items from the sequence.
func (s *SeqSource[T]) PopBatch(ctx context.Context, maxItems int) (queue.Batch[T], error) {
	if maxItems <= 0 {
		return queue.Batch[T]{}, queue.ErrInvalidBatchSize
	}
	if err := ctx.Err(); err != nil {
		return queue.Batch[T]{}, err
	}
	if s.next == nil && !s.done {
		s.next, s.stop = iter.Pull(s.open(ctx))
	}

	for len(s.pending) < maxItems && !s.done {
		batch, ok := s.next()
		if !ok {
			s.Close()
			break
		}
		s.pending = append(s.pending, batch...)
	}

	n := min(maxItems, len(s.pending))
	items := make([]T, n)
	copy(items, s.pending[:n])
	s.pending = s.pending[n:]

	return queue.Batch[T]{
		Items: items,
		Ended: s.done && len(s.pending) == 0,
	}, nil
}

// Close stops the underlying sequence. Later pops report Ended once any
// buffered items are gone.
func (s *SeqSource[T]) Close() {
	if s.done {
		return
	}
	s.done = true
	if s.stop != nil {
		s.stop()
	}
}
