package worker

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docflow/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memQueue is an in-memory Source and Sink that follows the queue contract.
type memQueue[T any] struct {
	mu        sync.Mutex
	records   []record[T]
	eosPushes int
	popErr    error
	pushErr   error
	popCalls  int
	pushCalls int
}

type record[T any] struct {
	item T
	eos  bool
}

func (q *memQueue[T]) PopBatch(_ context.Context, maxItems int) (queue.Batch[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.popCalls++
	if q.popErr != nil {
		return queue.Batch[T]{}, q.popErr
	}
	var batch queue.Batch[T]
	for len(q.records) > 0 && len(batch.Items) < maxItems {
		r := q.records[0]
		q.records = q.records[1:]
		if r.eos {
			batch.Ended = true
			break
		}
		batch.Items = append(batch.Items, r.item)
	}
	return batch, nil
}

func (q *memQueue[T]) PushBatch(_ context.Context, items []T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushCalls++
	if q.pushErr != nil {
		return q.pushErr
	}
	for _, item := range items {
		q.records = append(q.records, record[T]{item: item})
	}
	return nil
}

func (q *memQueue[T]) PushEndOfStream(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.eosPushes++
	q.records = append(q.records, record[T]{eos: true})
	return nil
}

func (q *memQueue[T]) items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []T
	for _, r := range q.records {
		if !r.eos {
			out = append(out, r.item)
		}
	}
	return out
}

func (q *memQueue[T]) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

func seqOf(batches ...[]string) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for _, b := range batches {
			if !yield(b) {
				return
			}
		}
	}
}

func upper() Processor[string, string] {
	return ProcessorFunc[string, string](func(_ context.Context, items []string) ([]string, error) {
		out := make([]string, len(items))
		for i, s := range items {
			out[i] = strings.ToUpper(s)
		}
		return out, nil
	})
}

func runAsync[In, Out any](t *testing.T, w *Worker[In, Out]) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		t.Fatal("worker did not exit in time")
		return nil
	}
}

func TestNew_Validation(t *testing.T) {
	src := &memQueue[string]{}
	sink := &memQueue[string]{}
	cfg := Config{Name: "w", BatchSize: 1}

	_, err := New(cfg, Stage[string, string]{Processor: upper(), Sink: sink})
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = New(cfg, Stage[string, string]{Source: src, Sink: sink})
	assert.ErrorIs(t, err, ErrProcessorRequired)

	_, err = New(cfg, Stage[string, string]{Source: src, Processor: upper()})
	assert.ErrorIs(t, err, ErrSignalRequired)

	_, err = New(cfg, Stage[string, string]{Source: src, Processor: upper(), Sink: sink, Signal: NewSignal()})
	assert.ErrorIs(t, err, ErrUnexpectedSignal)

	_, err = New(Config{Name: "w"}, Stage[string, string]{Source: src, Processor: upper(), Sink: sink})
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = New(Config{Name: "w", BatchSize: 1, IdleDelay: -time.Second}, Stage[string, string]{Source: src, Processor: upper(), Sink: sink})
	assert.ErrorIs(t, err, ErrInvalidIdleDelay)
}

func TestWorker_ForwardsAndPropagatesEndOfStream(t *testing.T) {
	sink := &memQueue[string]{}
	w, err := New(Config{Name: "chunk", BatchSize: 2},
		Stage[string, string]{Source: FromSeq(seqOf([]string{"a", "b", "c"}, []string{"d"})), Processor: upper(), Sink: sink})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []string{"A", "B", "C", "D"}, sink.items())
	assert.Equal(t, 1, sink.eosPushes)
	assert.Equal(t, StateStopped, w.State())
	assert.Equal(t, Stats{Batches: 2, Processed: 4, Emitted: 4}, w.Stats())
}

func TestWorker_EmptySequenceStillEndsStream(t *testing.T) {
	sink := &memQueue[string]{}
	w, err := New(Config{Name: "chunk", BatchSize: 10},
		Stage[string, string]{Source: FromSeq(seqOf()), Processor: upper(), Sink: sink})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, sink.items())
	assert.Equal(t, 1, sink.eosPushes)
}

func TestWorker_TerminalFiresSignal(t *testing.T) {
	src := &memQueue[string]{}
	require.NoError(t, src.PushBatch(context.Background(), []string{"a", "b", "c"}))
	require.NoError(t, src.PushEndOfStream(context.Background()))

	var persisted []string
	signal := NewSignal()
	w, err := New(Config{Name: "persist", BatchSize: 10},
		Stage[string, int]{
			Source: src,
			Processor: ProcessorFunc[string, int](func(_ context.Context, items []string) ([]int, error) {
				persisted = append(persisted, items...)
				return make([]int, len(items)), nil
			}),
			Signal: signal,
		})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))
	assert.True(t, signal.IsSet())
	assert.Equal(t, []string{"a", "b", "c"}, persisted)
	assert.Equal(t, int64(3), w.Stats().Emitted)
	assert.Equal(t, 0, src.size())
}

func TestWorker_TwoStages(t *testing.T) {
	const idle = 100 * time.Millisecond
	middle := &memQueue[string]{}
	signal := NewSignal()

	first, err := New(Config{Name: "chunk", BatchSize: 10, IdleDelay: idle},
		Stage[string, string]{
			Source:    FromSeq(seqOf([]string{"c1", "c2", "c3", "c4", "c5"})),
			Processor: Passthrough[string](),
			Sink:      middle,
		})
	require.NoError(t, err)

	var mu sync.Mutex
	var received []string
	second, err := New(Config{Name: "persist", BatchSize: 10, IdleDelay: idle},
		Stage[string, string]{
			Source: middle,
			Processor: ProcessorFunc[string, string](func(_ context.Context, items []string) ([]string, error) {
				mu.Lock()
				defer mu.Unlock()
				received = append(received, items...)
				return items, nil
			}),
			Signal: signal,
		})
	require.NoError(t, err)

	errSecond := runAsync(t, second)
	require.NoError(t, first.Run(context.Background()))

	// The terminal stage sleeps at most one idle delay before it sees the
	// end-of-stream marker.
	select {
	case <-signal.Done():
	case <-time.After(idle + idle/2):
		t.Fatal("completion signal not set within one idle delay")
	}
	require.NoError(t, waitErr(t, errSecond, time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"c1", "c2", "c3", "c4", "c5"}, received)
	assert.Equal(t, 0, middle.size())
}

func TestWorker_ProcessingErrorDropsBatch(t *testing.T) {
	src := &memQueue[string]{}
	ctx := context.Background()
	require.NoError(t, src.PushBatch(ctx, []string{"ok1", "bad", "ok2"}))
	require.NoError(t, src.PushEndOfStream(ctx))
	sink := &memQueue[string]{}

	w, err := New(Config{Name: "embed", BatchSize: 1},
		Stage[string, string]{
			Source: src,
			Processor: ProcessorFunc[string, string](func(_ context.Context, items []string) ([]string, error) {
				if items[0] == "bad" {
					return nil, errors.New("model unavailable")
				}
				return items, nil
			}),
			Sink: sink,
		})
	require.NoError(t, err)

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, []string{"ok1", "ok2"}, sink.items())
	assert.Equal(t, 1, sink.eosPushes)
	assert.Equal(t, int64(1), w.Stats().Dropped)
	assert.Equal(t, int64(2), w.Stats().Processed)
}

func TestWorker_EmptyOutputIsNotPushed(t *testing.T) {
	src := &memQueue[string]{}
	ctx := context.Background()
	require.NoError(t, src.PushBatch(ctx, []string{"a"}))
	require.NoError(t, src.PushEndOfStream(ctx))
	sink := &memQueue[string]{}

	w, err := New(Config{Name: "embed", BatchSize: 5},
		Stage[string, string]{
			Source: src,
			Processor: ProcessorFunc[string, string](func(context.Context, []string) ([]string, error) {
				return nil, nil
			}),
			Sink: sink,
		})
	require.NoError(t, err)

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 0, sink.pushCalls)
	assert.Equal(t, 1, sink.eosPushes)
}

func TestWorker_SourceErrorIsFatal(t *testing.T) {
	src := &memQueue[string]{popErr: queue.ErrConnectionFailed}
	w, err := New(Config{Name: "embed", BatchSize: 5},
		Stage[string, string]{Source: src, Processor: upper(), Sink: &memQueue[string]{}})
	require.NoError(t, err)

	err = w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrConnectionFailed)
	assert.Equal(t, StateStopped, w.State())
	assert.ErrorIs(t, w.Err(), queue.ErrConnectionFailed)
}

func TestWorker_SinkErrorIsFatal(t *testing.T) {
	src := &memQueue[string]{}
	require.NoError(t, src.PushBatch(context.Background(), []string{"a"}))
	sink := &memQueue[string]{pushErr: queue.ErrConnectionFailed}

	w, err := New(Config{Name: "embed", BatchSize: 5},
		Stage[string, string]{Source: src, Processor: upper(), Sink: sink})
	require.NoError(t, err)

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, queue.ErrConnectionFailed)
}

func TestWorker_PanicIsReported(t *testing.T) {
	src := &memQueue[string]{}
	require.NoError(t, src.PushBatch(context.Background(), []string{"a"}))

	w, err := New(Config{Name: "embed", BatchSize: 5},
		Stage[string, string]{
			Source: src,
			Processor: ProcessorFunc[string, string](func(context.Context, []string) ([]string, error) {
				panic("boom")
			}),
			Sink: &memQueue[string]{},
		})
	require.NoError(t, err)

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, ErrWorkerPanic)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StateStopped, w.State())
	select {
	case <-w.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestWorker_StopInterruptsIdleWait(t *testing.T) {
	src := &memQueue[string]{}
	w, err := New(Config{Name: "embed", BatchSize: 5, IdleDelay: time.Hour},
		Stage[string, string]{Source: src, Processor: upper(), Sink: &memQueue[string]{}})
	require.NoError(t, err)

	errCh := runAsync(t, w)
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.popCalls > 0
	}, time.Second, 5*time.Millisecond)

	w.Stop()
	assert.Contains(t, []State{StateStopping, StateStopped}, w.State())
	require.NoError(t, waitErr(t, errCh, time.Second))
	assert.Equal(t, StateStopped, w.State())

	// Stop after exit leaves the state alone.
	w.Stop()
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_StopBeforeRun(t *testing.T) {
	src := &memQueue[string]{}
	w, err := New(Config{Name: "embed", BatchSize: 5},
		Stage[string, string]{Source: src, Processor: upper(), Sink: &memQueue[string]{}})
	require.NoError(t, err)

	w.Stop()
	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 0, src.popCalls)
}

func TestWorker_StopDoesNotPreemptBatch(t *testing.T) {
	src := &memQueue[string]{}
	require.NoError(t, src.PushBatch(context.Background(), []string{"a", "b"}))
	sink := &memQueue[string]{}

	inProcess := make(chan struct{})
	release := make(chan struct{})
	w, err := New(Config{Name: "embed", BatchSize: 5},
		Stage[string, string]{
			Source: src,
			Processor: ProcessorFunc[string, string](func(_ context.Context, items []string) ([]string, error) {
				close(inProcess)
				<-release
				return items, nil
			}),
			Sink: sink,
		})
	require.NoError(t, err)

	errCh := runAsync(t, w)
	<-inProcess
	w.Stop()
	close(release)

	require.NoError(t, waitErr(t, errCh, time.Second))
	assert.Equal(t, []string{"a", "b"}, sink.items())
	assert.Equal(t, 0, sink.eosPushes)
}

func TestWorker_RunTwice(t *testing.T) {
	w, err := New(Config{Name: "chunk", BatchSize: 5},
		Stage[string, string]{Source: FromSeq(seqOf()), Processor: upper(), Sink: &memQueue[string]{}})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))
	assert.ErrorIs(t, w.Run(context.Background()), ErrAlreadyRunning)
}

func TestWorker_ContextCancelled(t *testing.T) {
	src := &memQueue[string]{}
	w, err := New(Config{Name: "embed", BatchSize: 5, IdleDelay: time.Hour},
		Stage[string, string]{Source: src, Processor: upper(), Sink: &memQueue[string]{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	cancel()

	assert.ErrorIs(t, waitErr(t, errCh, time.Second), context.Canceled)
}

func TestSignal(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.IsSet())
	assert.True(t, s.Fire())
	assert.False(t, s.Fire())
	assert.True(t, s.IsSet())
	<-s.Done()
}

func TestSeqSource(t *testing.T) {
	src := FromSeq(seqOf([]string{"a", "b", "c"}, []string{}, []string{"d", "e"}))
	ctx := context.Background()

	var popped [][]string
	for {
		batch, err := src.PopBatch(ctx, 2)
		require.NoError(t, err)
		if len(batch.Items) > 0 {
			popped = append(popped, slices.Clone(batch.Items))
		}
		if batch.Ended {
			break
		}
	}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, popped)

	batch, err := src.PopBatch(ctx, 2)
	require.NoError(t, err)
	assert.True(t, batch.Ended)

	_, err = src.PopBatch(ctx, 0)
	assert.ErrorIs(t, err, queue.ErrInvalidBatchSize)
}

func TestSeqSource_CloseStopsSequence(t *testing.T) {
	stopped := false
	var seq iter.Seq[[]string] = func(yield func([]string) bool) {
		defer func() { stopped = true }()
		for {
			if !yield([]string{"x"}) {
				return
			}
		}
	}
	src := FromSeq(seq)
	_, err := src.PopBatch(context.Background(), 1)
	require.NoError(t, err)
	src.Close()
	assert.True(t, stopped)
}

func TestSeqSource_OpensWithFirstPopContext(t *testing.T) {
	type ctxKey struct{}
	var opened context.Context
	src := FromSeqFunc(func(ctx context.Context) iter.Seq[[]string] {
		opened = ctx
		return seqOf([]string{"a"})
	})
	assert.Nil(t, opened)

	ctx := context.WithValue(context.Background(), ctxKey{}, "run")
	batch, err := src.PopBatch(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, batch.Items)
	assert.True(t, batch.Ended)
	require.NotNil(t, opened)
	assert.Equal(t, "run", opened.Value(ctxKey{}))
}

func TestSeqSource_CloseBeforeOpen(t *testing.T) {
	src := FromSeqFunc(func(context.Context) iter.Seq[[]string] {
		t.Fatal("sequence should not be opened")
		return nil
	})
	src.Close()

	batch, err := src.PopBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, batch.Ended)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
