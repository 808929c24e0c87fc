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


package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/docflow/core"
	"github.com/redis/go-redis/v9"
)

// Batch is the outcome of a pop.
//
// Ended reports that the end-of-stream marker was read and consumed. An
// empty batch that has not ended means the queue is drained but still open.
type Batch[T any] struct {
	Items []T
	Ended bool
}

// Empty reports whether the batch carries no items and no end marker.
func (b Batch[T]) Empty() bool {
	return len(b.Items) == 0 && !b.Ended
}

// Option configures a BufferQueue.
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

// BufferQueue is a durable FIFO of items stored in a Redis list.
//
// A BufferQueue owns its client; it is meant to be used by one worker.
// Methods are safe for concurrent use, but ordering guarantees only hold for
// a single producer and a single consumer.
type BufferQueue[T any] struct {
	cfg     Config
	codec   core.Codec[T]
	options *redis.Options
	logger  *slog.Logger

	mu     sync.Mutex
	client *redis.Client
	closed bool
}

// New connects to the queue described by cfg.
// Returns ErrConnectionFailed if no connection could be made within
// cfg.MaxRetries attempts.
func New[T any](ctx context.Context, cfg Config, codec core.Codec[T], opts ...Option) (*BufferQueue[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if codec == nil {
		return nil, ErrCodecRequired
	}

	s := &settings{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	options, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("queue %s: parse url: %w", cfg.Name, err)
	}
	// Retries are handled here, not inside the client.
	options.MaxRetries = -1
	options.DialTimeout = cfg.SocketTimeout
	options.ReadTimeout = cfg.SocketTimeout
	options.WriteTimeout = cfg.SocketTimeout

	q := &BufferQueue[T]{
		cfg:     cfg,
		codec:   codec,
		options: options,
		logger:  s.logger.With("queue", cfg.Name),
	}

	client, err := q.connect(ctx)
	if err != nil {
		return nil, err
	}
	q.client = client
	return q, nil
}

// Name returns the queue's name.
func (q *BufferQueue[T]) Name() string {
	return q.cfg.Name
}

// PushBatch appends items to the tail of the queue in order.
// The push is a single round trip but is not transactional.
func (q *BufferQueue[T]) PushBatch(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]any, 0, len(items))
	for _, item := range items {
		payload, err := q.codec.Encode(item)
		if err != nil {
			return err
		}
		record, err := encodeItem(payload)
		if err != nil {
			return err
		}
		values = append(values, record)
	}

	err := q.do(ctx, "push", func(client *redis.Client) error {
		return client.RPush(ctx, q.cfg.Name, values...).Err()
	})
	if err != nil {
		return err
	}
	q.logger.Debug("pushed batch", "items", len(items))
	return nil
}

// PushEndOfStream appends the end-of-stream marker. The queue's producer
// calls this exactly once, after its last PushBatch.
func (q *BufferQueue[T]) PushEndOfStream(ctx context.Context) error {
	record, err := encodeEndOfStream()
	if err != nil {
		return err
	}
	err = q.do(ctx, "push end of stream", func(client *redis.Client) error {
		return client.RPush(ctx, q.cfg.Name, record).Err()
	})
	if err != nil {
		return err
	}
	q.logger.Info("pushed end of stream")
	return nil
}

// PopBatch removes up to maxItems records from the head of the queue.
//
// Reading the end-of-stream marker consumes it and sets Ended; slots after
// the marker are not filled. Items read before the marker in the same call
// are returned with it. Records that cannot be decoded are logged and
// skipped.
func (q *BufferQueue[T]) PopBatch(ctx context.Context, maxItems int) (Batch[T], error) {
	if maxItems <= 0 {
		return Batch[T]{}, ErrInvalidBatchSize
	}

	var raw [][]byte
	err := q.do(ctx, "pop", func(client *redis.Client) error {
		raw = raw[:0]
		pipe := client.Pipeline()
		cmds := make([]*redis.StringCmd, maxItems)
		for i := range cmds {
			cmds[i] = pipe.LPop(ctx, q.cfg.Name)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for _, cmd := range cmds {
			data, err := cmd.Bytes()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				return err
			}
			raw = append(raw, data)
		}
		return nil
	})
	if err != nil {
		return Batch[T]{}, err
	}

	var batch Batch[T]
	for i, data := range raw {
		payload, eos, err := decodeEnvelope(data)
		if err != nil {
			q.logger.Error("dropping unreadable record", "err", err)
			continue
		}
		if eos {
			batch.Ended = true
			q.restore(ctx, raw[i+1:])
			break
		}
		item, err := q.codec.Decode(payload)
		if err != nil {
			q.logger.Error("dropping undecodable item", "err", err)
			continue
		}
		batch.Items = append(batch.Items, item)
	}

	if batch.Ended {
		q.logger.Info("received end of stream", "items", len(batch.Items))
	} else if len(batch.Items) > 0 {
		q.logger.Debug("popped batch", "items", len(batch.Items))
	}
	return batch, nil
}

// restore puts records popped past the end marker back at the head of the
// queue, preserving their order.
func (q *BufferQueue[T]) restore(ctx context.Context, records [][]byte) {
	if len(records) == 0 {
		return
	}
	q.logger.Warn("records found after end of stream", "records", len(records))

	values := make([]any, 0, len(records))
	for _, record := range slices.Backward(records) {
		values = append(values, record)
	}
	err := q.do(ctx, "restore", func(client *redis.Client) error {
		return client.LPush(ctx, q.cfg.Name, values...).Err()
	})
	if err != nil {
		q.logger.Error("failed to restore records after end of stream", "records", len(records), "err", err)
	}
}

// Size returns the number of records currently stored, including an
// unconsumed end-of-stream marker.
func (q *BufferQueue[T]) Size(ctx context.Context) (int64, error) {
	var size int64
	err := q.do(ctx, "size", func(client *redis.Client) error {
		var err error
		size, err = client.LLen(ctx, q.cfg.Name).Result()
		return err
	})
	return size, err
}

// Clear removes every record, including any end-of-stream marker.
func (q *BufferQueue[T]) Clear(ctx context.Context) error {
	return q.do(ctx, "clear", func(client *redis.Client) error {
		return client.Del(ctx, q.cfg.Name).Err()
	})
}

// Close releases the queue's connection. The stored records are untouched.
func (q *BufferQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	if q.client == nil {
		return nil
	}
	err := q.client.Close()
	q.client = nil
	return err
}

// do runs op, reconnecting and retrying when it fails on a connection error.
// Exhausting cfg.MaxRetries surfaces ErrConnectionFailed.
func (q *BufferQueue[T]) do(ctx context.Context, name string, op func(*redis.Client) error) error {
	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxRetries; attempt++ {
		client, err := q.acquire(ctx)
		if err != nil {
			return err
		}

		lastErr = op(client)
		if !isConnectionError(lastErr) {
			return lastErr
		}

		q.logger.Warn("queue operation failed, reconnecting",
			"op", name, "attempt", attempt, "maxAttempts", q.cfg.MaxRetries, "err", lastErr)
		q.discard(client)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrConnectionFailed, name, q.cfg.Name, lastErr)
}

// acquire returns the live client, connecting first if the previous one
// was discarded.
func (q *BufferQueue[T]) acquire(ctx context.Context) (*redis.Client, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}
	if q.client != nil {
		return q.client, nil
	}

	client, err := q.connect(ctx)
	if err != nil {
		return nil, err
	}
	q.client = client
	return client, nil
}

// discard drops client if it is still the current one.
func (q *BufferQueue[T]) discard(client *redis.Client) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.client == client {
		q.client = nil
	}
	_ = client.Close()
}

// connect makes up to cfg.MaxRetries attempts to reach the server, pausing
// cfg.RetryDelay between attempts. It returns a live client or an error,
// never neither.
func (q *BufferQueue[T]) connect(ctx context.Context) (*redis.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxRetries; attempt++ {
		client := redis.NewClient(q.options)
		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			if attempt > 1 {
				q.logger.Info("connected after retry", "attempt", attempt)
			}
			return client, nil
		}
		_ = client.Close()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		q.logger.Warn("connection attempt failed",
			"attempt", attempt, "maxAttempts", q.cfg.MaxRetries, "err", lastErr)

		if attempt == q.cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(q.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrConnectionFailed, q.cfg.Name, q.cfg.MaxRetries, lastErr)
}

// isConnectionError reports whether err means the server could not be
// reached, as opposed to a reply from the server or a cancelled context.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var replyErr redis.Error
	return !errors.As(err, &replyErr)
}
