package queue

import (
	"errors"
	"time"
)

// Config describes a single named queue and how to reach it.
type Config struct {
	// URL is the Redis connection URL.
	// Example: "redis://localhost:6379/0"
	URL string

	// Name is the key of the list holding the queue's records.
	Name string

	// MaxRetries bounds the attempts made to establish a connection, and the
	// attempts made for one operation that keeps failing on connection errors.
	// Default: 3
	MaxRetries int

	// RetryDelay is the fixed pause between attempts.
	// Default: 3s
	RetryDelay time.Duration

	// SocketTimeout bounds each individual network call.
	// Default: 5s
	SocketTimeout time.Duration
}

// DefaultConfig returns a Config for the named queue on a local Redis.
func DefaultConfig(name string) Config {
	return Config{
		URL:           "redis://localhost:6379/0",
		Name:          name,
		MaxRetries:    3,
		RetryDelay:    3 * time.Second,
		SocketTimeout: 5 * time.Second,
	}
}

// Validate checks that the configuration is complete.
func (c Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}
	if c.Name == "" {
		return ErrNameRequired
	}
	if c.MaxRetries < 1 {
		return errors.New("queue config: MaxRetries must be at least 1")
	}
	if c.RetryDelay < 0 {
		return errors.New("queue config: RetryDelay cannot be negative")
	}
	if c.SocketTimeout <= 0 {
		return errors.New("queue config: SocketTimeout must be positive")
	}
	return nil
}
