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


// Package docflow wires the ingestion pipeline, the vector store and the
// embedding provider together from a single configuration.
package docflow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/ai/mistral"
	"github.com/poiesic/docflow/ai/openai"
	"github.com/poiesic/docflow/config"
	"github.com/poiesic/docflow/reembed"
	"github.com/poiesic/docflow/search"
	"github.com/poiesic/docflow/storage"
	"github.com/poiesic/docflow/storage/badger"
	"github.com/poiesic/docflow/storage/qdrant"
)

// ErrReembedUnsupported is returned when the store cannot rewrite records in place.
var ErrReembedUnsupported = errors.New("store does not support reembedding")

// Store is what the database needs from a vector store.
type Store interface {
	storage.VectorStore
	storage.VectorSearcher
}

// Database owns the embedding provider and the vector store.
type Database struct {
	cfg      *config.Config
	provider ai.AIProvider
	store    Store
	logger   *slog.Logger
}

// Option configures a Database.
type Option func(*options)

type options struct {
	provider ai.AIProvider
	store    Store
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the configuration.
// The database takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithStore uses store instead of opening the configured one.
// The database takes ownership and closes it.
func WithStore(store Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open validates cfg and opens the provider and the store.
func Open(cfg *config.Config, opts ...Option) (*Database, error) {
	options := &options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Injected collaborators are owned from here on, so every failure path
	// closes them.
	provider, store := options.provider, options.store
	fail := func(err error) (*Database, error) {
		if provider != nil {
			if cerr := provider.Close(); cerr != nil {
				options.logger.Warn("failed to close provider", "err", cerr)
			}
		}
		if store != nil {
			if cerr := store.Close(); cerr != nil {
				options.logger.Warn("failed to close store", "err", cerr)
			}
		}
		return nil, err
	}

	if cfg == nil {
		return fail(fmt.Errorf("%w: nil config", config.ErrInvalidConfig))
	}
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	if provider == nil {
		p, err := newProvider(cfg.AI(), options.logger)
		if err != nil {
			return fail(fmt.Errorf("failed to create embedding provider: %w", err))
		}
		provider = p
	}

	if store == nil {
		s, err := openStore(cfg.Store, options.logger)
		if err != nil {
			return fail(err)
		}
		store = s
	}

	options.logger.Info("database opened",
		"store", cfg.Store.Mode, "collection", cfg.Store.Collection, "model", provider.Model())
	return &Database{
		cfg:      cfg,
		provider: provider,
		store:    store,
		logger:   options.logger,
	}, nil
}

func newProvider(cfg *ai.Config, logger *slog.Logger) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderMistral:
		return mistral.NewProvider(cfg, logger)
	default:
		return openai.NewProvider(cfg, logger)
	}
}

func openStore(cfg storage.Config, logger *slog.Logger) (Store, error) {
	mode, err := storage.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	if mode == storage.ModeServer {
		return qdrant.New(cfg, qdrant.WithLogger(logger))
	}
	return badger.OpenStore(cfg, logger)
}

// Close releases the provider and the store.
func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}

// Config returns the configuration the database was opened with.
func (db *Database) Config() *config.Config {
	return db.cfg
}

// Store returns the vector store.
func (db *Database) Store() Store {
	return db.store
}

// Provider returns the embedding provider.
func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// NewSearcher creates a searcher over the store.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(db.logger)}, opts...)
	return search.NewSearcher(db.store, db.provider, opts...)
}

// NewReembedder creates a reembedder for the store. Only stores that keep
// their records locally support it.
func (db *Database) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	repo, ok := db.store.(storage.RecordRepository)
	if !ok {
		return nil, fmt.Errorf("%w: %s mode", ErrReembedUnsupported, db.cfg.Store.Mode)
	}
	return reembed.NewReembedder(repo, db.provider, cfg, progress, db.logger)
}
