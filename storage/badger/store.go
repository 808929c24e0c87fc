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


package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

// Store is a VectorStore backed by an embedded BadgerDB database.
type Store struct {
	backend    *Backend
	collection string
	ownBackend bool
	logger     *slog.Logger
}

var (
	_ storage.VectorStore      = (*Store)(nil)
	_ storage.VectorSearcher   = (*Store)(nil)
	_ storage.RecordRepository = (*Store)(nil)
)

// NewStore creates a store for collection on an already open backend.
// Closing the store leaves the backend open.
func NewStore(backend *Backend, collection string, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if collection == "" {
		return nil, storage.ErrCollectionRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:    backend,
		collection: collection,
		logger:     logger.With("store", "badger", "collection", collection),
	}, nil
}

// OpenStore opens the database at cfg.Path and returns a store that owns it.
func OpenStore(cfg storage.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mode, _ := storage.ParseMode(string(cfg.Mode)); mode != storage.ModeLocal {
		return nil, fmt.Errorf("%w: badger store requires %q, got %q", storage.ErrInvalidMode, storage.ModeLocal, cfg.Mode)
	}
	backend, err := OpenBackend(cfg.Path, false, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database at %s: %w", cfg.Path, err)
	}
	store, err := NewStore(backend, cfg.Collection, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	store.ownBackend = true
	return store, nil
}

// Collection returns the collection name.
func (s *Store) Collection() string {
	return s.collection
}

// AddChunks stores every item in one transaction under a fresh UUID.
func (s *Store) AddChunks(ctx context.Context, items []core.EmbeddedChunk) ([]string, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ids := make([]string, len(items))
	err := s.backend.Update(func(tx *badger.Txn) error {
		for i, item := range items {
			id := uuid.NewString()
			data, err := storage.MarshalRecord(storage.NewRecord(id, s.collection, item, now))
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecordKey(s.collection, id), data); err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store %d chunks: %w", len(items), err)
	}

	s.logger.Debug("stored chunks", "chunks", len(ids))
	return ids, nil
}

// GetRecord retrieves a record by ID.
// Returns storage.ErrNotFound if it doesn't exist.
func (s *Store) GetRecord(ctx context.Context, id string) (storage.Record, error) {
	var record storage.Record
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRecordKey(s.collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = storage.UnmarshalRecord(val)
			return err
		})
	})
	return record, err
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionPrefix(s.collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// ScanRecords reads the collection in key order and hands it to fn in
// batches. Each batch is read in its own transaction, so fn may write.
func (s *Store) ScanRecords(ctx context.Context, batchSize int, fn func([]storage.Record) error) error {
	if batchSize <= 0 {
		return storage.ErrInvalidQuery
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	prefix := makeCollectionPrefix(s.collection)
	var after []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]storage.Record, 0, batchSize)
		var last []byte
		err := s.backend.View(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			defer iter.Close()

			if after == nil {
				iter.Rewind()
			} else {
				iter.Seek(after)
				if iter.Valid() && bytes.Equal(iter.Item().Key(), after) {
					iter.Next()
				}
			}
			for ; iter.Valid() && len(batch) < batchSize; iter.Next() {
				item := iter.Item()
				err := item.Value(func(val []byte) error {
					record, err := storage.UnmarshalRecord(val)
					if err != nil {
						return err
					}
					batch = append(batch, record)
					return nil
				})
				if err != nil {
					return err
				}
				last = item.KeyCopy(nil)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = last
	}
}

// UpdateRecords overwrites records in one transaction. Every record must
// already exist in the collection.
func (s *Store) UpdateRecords(ctx context.Context, records []storage.Record) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.backend.Update(func(tx *badger.Txn) error {
		for _, record := range records {
			key := makeRecordKey(s.collection, record.ID)
			if _, err := tx.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: %s", storage.ErrNotFound, record.ID)
				}
				return err
			}
			record.Collection = s.collection
			data, err := storage.MarshalRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update %d records: %w", len(records), err)
	}
	s.logger.Debug("updated records", "records", len(records))
	return nil
}

// FindSimilar scans the collection and ranks records by cosine similarity.
func (s *Store) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]storage.SearchResult, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []storage.SearchResult
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionPrefix(s.collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record storage.Record
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(record.Vector) != len(vector) {
				continue
			}

			similarity := cosineSimilarity(vector, record.Vector)
			if similarity >= minSimilarity {
				results = append(results, storage.SearchResult{
					Record: record,
					Score:  similarity,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b storage.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close closes the backend if the store opened it.
func (s *Store) Close() error {
	if !s.ownBackend || s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

// cosineSimilarity returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
