// Package qdrant implements the server-mode vector store on a Qdrant server.
//
// Vectors arrive already computed, so the langchaingo store is given an
// embedder that hands back those vectors instead of calling a model.
package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	lcqdrant "github.com/tmc/langchaingo/vectorstores/qdrant"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

const (
	contentKey      = "content"
	defaultDistance = "Cosine"
)

// ErrAPI wraps unexpected responses from the server.
var ErrAPI = errors.New("qdrant api error")

// Store is a VectorStore backed by a Qdrant collection. The collection is
// created on first write, sized to the first vector seen.
type Store struct {
	baseURL    url.URL
	collection string
	apiKey     string
	distance   string
	logger     *slog.Logger

	mu         sync.Mutex
	dimensions int
}

var (
	_ storage.VectorStore    = (*Store)(nil)
	_ storage.VectorSearcher = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDistance sets the distance metric used when creating the collection.
// One of "Cosine", "Dot", "Euclid" or "Manhattan".
func WithDistance(distance string) Option {
	return func(s *Store) {
		s.distance = distance
	}
}

// New creates a store for cfg. No request is made until the first write.
func New(cfg storage.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mode, _ := storage.ParseMode(string(cfg.Mode)); mode != storage.ModeServer {
		return nil, fmt.Errorf("%w: qdrant store requires %q, got %q", storage.ErrInvalidMode, storage.ModeServer, cfg.Mode)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url %q: %w", cfg.URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid qdrant url %q: scheme and host required", cfg.URL)
	}

	s := &Store{
		baseURL:    *u,
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		distance:   defaultDistance,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("store", "qdrant", "collection", s.collection)
	return s, nil
}

// AddChunks upserts items as new points and returns their ids.
func (s *Store) AddChunks(ctx context.Context, items []core.EmbeddedChunk) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	dims := len(items[0].Vector)
	vectors := make([][]float32, len(items))
	docs := make([]schema.Document, len(items))
	for i, item := range items {
		if len(item.Vector) != dims {
			return nil, fmt.Errorf("%w: item %d has %d dimensions, expected %d", storage.ErrDimensionMismatch, i, len(item.Vector), dims)
		}
		vectors[i] = item.Vector
		docs[i] = schema.Document{
			PageContent: item.Document.Content,
			Metadata:    map[string]any(item.Document.Metadata.Clone()),
		}
	}

	if err := s.ensureCollection(ctx, dims); err != nil {
		return nil, err
	}

	store, err := s.langchainStore(precomputed{documents: vectors})
	if err != nil {
		return nil, err
	}
	ids, err := store.AddDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}

	s.logger.Debug("stored chunks", "chunks", len(ids))
	return ids, nil
}

// FindSimilar runs a nearest-neighbour search. Scores below zero are not
// representable as a server-side threshold, so a negative minSimilarity
// disables the threshold.
func (s *Store) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]storage.SearchResult, error) {
	if len(vector) == 0 || limit <= 0 || minSimilarity > 1 {
		return nil, storage.ErrInvalidQuery
	}

	store, err := s.langchainStore(precomputed{query: vector})
	if err != nil {
		return nil, err
	}
	docs, err := store.SimilaritySearch(ctx, "", limit, vectorstores.WithScoreThreshold(max(minSimilarity, 0)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}

	results := make([]storage.SearchResult, len(docs))
	for i, doc := range docs {
		results[i] = storage.SearchResult{
			Record: storage.Record{
				Collection: s.collection,
				Content:    doc.PageContent,
				Metadata:   core.NormalizeMetadata(doc.Metadata),
			},
			Score: doc.Score,
		}
	}
	return results, nil
}

// Close is a no-op; the store holds no connections of its own.
func (s *Store) Close() error {
	return nil
}

func (s *Store) langchainStore(embedder embeddings.Embedder) (lcqdrant.Store, error) {
	return lcqdrant.New(
		lcqdrant.WithURL(s.baseURL),
		lcqdrant.WithCollectionName(s.collection),
		lcqdrant.WithEmbedder(embedder),
		lcqdrant.WithAPIKey(s.apiKey),
		lcqdrant.WithContentKey(contentKey),
	)
}

// ensureCollection creates the collection if the server doesn't have it.
// The check runs once per store.
func (s *Store) ensureCollection(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimensions != 0 {
		if s.dimensions != dims {
			return fmt.Errorf("%w: collection has %d dimensions, got %d", storage.ErrDimensionMismatch, s.dimensions, dims)
		}
		return nil
	}

	collectionURL := s.baseURL.JoinPath("collections", s.collection)
	status, body, err := s.request(ctx, *collectionURL, http.MethodGet, nil)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		var info collectionInfo
		if err := json.Unmarshal(body, &info); err == nil && info.Result.Config.Params.Vectors.Size != 0 {
			if size := info.Result.Config.Params.Vectors.Size; size != dims {
				return fmt.Errorf("%w: collection has %d dimensions, got %d", storage.ErrDimensionMismatch, size, dims)
			}
		}
	case http.StatusNotFound:
		s.logger.Info("creating collection", "dimensions", dims, "distance", s.distance)
		create := createCollection{Vectors: vectorParams{Size: dims, Distance: s.distance}}
		status, body, err = s.request(ctx, *collectionURL, http.MethodPut, create)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("%w: creating collection: status %d: %s", ErrAPI, status, body)
		}
	default:
		return fmt.Errorf("%w: checking collection: status %d: %s", ErrAPI, status, body)
	}

	s.dimensions = dims
	return nil
}

func (s *Store) request(ctx context.Context, u url.URL, method string, payload any) (int, []byte, error) {
	rc, status, err := lcqdrant.DoRequest(ctx, u, s.apiKey, method, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading response: %w", ErrAPI, err)
	}
	return status, body, nil
}

// precomputed is an embeddings.Embedder that returns vectors it was given.
type precomputed struct {
	documents [][]float32
	query     []float32
}

var _ embeddings.Embedder = precomputed{}

func (p precomputed) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) != len(p.documents) {
		return nil, fmt.Errorf("%w: %d texts for %d vectors", storage.ErrDimensionMismatch, len(texts), len(p.documents))
	}
	return p.documents, nil
}

func (p precomputed) EmbedQuery(context.Context, string) ([]float32, error) {
	if len(p.query) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	return p.query, nil
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollection struct {
	Vectors vectorParams `json:"vectors"`
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors vectorParams `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}
