package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/storage"
)

const (
	// DefaultMinScore is the similarity floor applied when none is given.
	DefaultMinScore float32 = 0.60

	// verbatimBoost is added when every meaningful query word occurs in a chunk.
	verbatimBoost float32 = 0.3
)

// Result is a stored chunk ranked against a query.
type Result struct {
	Record     storage.Record
	Similarity float32 // raw vector similarity
	Score      float32 // similarity plus any verbatim boost
	Verbatim   bool
}

// Searcher answers free-text queries against a vector store.
type Searcher struct {
	store    storage.VectorSearcher
	embedder ai.Embedder
	minScore float32
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore sets the similarity floor for candidate chunks.
// Default is DefaultMinScore.
func WithMinScore(score float32) Option {
	return func(s *Searcher) error {
		if score < 0 || score > 1 {
			return ErrInvalidMinScore
		}
		s.minScore = score
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.VectorSearcher, provider ai.AIProvider, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: provider.Embedder(),
		minScore: DefaultMinScore,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FindSimilar returns up to maxHits chunks similar to query, best first.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]Result, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor Monitor) ([]Result, error) {
	if maxHits <= 0 {
		return nil, ErrInvalidMaxHits
	}
	if monitor == nil {
		monitor = noopMonitor{}
	}
	monitor.Start(query)

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	// Over-fetch so the verbatim boost can reorder beyond the first maxHits.
	matches, err := s.store.FindSimilar(ctx, vector, s.minScore, maxHits*2)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterSemanticSearch(matches)

	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		r := Result{
			Record:     match.Record,
			Similarity: match.Score,
			Score:      match.Score,
		}
		if containsAllQueryWords(match.Record.Content, query) {
			r.Verbatim = true
			r.Score += verbatimBoost
		}
		monitor.Hit(r)
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	s.logger.Debug("search complete", "query", query, "candidates", len(matches), "results", len(results))
	return results, nil
}
