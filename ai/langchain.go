package ai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
)

// LangchainEmbedder adapts a langchaingo embedder to Embedder. The
// provider packages build the client; this type owns the calls.
type LangchainEmbedder struct {
	client embeddings.Embedder
	logger *slog.Logger
}

var _ Embedder = (*LangchainEmbedder)(nil)

// NewLangchainEmbedder wraps client. A nil logger means slog.Default().
func NewLangchainEmbedder(client embeddings.Embedder, logger *slog.Logger) *LangchainEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangchainEmbedder{client: client, logger: logger}
}

// EmbedText embeds a single query string.
func (e *LangchainEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.client.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("embedding query failed", "length", len(text), "err", err)
		return nil, err
	}
	return vector, nil
}

// EmbedTexts embeds texts in one request per client batch, preserving
// input order.
func (e *LangchainEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding texts", "count", len(texts))
	vectors, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("embedding texts failed", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}

// provider is the AIProvider shared by the HTTP-backed backends, none of
// which hold resources beyond an http.Client.
type provider struct {
	name     ProviderName
	embedder Embedder
	model    string
	logger   *slog.Logger
}

// NewProvider bundles an embedder with the model name it serves.
func NewProvider(name ProviderName, embedder Embedder, model string, logger *slog.Logger) AIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &provider{
		name:     name,
		embedder: embedder,
		model:    model,
		logger:   logger.With("provider", string(name)),
	}
}

func (p *provider) Embedder() Embedder { return p.embedder }

func (p *provider) Model() string { return p.model }

func (p *provider) Close() error {
	p.logger.Debug("closing provider", "model", p.model)
	return nil
}
