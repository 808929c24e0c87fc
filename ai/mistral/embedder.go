// Package mistral provides the embedder for the Mistral AI platform.
package mistral

import (
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/mistral"

	"github.com/poiesic/docflow/ai"
)

// NewEmbedder creates a Mistral embedder. config.APIKey is required; an
// empty EmbeddingHost uses the platform endpoint.
func NewEmbedder(config *ai.Config, logger *slog.Logger) (ai.Embedder, error) {
	return newEmbedder(config, logger)
}

// NewProvider creates a Mistral provider. Close is a no-op.
func NewProvider(config *ai.Config, logger *slog.Logger) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config, logger)
	if err != nil {
		return nil, err
	}
	return ai.NewProvider(ai.ProviderMistral, embedder, config.EmbeddingModel, logger), nil
}

func newEmbedder(config *ai.Config, logger *slog.Logger) (*ai.LangchainEmbedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []mistral.Option{
		mistral.WithAPIKey(config.APIKey),
		mistral.WithModel(config.EmbeddingModel),
		mistral.WithTimeout(config.Timeout),
	}
	if config.EmbeddingHost != "" {
		opts = append(opts, mistral.WithEndpoint(config.EmbeddingHost))
	}
	client, err := mistral.New(opts...)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.BatchSize),
	)
	if err != nil {
		return nil, err
	}
	return ai.NewLangchainEmbedder(embedder,
		logger.With("component", "mistral-embedder", "model", config.EmbeddingModel)), nil
}
