package openai

import (
	"log/slog"
	"net/http"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/docflow/ai"
)

// noAuthToken is sent to local OpenAI-compatible services that don't
// require authentication; the client refuses an empty token.
const noAuthToken = "none"

// NewEmbedder creates an embedder for the OpenAI-compatible endpoint at
// config.EmbeddingHost. config is validated and normalized first.
func NewEmbedder(config *ai.Config, logger *slog.Logger) (ai.Embedder, error) {
	return newEmbedder(config, logger)
}

func newEmbedder(config *ai.Config, logger *slog.Logger) (*ai.LangchainEmbedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	token := config.APIKey
	if token == "" {
		token = noAuthToken
	}
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
		openai.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
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
		logger.With("component", "openai-embedder", "model", config.EmbeddingModel)), nil
}
