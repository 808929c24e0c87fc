package mistral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/ai"
)

func TestNewEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithProvider(ai.ProviderMistral), ai.WithEmbeddingHost("")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIKey")
}

func TestNewProvider(t *testing.T) {
	cfg := ai.NewConfig(
		ai.WithProvider(ai.ProviderMistral),
		ai.WithEmbeddingHost(""),
		ai.WithEmbeddingModel(""),
		ai.WithAPIKey("test-key"),
	)
	provider, err := NewProvider(cfg, nil)
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, ai.DefaultMistralModel, provider.Model())
	assert.NotNil(t, provider.Embedder())
}
