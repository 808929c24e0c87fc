package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom values", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderMistral),
			WithEmbeddingHost("https://api.example.com"),
			WithEmbeddingModel("mistral-embed"),
			WithAPIKey("key"),
			WithBatchSize(8),
			WithTimeout(time.Second),
		)

		assert.Equal(t, ProviderMistral, cfg.Provider)
		assert.Equal(t, "https://api.example.com", cfg.EmbeddingHost)
		assert.Equal(t, "mistral-embed", cfg.EmbeddingModel)
		assert.Equal(t, "key", cfg.APIKey)
		assert.Equal(t, 8, cfg.BatchSize)
		assert.Equal(t, time.Second, cfg.Timeout)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderName
		host     string
		want     string
	}{
		{"openai adds v1", ProviderOpenAI, "http://localhost:11434", "http://localhost:11434/v1"},
		{"openai trailing slash", ProviderOpenAI, "http://localhost:11434/", "http://localhost:11434/v1"},
		{"openai keeps v1", ProviderOpenAI, "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"openai v1 trailing slash", ProviderOpenAI, "http://localhost:11434/v1/", "http://localhost:11434/v1"},
		{"openai empty stays empty", ProviderOpenAI, "", ""},
		{"mistral strips v1", ProviderMistral, "https://api.mistral.ai/v1", "https://api.mistral.ai"},
		{"mistral keeps bare host", ProviderMistral, "https://api.mistral.ai", "https://api.mistral.ai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
		})
	}

	t.Run("provider case folded", func(t *testing.T) {
		cfg := &Config{Provider: "OpenAI", EmbeddingHost: "http://h"}
		cfg.Normalize()
		assert.Equal(t, ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "http://h/v1", cfg.EmbeddingHost)
	})

	t.Run("mistral default model", func(t *testing.T) {
		cfg := &Config{Provider: ProviderMistral}
		cfg.Normalize()
		assert.Equal(t, DefaultMistralModel, cfg.EmbeddingModel)
	})

	t.Run("fills zero batch size and timeout", func(t *testing.T) {
		cfg := &Config{Provider: ProviderOpenAI}
		cfg.Normalize()
		assert.Equal(t, 64, cfg.BatchSize)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("openai requires host", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost(""))
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("requires model", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingModel(""))
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("mistral requires api key", func(t *testing.T) {
		cfg := NewConfig(WithProvider(ProviderMistral))
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APIKey")
	})

	t.Run("mistral without host", func(t *testing.T) {
		cfg := NewConfig(WithProvider(ProviderMistral), WithEmbeddingHost(""), WithAPIKey("k"))
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := NewConfig(WithProvider("cohere"))
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider")
	})
}

func TestParseProviderName(t *testing.T) {
	p, err := ParseProviderName(" MISTRAL ")
	require.NoError(t, err)
	assert.Equal(t, ProviderMistral, p)

	_, err = ParseProviderName("")
	assert.Error(t, err)
}
