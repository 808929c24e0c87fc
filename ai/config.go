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


package ai

import (
	"errors"
	"strings"
	"time"
)

// DefaultMistralModel is the only embedding model the Mistral platform offers.
const DefaultMistralModel = "mistral-embed"

// Config holds configuration for AI service providers.
type Config struct {
	// Provider selects the embedding backend.
	// Default: "openai"
	Provider ProviderName `toml:"provider"`

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server.
	// Optional for mistral, which defaults to the public platform.
	EmbeddingHost string `toml:"host"`

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small", "mistral-embed"
	EmbeddingModel string `toml:"model"`

	// APIKey authenticates against the service. Required for mistral.
	// Local OpenAI-compatible servers usually need none.
	APIKey string `toml:"api_key"`

	// BatchSize caps how many texts go into one API request.
	// Default: 64
	BatchSize int `toml:"batch_size"`

	// Timeout bounds a single API request. Default: 30s
	Timeout time.Duration `toml:"-"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the embedding backend.
func WithProvider(provider ProviderName) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBatchSize sets the number of texts per API request.
func WithBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "embeddinggemma",
		BatchSize:      64,
		Timeout:        30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// For openai it adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc). The mistral
// client appends its own version path, so a trailing /v1 is stripped there.
func (c *Config) Normalize() {
	if p, err := ParseProviderName(string(c.Provider)); err == nil {
		c.Provider = p
	}
	c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")

	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
			c.EmbeddingHost = c.EmbeddingHost + "/v1"
		}
	case ProviderMistral:
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/v1")
		if c.EmbeddingModel == "" {
			c.EmbeddingModel = DefaultMistralModel
		}
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Validate checks that all required configuration fields are set.
// It also normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if _, err := ParseProviderName(string(c.Provider)); err != nil {
		return err
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
	case ProviderMistral:
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for mistral")
		}
	}
	return nil
}
