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


package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/documents"
	"github.com/poiesic/docflow/ingestion"
	"github.com/poiesic/docflow/pipeline"
	"github.com/poiesic/docflow/queue"
	"github.com/poiesic/docflow/storage"
	"github.com/poiesic/docflow/worker"
)

//go:embed sample_config.toml
var sampleConfig string

// Default queue names.
const (
	DocumentQueue  = "document_queue"
	EmbeddingQueue = "embedding_queue"
)

// Queue locates one Redis list.
type Queue struct {
	URL  string `toml:"url"`
	Name string `toml:"name"`
}

// Queues holds the two inter-stage queues.
type Queues struct {
	Documents  Queue `toml:"documents"`
	Embeddings Queue `toml:"embeddings"`
}

// Redis holds the connection policy shared by every queue handle.
type Redis struct {
	MaxRetries    int      `toml:"max_retries"`
	RetryDelay    Duration `toml:"retry_delay"`
	SocketTimeout Duration `toml:"socket_timeout"`
}

// Stage holds one worker's loop settings.
type Stage struct {
	BatchSize int      `toml:"batch_size"`
	IdleDelay Duration `toml:"idle_delay"`
}

// Stages holds the settings of the three workers.
type Stages struct {
	Chunk   Stage `toml:"chunk"`
	Embed   Stage `toml:"embed"`
	Persist Stage `toml:"persist"`
}

// Pipeline holds supervisor settings.
type Pipeline struct {
	StartDelay Duration `toml:"start_delay"`
}

// Embedding selects the embedding provider and tunes the embed stage.
type Embedding struct {
	Provider     string   `toml:"provider"`
	Host         string   `toml:"host"`
	Model        string   `toml:"model"`
	APIKey       string   `toml:"api_key"`
	BatchSize    int      `toml:"batch_size"`
	Timeout      Duration `toml:"timeout"`
	Concurrency  int      `toml:"concurrency"`
	SubBatchSize int      `toml:"sub_batch_size"`
	CacheSize    int      `toml:"cache_size"`
	MaxRetries   int      `toml:"max_retries"`
	RetryDelay   Duration `toml:"retry_delay"`
}

// Log holds logger settings.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete docflow configuration.
//
// Sections:
//   - Queues: Redis URL and list name of the document and embedding queues
//   - Redis: reconnect policy and socket timeout for every queue handle
//   - Stages: batch size and idle delay per worker
//   - Pipeline: delay between worker starts
//   - Documents: input directory and chunking
//   - Embedding: provider connection and embed stage tuning
//   - Store: vector store mode and location
//   - Log: level and format
type Config struct {
	Queues    Queues           `toml:"queues"`
	Redis     Redis            `toml:"redis"`
	Stages    Stages           `toml:"stages"`
	Pipeline  Pipeline         `toml:"pipeline"`
	Documents documents.Config `toml:"documents"`
	Embedding Embedding        `toml:"embedding"`
	Store     storage.Config   `toml:"store"`
	Log       Log              `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	q := queue.DefaultConfig("")
	p := pipeline.DefaultConfig()
	a := ai.DefaultConfig()
	stage := func(c worker.Config) Stage {
		return Stage{BatchSize: c.BatchSize, IdleDelay: Duration(c.IdleDelay)}
	}

	return Config{
		Queues: Queues{
			Documents:  Queue{URL: q.URL, Name: DocumentQueue},
			Embeddings: Queue{URL: q.URL, Name: EmbeddingQueue},
		},
		Redis: Redis{
			MaxRetries:    q.MaxRetries,
			RetryDelay:    Duration(q.RetryDelay),
			SocketTimeout: Duration(q.SocketTimeout),
		},
		Stages: Stages{
			Chunk:   stage(p.Chunk),
			Embed:   stage(p.Embed),
			Persist: stage(p.Persist),
		},
		Pipeline:  Pipeline{StartDelay: Duration(p.StartDelay)},
		Documents: documents.DefaultConfig(),
		Embedding: Embedding{
			Provider:     string(a.Provider),
			Host:         a.EmbeddingHost,
			Model:        a.EmbeddingModel,
			BatchSize:    a.BatchSize,
			Timeout:      Duration(a.Timeout),
			Concurrency:  1,
			SubBatchSize: 16,
			MaxRetries:   1,
			RetryDelay:   Duration(500 * time.Millisecond),
		},
		Store: storage.DefaultConfig(),
		Log:   Log{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path over the defaults, fills secrets from the
// environment and validates the result. An empty path loads the defaults
// alone. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateSample writes a commented configuration file holding the defaults.
// An existing file is left alone and reported as fs.ErrExist.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("write sample config: %w", fs.ErrExist)
		}
		return fmt.Errorf("write sample config: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(sampleConfig); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Normalize trims values and fills API keys left empty from the
// environment: MISTRAL_API_KEY or OPENAI_API_KEY by provider, and
// QDRANT_API_KEY for the store.
func (c *Config) Normalize() {
	c.Queues.Documents.URL = strings.TrimSpace(c.Queues.Documents.URL)
	c.Queues.Embeddings.URL = strings.TrimSpace(c.Queues.Embeddings.URL)

	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	c.Embedding.Host = strings.TrimSpace(c.Embedding.Host)
	if ai.ProviderName(c.Embedding.Provider) == ai.ProviderMistral {
		// The openai defaults do not apply to mistral.
		defaults := ai.DefaultConfig()
		if c.Embedding.Host == defaults.EmbeddingHost {
			c.Embedding.Host = ""
		}
		if c.Embedding.Model == defaults.EmbeddingModel {
			c.Embedding.Model = ai.DefaultMistralModel
		}
	}
	if c.Embedding.APIKey == "" {
		switch ai.ProviderName(c.Embedding.Provider) {
		case ai.ProviderMistral:
			c.Embedding.APIKey = lookupEnv("MISTRAL_API_KEY")
		case ai.ProviderOpenAI:
			c.Embedding.APIKey = lookupEnv("OPENAI_API_KEY")
		}
	}

	c.Store.Mode = storage.Mode(strings.ToLower(strings.TrimSpace(string(c.Store.Mode))))
	c.Store.URL = strings.TrimSpace(c.Store.URL)
	if c.Store.APIKey == "" && c.Store.Mode == storage.ModeServer {
		c.Store.APIKey = lookupEnv("QDRANT_API_KEY")
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

func lookupEnv(key string) string {
	value, _ := os.LookupEnv(key)
	return strings.TrimSpace(value)
}

// Validate checks every section by building the component configurations
// from it. All failures wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(section string, err error) error {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, section, err)
	}

	if err := c.DocumentQueue().Validate(); err != nil {
		return invalid("queues.documents", err)
	}
	if err := c.EmbeddingQueue().Validate(); err != nil {
		return invalid("queues.embeddings", err)
	}
	if c.Queues.Documents == c.Queues.Embeddings {
		return invalid("queues", errors.New("documents and embeddings must be different queues"))
	}

	for name, stage := range map[string]Stage{
		"stages.chunk":   c.Stages.Chunk,
		"stages.embed":   c.Stages.Embed,
		"stages.persist": c.Stages.Persist,
	} {
		if stage.BatchSize < 1 {
			return invalid(name, worker.ErrInvalidBatchSize)
		}
		if stage.IdleDelay < 0 {
			return invalid(name, worker.ErrInvalidIdleDelay)
		}
	}
	if c.Pipeline.StartDelay < 0 {
		return invalid("pipeline", pipeline.ErrInvalidStartDelay)
	}

	if err := c.Documents.Validate(); err != nil {
		return invalid("documents", err)
	}

	aiCfg := c.AI()
	if err := aiCfg.Validate(); err != nil {
		return invalid("embedding", err)
	}
	switch {
	case c.Embedding.Concurrency < 1:
		return invalid("embedding", errors.New("concurrency must be at least 1"))
	case c.Embedding.SubBatchSize < 1:
		return invalid("embedding", errors.New("sub_batch_size must be at least 1"))
	case c.Embedding.CacheSize < 0:
		return invalid("embedding", errors.New("cache_size cannot be negative"))
	case c.Embedding.MaxRetries < 1:
		return invalid("embedding", ingestion.ErrInvalidMaxAttempts)
	case c.Embedding.RetryDelay < 0:
		return invalid("embedding", errors.New("retry_delay cannot be negative"))
	}

	if err := c.Store.Validate(); err != nil {
		return invalid("store", err)
	}

	if _, err := c.LogLevel(); err != nil {
		return invalid("log", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log", fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format))
	}
	return nil
}

// DocumentQueue returns the queue configuration of the document queue.
func (c *Config) DocumentQueue() queue.Config {
	return c.queue(c.Queues.Documents)
}

// EmbeddingQueue returns the queue configuration of the embedding queue.
func (c *Config) EmbeddingQueue() queue.Config {
	return c.queue(c.Queues.Embeddings)
}

func (c *Config) queue(q Queue) queue.Config {
	return queue.Config{
		URL:           q.URL,
		Name:          q.Name,
		MaxRetries:    c.Redis.MaxRetries,
		RetryDelay:    c.Redis.RetryDelay.Std(),
		SocketTimeout: c.Redis.SocketTimeout.Std(),
	}
}

// PipelineConfig returns the supervisor and worker settings.
func (c *Config) PipelineConfig() pipeline.Config {
	stage := func(name string, s Stage) worker.Config {
		return worker.Config{Name: name, BatchSize: s.BatchSize, IdleDelay: s.IdleDelay.Std()}
	}
	return pipeline.Config{
		StartDelay: c.Pipeline.StartDelay.Std(),
		Chunk:      stage(pipeline.ChunkWorker, c.Stages.Chunk),
		Embed:      stage(pipeline.EmbedWorker, c.Stages.Embed),
		Persist:    stage(pipeline.PersistWorker, c.Stages.Persist),
	}
}

// AI returns the provider configuration.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(ai.ProviderName(c.Embedding.Provider)),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithBatchSize(c.Embedding.BatchSize),
		ai.WithTimeout(c.Embedding.Timeout.Std()),
	)
}

// EmbeddingOptions returns the embed stage tuning as processor options.
// model is the name recorded on each embedded chunk.
func (c *Config) EmbeddingOptions(model string, logger *slog.Logger) []ingestion.EmbeddingOption {
	return []ingestion.EmbeddingOption{
		ingestion.WithModelName(model),
		ingestion.WithConcurrency(c.Embedding.Concurrency),
		ingestion.WithSubBatchSize(c.Embedding.SubBatchSize),
		ingestion.WithCacheSize(c.Embedding.CacheSize),
		ingestion.WithRetry(c.Embedding.MaxRetries, c.Embedding.RetryDelay.Std()),
		ingestion.WithEmbeddingLogger(logger),
	}
}

// LogLevel parses the configured level.
func (c *Config) LogLevel() (slog.Level, error) {
	return ParseLevel(c.Log.Level)
}

// ParseLevel parses debug, info, warn (or warning) and error, ignoring case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
}
