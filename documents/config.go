package documents

import (
	"fmt"
	"strings"
)

// Config controls which files are read and how they are cut into chunks.
type Config struct {
	// Root is the directory scanned recursively for input files.
	Root string `toml:"root"`

	// Extensions lists accepted file extensions, with or without the dot.
	// Matching ignores case.
	Extensions []string `toml:"extensions"`

	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `toml:"chunk_size"`

	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int `toml:"chunk_overlap"`

	// BatchSize is the number of chunks per yielded batch.
	BatchSize int `toml:"batch_size"`

	// MarkdownAware splits .md files along their structure instead of by
	// character separators.
	MarkdownAware bool `toml:"markdown_aware"`

	// SkipHidden ignores files and directories whose names start with a dot.
	SkipHidden bool `toml:"skip_hidden"`
}

// DefaultConfig returns the defaults: ./data, .txt/.md/.json, 500/50.
func DefaultConfig() Config {
	return Config{
		Root:         "./data",
		Extensions:   []string{".txt", ".md", ".json"},
		ChunkSize:    500,
		ChunkOverlap: 50,
		BatchSize:    50,
		SkipHidden:   true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Root == "" {
		return ErrRootRequired
	}
	if len(c.Extensions) == 0 {
		return ErrNoExtensions
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.BatchSize)
	}
	return nil
}

// normalizeExtension lower-cases ext and ensures a leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
