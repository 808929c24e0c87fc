package storage

import (
	"fmt"
	"strings"
)

// Mode selects where vectors are stored.
type Mode string

const (
	// ModeLocal stores vectors in an embedded database on disk.
	ModeLocal Mode = "local"
	// ModeServer stores vectors on a remote vector database server.
	ModeServer Mode = "server"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "documents"

// Config describes a vector store.
type Config struct {
	// Mode is local or server.
	Mode Mode `toml:"mode"`

	// Collection names the set of records chunks are written to.
	Collection string `toml:"collection"`

	// Path is the database directory in local mode.
	Path string `toml:"path"`

	// URL is the server address in server mode.
	// Example: "http://localhost:6333"
	URL string `toml:"url"`

	// APIKey authenticates against the server. Optional.
	APIKey string `toml:"api_key"`
}

// DefaultConfig returns a local store under ./vectors.
func DefaultConfig() Config {
	return Config{
		Mode:       ModeLocal,
		Collection: DefaultCollection,
		Path:       "./vectors",
	}
}

// ParseMode parses a mode name, ignoring case and surrounding space.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLocal, ModeServer:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidMode, s, ModeLocal, ModeServer)
	}
}

// Validate checks that the fields required by the mode are present.
func (c Config) Validate() error {
	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return err
	}
	if c.Collection == "" {
		return ErrCollectionRequired
	}
	switch mode {
	case ModeLocal:
		if c.Path == "" {
			return ErrPathRequired
		}
	case ModeServer:
		if c.URL == "" {
			return ErrURLRequired
		}
	}
	return nil
}
