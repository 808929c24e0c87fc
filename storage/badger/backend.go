package badger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Backend owns a BadgerDB handle shared by the stores opened on it.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogBadger routes badger's printf-style logging into slog. Badger is
// chatty at info level, so info is demoted to debug.
type slogBadger struct {
	logger *slog.Logger
}

var _ badger.Logger = slogBadger{}

func (l slogBadger) Errorf(format string, args ...any) { l.log(slog.LevelError, format, args) }
func (l slogBadger) Warningf(format string, args ...any) { l.log(slog.LevelWarn, format, args) }
func (l slogBadger) Infof(format string, args ...any) { l.log(slog.LevelDebug, format, args) }
func (l slogBadger) Debugf(format string, args ...any) { l.log(slog.LevelDebug, format, args) }

func (l slogBadger) log(level slog.Level, format string, args []any) {
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// OpenBackend opens the database at path, creating the directory when it
// is missing. With inMemory set, path is ignored and nothing touches disk.
func OpenBackend(path string, inMemory bool, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger")

	opts := badger.DefaultOptions("").WithInMemory(true)
	if !inMemory {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(slogBadger{logger: logger}).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Backend{db: db, logger: logger}, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(path, 0o755)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed reports whether Close has been called.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.db.View(fn)
}

// Update runs fn in a read-write transaction, committing only if fn
// succeeds.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	return b.db.Update(fn)
}
