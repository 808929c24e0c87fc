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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docflow"
	"github.com/poiesic/docflow/config"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/reembed"
	"github.com/poiesic/docflow/search"
)

const defaultConfigPath = "docflow.toml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docflow",
		Usage: "Chunk, embed and store documents through Redis-backed queues",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the TOML configuration file (defaults only when empty)",
				EnvVars: []string{"DOCFLOW_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the logging level (debug, info, warn, error)",
				EnvVars: []string{"DOCFLOW_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Override the log format (text, json)",
				EnvVars: []string{"DOCFLOW_LOG_FORMAT"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:    "run",
				Aliases: []string{"ingest"},
				Usage:   "Ingest every document under the configured root",
				Action:  runCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Clear both queues before starting",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Find the stored chunks closest to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of hits",
						Value:   5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum similarity a hit must reach",
						Value: float64(search.DefaultMinScore),
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the embedding of every stored chunk with the configured model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "queues",
				Usage:  "Show how many records wait in each queue",
				Action: queuesCommand,
			},
			{
				Name:   "init-config",
				Usage:  "Write a sample configuration file",
				Action: initConfigCommand,
			},
		},
	}
}

// setupLogger installs a logger from the flags alone. Commands that load a
// configuration replace it with loadConfig.
func setupLogger(c *cli.Context) error {
	logger, err := newLogger(c.App.ErrWriter, config.Log{
		Level:  c.String("log-level"),
		Format: c.String("log-format"),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogFormat, cfg.Format)
	}
}

// loadConfig reads the configuration, applies logging flag overrides and
// installs the resulting logger.
func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = strings.ToLower(c.String("log-level"))
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = strings.ToLower(c.String("log-format"))
	}
	logger, err := newLogger(c.App.ErrWriter, cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openDatabase(c *cli.Context) (*docflow.Database, error) {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := docflow.Open(cfg, docflow.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func runCommand(c *cli.Context) error {
	ctx := c.Context

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ing, err := db.NewIngestion(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up ingestion: %w", err)
	}
	defer ing.Close()

	if c.Bool("reset") {
		if err := ing.ClearQueues(ctx); err != nil {
			return fmt.Errorf("failed to reset queues: %w", err)
		}
		slog.Info("queues cleared")
	}

	started := time.Now()
	if err := ing.Run(ctx); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Ingestion complete in %s\n", time.Since(started).Round(time.Millisecond))
	for _, status := range ing.Pipeline().Workers() {
		fmt.Fprintf(out, "  %-8s processed %d, emitted %d, dropped %d\n",
			status.Name, status.Stats.Processed, status.Stats.Emitted, status.Stats.Dropped)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(search.WithMinScore(float32(c.Float64("min-score"))))
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}
	results, err := searcher.FindSimilar(c.Context, query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(out, "%d: %s [%0.3f]\n", i, hit.Record.Metadata.String(core.MetaSource), hit.Score)
		fmt.Fprintf(out, "   %s\n", preview(hit.Record.Content, 120))
	}
	return nil
}

// preview collapses whitespace and cuts s to at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	cfg := db.Config()
	fmt.Fprintf(c.App.ErrWriter, "Store: %s (%s)\n", cfg.Store.Path, cfg.Store.Collection)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n\n", db.Provider().Model())

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func queuesCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ing, err := db.NewIngestion(c.Context)
	if err != nil {
		return err
	}
	defer ing.Close()

	docs, embedded, err := ing.QueueSizes(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read queue sizes: %w", err)
	}
	cfg := db.Config()
	fmt.Fprintf(c.App.Writer, "%s: %d\n", cfg.Queues.Documents.Name, docs)
	fmt.Fprintf(c.App.Writer, "%s: %d\n", cfg.Queues.Embeddings.Name, embedded)
	return nil
}

func initConfigCommand(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = defaultConfigPath
	}
	if err := config.CreateSample(path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists", path)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote sample configuration to %s\n", path)
	return nil
}
