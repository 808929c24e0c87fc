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


package documents

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/ingestion"
)

// Service walks an input directory and cuts every accepted file into chunks.
type Service struct {
	cfg        Config
	extensions map[string]struct{}
	text       textsplitter.TextSplitter
	markdown   textsplitter.TextSplitter
	logger     *slog.Logger
}

var _ ingestion.Chunker = (*Service)(nil)

// NewService creates a document service.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	extensions := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		if ext = normalizeExtension(ext); ext != "" {
			extensions[ext] = struct{}{}
		}
	}
	if len(extensions) == 0 {
		return nil, ErrNoExtensions
	}

	s := &Service{
		cfg:        cfg,
		extensions: extensions,
		text: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		logger: logger.With("component", "documents"),
	}
	if cfg.MarkdownAware {
		s.markdown = textsplitter.NewMarkdownTextSplitter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		)
	}
	return s, nil
}

// ScanAndChunk returns a single-use sequence of chunk batches covering every
// accepted file under the root, in lexical path order. Chunks accumulate
// across files; every batch but the last holds exactly BatchSize chunks.
// Unreadable files are logged and skipped. A missing root yields nothing.
func (s *Service) ScanAndChunk(ctx context.Context) iter.Seq[[]core.Chunk] {
	return func(yield func([]core.Chunk) bool) {
		var pending []core.Chunk
		stopped := false

		err := filepath.WalkDir(s.cfg.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == s.cfg.Root {
					return err
				}
				s.logger.Warn("skipping unreadable path", "path", path, "err", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != s.cfg.Root && s.cfg.SkipHidden && isHidden(d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if !s.accepts(path, d.Name()) {
				return nil
			}

			chunks, err := s.ChunkFile(ctx, path)
			if err != nil {
				s.logger.Warn("skipping file", "path", path, "err", err)
				return nil
			}
			pending = append(pending, chunks...)

			for len(pending) >= s.cfg.BatchSize {
				batch := pending[:s.cfg.BatchSize:s.cfg.BatchSize]
				pending = pending[s.cfg.BatchSize:]
				if !yield(batch) {
					stopped = true
					return fs.SkipAll
				}
			}
			return nil
		})

		if stopped {
			return
		}
		if err != nil {
			s.logger.Error("document scan aborted", "root", s.cfg.Root, "err", err)
			if ctx.Err() != nil {
				return
			}
		}
		if len(pending) > 0 {
			yield(pending)
		}
	}
}

// ChunkFile loads a single file and splits it. Whitespace-only chunks are
// dropped. Every chunk carries source, category, extension, chunk_index and
// content_hash metadata.
func (s *Service) ChunkFile(ctx context.Context, path string) ([]core.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	splitter := s.text
	if s.markdown != nil && ext == ".md" {
		splitter = s.markdown
	}

	docs, err := documentloaders.NewText(f).LoadAndSplit(ctx, splitter)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", path, err)
	}

	category := s.category(path)
	chunks := make([]core.Chunk, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		meta := core.Metadata(doc.Metadata).Clone()
		meta[core.MetaSource] = path
		meta[core.MetaCategory] = category
		meta[core.MetaExtension] = ext
		meta[core.MetaChunkIndex] = int64(len(chunks))
		meta[core.MetaContentHash] = core.ContentHash(doc.PageContent)
		chunks = append(chunks, core.Chunk{Content: doc.PageContent, Metadata: meta})
	}

	s.logger.Debug("chunked file", "path", path, "chunks", len(chunks))
	return chunks, nil
}

func (s *Service) accepts(path, name string) bool {
	if s.cfg.SkipHidden && isHidden(name) {
		return false
	}
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// category is the first path element below the root, or "" for files that
// sit directly in it.
func (s *Service) category(path string) string {
	rel, err := filepath.Rel(s.cfg.Root, path)
	if err != nil {
		return ""
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(dir), "/")
	return first
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
