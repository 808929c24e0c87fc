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


package ingestion

import (
	"context"
	"iter"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/worker"
)

// Chunker produces the pipeline's input: a finite, lazy sequence of chunk
// batches. The sequence is consumed once.
type Chunker interface {
	ScanAndChunk(ctx context.Context) iter.Seq[[]core.Chunk]
}

var (
	_ worker.Processor[core.Chunk, core.EmbeddedChunk] = (*EmbeddingProcessor)(nil)
	_ worker.Processor[core.EmbeddedChunk, string]     = (*PersistProcessor)(nil)
)
