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


// Package ingestion provides the stage processors of the document pipeline.
//
// EmbeddingProcessor turns chunks into embedded chunks. It splits each batch
// into sub-batches that run concurrently on an ants worker pool, retries a
// failed sub-batch with exponential backoff, and caches vectors by content
// hash. A sub-batch that keeps failing is dropped with a log entry and the
// remainder of the batch carries on.
//
// PersistProcessor writes embedded chunks to a storage.VectorStore and
// returns the generated ids.
//
// Chunker is the contract for the pipeline's input: a lazy, finite sequence of
// chunk batches, implemented by the documents package.
//
// # Usage
//
//	embedProc, err := ingestion.NewEmbeddingProcessor(provider.Embedder(),
//	    ingestion.WithModelName(provider.Model()),
//	    ingestion.WithConcurrency(4),
//	    ingestion.WithCacheSize(1024),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer embedProc.Release()
//
//	persistProc, err := ingestion.NewPersistProcessor(store, logger)
package ingestion
