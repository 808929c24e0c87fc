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


// Package storage provides the vector store abstraction used by the persist
// stage.
//
// Two backends implement VectorStore:
//
//   - storage/badger: an embedded BadgerDB database, used in local mode
//   - storage/qdrant: a Qdrant server reached over HTTP, used in server mode
//
// Config selects between them. Validate reports a missing path in local mode,
// a missing URL in server mode, and any other mode name as ErrInvalidMode.
//
// # Usage
//
//	store, err := badger.OpenStore(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	ids, err := store.AddChunks(ctx, items)
//
// # Thread Safety
//
// All store implementations must be safe for concurrent use.
package storage
