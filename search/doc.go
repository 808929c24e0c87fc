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


// Package search answers free-text queries over ingested chunks.
//
// A query is embedded with the same provider used at ingestion time and
// matched against the vector store. Candidates are then re-ranked: a chunk
// that contains every meaningful query word, ignoring stop words and
// punctuation, gets a fixed boost over its raw similarity.
package search
