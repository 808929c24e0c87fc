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


// Package ai provides the embedding abstraction used by the embed stage.
//
// The Embedder interface turns text into vectors. AIProvider wraps an
// Embedder together with the model name and the resources behind it.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM)
//   - ai/mistral: the Mistral AI platform
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Both production packages only build a langchaingo client; LangchainEmbedder
// makes the calls and NewProvider pairs it with its model name.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, mistral.NewEmbedder, etc.) return
// INTERFACE types to prevent accidental coupling to concrete implementations.
//
//	provider, err := openai.NewProvider(config, logger)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder) return CONCRETE types so
// tests can inject behavior and inspect call counts.
//
// # Configuration
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderMistral),
//	    ai.WithAPIKey(os.Getenv("MISTRAL_API_KEY")),
//	)
//	if err := config.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package ai
