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


package openai

import (
	"log/slog"

	"github.com/poiesic/docflow/ai"
)

// NewProvider creates a provider for an OpenAI-compatible service
// (OpenAI itself, Ollama, vLLM, LocalAI). Close is a no-op.
func NewProvider(config *ai.Config, logger *slog.Logger) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config, logger)
	if err != nil {
		return nil, err
	}
	return ai.NewProvider(ai.ProviderOpenAI, embedder, config.EmbeddingModel, logger), nil
}
