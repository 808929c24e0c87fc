package ai

import (
	"fmt"
	"strings"
)

// ProviderName identifies an embedding backend.
type ProviderName string

const (
	// ProviderOpenAI talks to OpenAI or any OpenAI-compatible server
	// (Ollama, LocalAI, vLLM).
	ProviderOpenAI ProviderName = "openai"

	// ProviderMistral talks to the Mistral AI platform.
	ProviderMistral ProviderName = "mistral"
)

// ParseProviderName parses a provider name, ignoring case.
func ParseProviderName(s string) (ProviderName, error) {
	switch p := ProviderName(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderMistral:
		return p, nil
	default:
		return "", fmt.Errorf("ai config: unknown provider %q", s)
	}
}
