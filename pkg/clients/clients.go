// Package clients builds langchaingo models for the supported LLM providers.
package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Provider names an LLM vendor.
type Provider string

const (
	Google    Provider = "google"
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
)

// ModelType is a model name understood by the selected provider.
type ModelType string

// Settings describes one model to build.
type Settings struct {
	Provider Provider
	APIKey   string
	Model    ModelType
}

// New returns a model for s. An empty model selects the provider's default.
func New(ctx context.Context, s Settings) (llms.Model, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", s.Provider)
	}

	switch Provider(strings.ToLower(string(s.Provider))) {
	case Google, "":
		return GoogleAi(ctx, s.APIKey, s.Model)
	case OpenAI:
		return OpenAi(s.APIKey, s.Model)
	case Anthropic:
		return AnthropicAi(s.APIKey, s.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", s.Provider)
	}
}

// DefaultModels returns the reasoning and fast model used for p when none is
// configured.
func DefaultModels(p Provider) (reasoning, fast ModelType) {
	switch Provider(strings.ToLower(string(p))) {
	case OpenAI:
		return GPT4o, GPT4oMini
	case Anthropic:
		return Claude4Sonnet, Claude35Haiku
	default:
		return ProModel, DefaultModel
	}
}
