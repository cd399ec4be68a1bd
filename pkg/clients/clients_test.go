package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
		want string
	}{
		{"Missing key", Settings{Provider: OpenAI}, "no API key"},
		{"Unknown provider", Settings{Provider: "cohere", APIKey: "k"}, "unsupported LLM provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewBuildsOfflineClients(t *testing.T) {
	for _, p := range []Provider{OpenAI, Anthropic, "ANTHROPIC"} {
		llm, err := New(context.Background(), Settings{Provider: p, APIKey: "test-key"})
		require.NoError(t, err, p)
		assert.NotNil(t, llm)
	}
}

func TestDefaultModels(t *testing.T) {
	tests := []struct {
		provider        Provider
		reasoning, fast ModelType
	}{
		{Google, ProModel, DefaultModel},
		{"", ProModel, DefaultModel},
		{"OpenAI", GPT4o, GPT4oMini},
		{Anthropic, Claude4Sonnet, Claude35Haiku},
	}
	for _, tt := range tests {
		reasoning, fast := DefaultModels(tt.provider)
		assert.Equal(t, tt.reasoning, reasoning, tt.provider)
		assert.Equal(t, tt.fast, fast, tt.provider)
	}
}
