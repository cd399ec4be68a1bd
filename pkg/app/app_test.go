package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		LLMProvider:           "openai",
		OpenAIApiKey:          "sk-test",
		LLMMaxAttempts:        1,
		MaxIterations:         3,
		InitialSearches:       7,
		RefinementSearchesMin: 3,
		RefinementSearchesMax: 5,
		PassMinAverage:        7,
		PassMinScore:          5,
		SearchContextSize:     "medium",
		EvaluatorReportLimit:  60000,
		SkipToken:             "skip",
		SearchProvider:        "arxiv",
		EmailFromName:         "Deep Research",
	}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBuildWiresEveryRole(t *testing.T) {
	p, err := Build(context.Background(), testConfig(), quiet)
	require.NoError(t, err)
	defer p.Close()

	a := p.Engine.Agents
	assert.NotNil(t, a.Clarifier)
	assert.NotNil(t, a.Planner)
	assert.NotNil(t, a.RefinePlanner)
	assert.NotNil(t, a.Searcher)
	assert.NotNil(t, a.Writer)
	assert.NotNil(t, a.Evaluator)
	assert.IsType(t, &delivery.EmailDeliverer{}, a.Deliverer)
	assert.Equal(t, 3, p.Engine.Config.MaxIterations)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing llm key", func(c *config.Config) { c.OpenAIApiKey = "" }, "reasoning model"},
		{"unknown search provider", func(c *config.Config) { c.SearchProvider = "altavista" }, "unsupported search provider"},
		{"invalid loop settings", func(c *config.Config) { c.MaxIterations = 0 }, "invalid research config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := Build(context.Background(), cfg, quiet)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
