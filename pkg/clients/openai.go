package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

const (
	GPT4o     ModelType = "gpt-4o"
	GPT4oMini ModelType = "gpt-4o-mini"
)

func OpenAi(apiKey string, model ModelType) (*openai.LLM, error) {
	if model == "" {
		model = GPT4o
	}

	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return llm, nil
}
