package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/tmc/langchaingo/llms"
)

const clarifyingQuestions = 3

// Clarifier asks the user three questions before research starts.
type Clarifier struct {
	caller
}

func NewClarifier(llm llms.Model, opts Options) *Clarifier {
	return &Clarifier{caller: newCaller("clarifier", llm, opts)}
}

func (c *Clarifier) Submit(ctx context.Context, in research.ClarifyInput) (research.Clarification, error) {
	out, err := generateJSON(ctx, c.caller, clarifierPrompt, clarifierSchema, "Research query: "+in.Query,
		func(v *research.Clarification) error {
			questions := make([]string, 0, len(v.Questions))
			for _, q := range v.Questions {
				if q = strings.TrimSpace(q); q != "" {
					questions = append(questions, q)
				}
			}
			if len(questions) != clarifyingQuestions {
				return fmt.Errorf("expected %d questions, got %d", clarifyingQuestions, len(questions))
			}
			v.Questions = questions
			return nil
		})
	if err != nil {
		return research.Clarification{}, err
	}
	c.logger.Info("Generated clarifying questions", "questions", out.Questions)
	return out, nil
}
