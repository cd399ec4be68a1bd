package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/tmc/langchaingo/llms"
)

const previousDraftLimit = 6000

// Writer drafts, and on later rounds revises, the markdown report.
type Writer struct {
	caller
}

func NewWriter(llm llms.Model, opts Options) *Writer {
	return &Writer{caller: newCaller("writer", llm, opts)}
}

func (w *Writer) Submit(ctx context.Context, in research.WriteInput) (research.Report, error) {
	report, err := generateJSON(ctx, w.caller, writerPrompt, writerSchema, writeInput(in), func(v *research.Report) error {
		if strings.TrimSpace(v.Markdown) == "" {
			return errors.New("empty markdown_report")
		}
		return nil
	})
	if err != nil {
		return research.Report{}, err
	}
	w.logger.Info("Report written", "words", report.WordCount(), "sources", len(in.Results), "revision", in.Feedback != nil)
	return report, nil
}

func writeInput(in research.WriteInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n", in.Query.Text())
	fmt.Fprintf(&b, "\nResearch results (%d sources):\n", len(in.Results))
	for i, r := range in.Results {
		fmt.Fprintf(&b, "\n--- Source %d ---\n%s\n", i+1, r.Summary)
		for _, src := range r.Sources {
			fmt.Fprintf(&b, "Reference: %s (%s)\n", src.Title, src.URL)
		}
	}

	if ev := in.Feedback; ev != nil {
		b.WriteString("\n\n--- REVISION INSTRUCTIONS ---\n")
		b.WriteString("A previous draft was evaluated and found wanting. Here is the feedback:\n")
		fmt.Fprintf(&b, "Evaluation: %s\n", ev.Summary)
		fmt.Fprintf(&b, "Scores: %s\n", ev.Scores)
		fmt.Fprintf(&b, "Gaps identified: %s\n", strings.Join(ev.Gaps, ", "))
		fmt.Fprintf(&b, "Revision instructions: %s\n", ev.RevisionInstructions)
		b.WriteString("Please write an IMPROVED version that addresses ALL of this feedback.\n")
	}
	if in.Previous != nil {
		fmt.Fprintf(&b, "\n--- PREVIOUS DRAFT ---\n%s\n", truncate(in.Previous.Markdown, previousDraftLimit))
	}
	return b.String()
}
