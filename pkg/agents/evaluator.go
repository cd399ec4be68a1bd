package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/tmc/langchaingo/llms"
)

const (
	DefaultEvaluatorReportLimit = 60000

	evidenceSummaries = 8
	evidenceLimit     = 5000
)

// evaluationResponse is the wire shape the evaluator is asked to produce.
type evaluationResponse struct {
	Completeness         *int     `json:"completeness_score"`
	Depth                *int     `json:"depth_score"`
	Accuracy             *int     `json:"accuracy_score"`
	Structure            *int     `json:"structure_score"`
	Insight              *int     `json:"insight_score"`
	Summary              string   `json:"summary_of_evaluation"`
	IsAcceptable         bool     `json:"is_acceptable"`
	Gaps                 []string `json:"gaps"`
	AdditionalQueries    []string `json:"additional_search_queries"`
	RevisionInstructions string   `json:"revision_instructions"`
}

// Evaluator scores a draft on five dimensions. The pass/fail decision is
// left to the engine; the model's own verdict is kept as ModelVerdict.
type Evaluator struct {
	caller
	reportLimit int
}

// NewEvaluator builds an evaluator that sends at most reportLimit characters
// of the report. Zero selects DefaultEvaluatorReportLimit.
func NewEvaluator(llm llms.Model, reportLimit int, opts Options) *Evaluator {
	if reportLimit <= 0 {
		reportLimit = DefaultEvaluatorReportLimit
	}
	return &Evaluator{caller: newCaller("evaluator", llm, opts), reportLimit: reportLimit}
}

func (e *Evaluator) Submit(ctx context.Context, in research.EvaluateInput) (research.Evaluation, error) {
	resp, err := generateJSON(ctx, e.caller, evaluatorPrompt, evaluatorSchema, e.input(in), func(v *evaluationResponse) error {
		var missing []string
		for _, f := range []struct {
			name  string
			score *int
		}{
			{"completeness_score", v.Completeness},
			{"depth_score", v.Depth},
			{"accuracy_score", v.Accuracy},
			{"structure_score", v.Structure},
			{"insight_score", v.Insight},
		} {
			if f.score == nil {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing scores: %s", strings.Join(missing, ", "))
		}
		return nil
	})
	if err != nil {
		return research.Evaluation{}, err
	}

	ev := research.Evaluation{
		Scores: research.Scores{
			Completeness: *resp.Completeness,
			Depth:        *resp.Depth,
			Accuracy:     *resp.Accuracy,
			Structure:    *resp.Structure,
			Insight:      *resp.Insight,
		}.Clamp(),
		Summary:              resp.Summary,
		ModelVerdict:         resp.IsAcceptable,
		Gaps:                 resp.Gaps,
		SuggestedQueries:     resp.AdditionalQueries,
		RevisionInstructions: resp.RevisionInstructions,
	}
	e.logger.Info("Evaluation complete", "average", ev.Scores.Average(), "min", ev.Scores.Min(), "model_verdict", ev.ModelVerdict)
	return ev, nil
}

func (e *Evaluator) input(in research.EvaluateInput) string {
	summaries := make([]string, 0, evidenceSummaries)
	for i, r := range in.Results {
		if i == evidenceSummaries {
			break
		}
		summaries = append(summaries, r.Summary)
	}
	evidence := truncate(strings.Join(summaries, "\n---\n"), evidenceLimit)

	return fmt.Sprintf("Original query: %s\n\n--- REPORT TO EVALUATE ---\n%s\n\n--- SEARCH RESULTS USED ---\n%s",
		in.Query.Text(), truncate(in.Report.Markdown, e.reportLimit), evidence)
}
