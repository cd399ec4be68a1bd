package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/tmc/langchaingo/llms"
)

const (
	existingSummaries     = 5
	existingSummaryLimit  = 3000
	existingSummaryJoiner = "\n---\n"
)

// Planner turns a query, and on refinement rounds the evaluator's feedback,
// into a list of web searches.
type Planner struct {
	caller
	minCount int
	maxCount int
	refine   bool
}

// NewPlanner returns a planner for the initial round asking for exactly count searches.
func NewPlanner(llm llms.Model, count int, opts Options) *Planner {
	return &Planner{caller: newCaller("planner", llm, opts), minCount: count, maxCount: count}
}

// NewRefinementPlanner returns a planner for gap-filling rounds asking for
// between lo and hi searches.
func NewRefinementPlanner(llm llms.Model, lo, hi int, opts Options) *Planner {
	return &Planner{caller: newCaller("refinement-planner", llm, opts), minCount: lo, maxCount: hi, refine: true}
}

func (p *Planner) Submit(ctx context.Context, in research.PlanInput) (research.SearchPlan, error) {
	system := plannerPrompt + "\n\n" + p.countInstruction()

	input := "Query: " + in.Query.Text()
	if in.Feedback != nil {
		input = refinementInput(in)
	}

	plan, err := generateJSON(ctx, p.caller, system, plannerSchema, input, func(v *research.SearchPlan) error {
		searches := make([]research.SearchTask, 0, len(v.Searches))
		for _, s := range v.Searches {
			s.Query = strings.TrimSpace(s.Query)
			if s.Query == "" {
				continue
			}
			searches = append(searches, s)
		}
		v.Searches = searches
		return nil
	})
	if err != nil {
		return research.SearchPlan{}, err
	}

	p.logger.Info("Planned searches", "count", len(plan.Searches), "refinement", in.Feedback != nil)
	return plan, nil
}

func (p *Planner) countInstruction() string {
	if p.refine || p.minCount != p.maxCount {
		return fmt.Sprintf("You should output %d-%d highly targeted search queries that address the specific gaps identified.", p.minCount, p.maxCount)
	}
	return fmt.Sprintf("You should output exactly %d search queries.", p.maxCount)
}

func refinementInput(in research.PlanInput) string {
	ev := in.Feedback

	summaries := make([]string, 0, existingSummaries)
	for i, r := range in.Existing {
		if i == existingSummaries {
			break
		}
		summaries = append(summaries, r.Summary)
	}
	existing := truncate(strings.Join(summaries, existingSummaryJoiner), existingSummaryLimit)

	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\n", in.Query.Text())
	fmt.Fprintf(&b, "The evaluator identified these gaps:\n%s\n\n", bullets(ev.Gaps))
	fmt.Fprintf(&b, "Evaluator's suggested searches:\n%s\n\n", bullets(ev.SuggestedQueries))
	fmt.Fprintf(&b, "Revision instructions: %s\n\n", ev.RevisionInstructions)
	fmt.Fprintf(&b, "Summary of existing research (do NOT repeat these):\n%s", existing)
	return b.String()
}
