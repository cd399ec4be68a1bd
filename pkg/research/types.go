package research

import (
	"context"
	"strings"
)

// Agent is one LLM-backed role in the pipeline.
type Agent[In, Out any] interface {
	Submit(ctx context.Context, in In) (Out, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

func (f AgentFunc[In, Out]) Submit(ctx context.Context, in In) (Out, error) {
	return f(ctx, in)
}

// SearchTask is one planned web search and why it was planned.
type SearchTask struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// SearchPlan is the planner's output for one round.
type SearchPlan struct {
	Searches []SearchTask `json:"searches"`
}

// Source is a page that contributed to a search summary.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchResult is the condensed output of a single search task.
type SearchResult struct {
	Task    SearchTask `json:"task"`
	Summary string     `json:"summary"`
	Sources []Source   `json:"sources,omitempty"`
}

// Report is the writer's output. Each write replaces the previous one.
type Report struct {
	ShortSummary      string   `json:"short_summary"`
	Markdown          string   `json:"markdown_report"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// WordCount returns the number of whitespace separated words in the markdown body.
func (r Report) WordCount() int {
	return len(strings.Fields(r.Markdown))
}

// Clarification holds the questions asked before research starts.
type Clarification struct {
	Questions []string `json:"questions"`
}

// ClarifyInput is the clarifier's input.
type ClarifyInput struct {
	Query string
}

// PlanInput is the planner's input. Feedback is nil for the initial plan.
type PlanInput struct {
	Query    Query
	Feedback *Evaluation
	Existing []SearchResult
}

// WriteInput is the writer's input. Previous and Feedback are set on revisions.
type WriteInput struct {
	Query    Query
	Results  []SearchResult
	Previous *Report
	Feedback *Evaluation
}

// EvaluateInput is the evaluator's input.
type EvaluateInput struct {
	Query   Query
	Report  Report
	Results []SearchResult
}

// Agents groups the role implementations the engine sequences.
type Agents struct {
	Clarifier     Agent[ClarifyInput, Clarification]
	Planner       Agent[PlanInput, SearchPlan]
	RefinePlanner Agent[PlanInput, SearchPlan]
	Searcher      Agent[SearchTask, SearchResult]
	Writer        Agent[WriteInput, Report]
	Evaluator     Agent[EvaluateInput, Evaluation]
	Deliverer     Deliverer
}

// Deliverer hands the final report to an outside channel.
type Deliverer interface {
	Deliver(ctx context.Context, query Query, report Report) error
}
