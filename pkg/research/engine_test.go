package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeliverer struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ Query, r Report) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports = append(d.reports, r)
	return d.err
}

type harness struct {
	agents      Agents
	deliverer   *recordingDeliverer
	writes      []WriteInput
	refinePlans int
	evals       []Scores
	evalCalls   int
}

func planOf(n int, prefix string) SearchPlan {
	plan := SearchPlan{}
	for i := 0; i < n; i++ {
		plan.Searches = append(plan.Searches, SearchTask{Query: fmt.Sprintf("%s %d", prefix, i+1), Reason: "coverage"})
	}
	return plan
}

func newHarness(evals ...Scores) *harness {
	h := &harness{deliverer: &recordingDeliverer{}, evals: evals}
	h.agents = Agents{
		Clarifier: AgentFunc[ClarifyInput, Clarification](func(_ context.Context, in ClarifyInput) (Clarification, error) {
			return Clarification{Questions: []string{"a?", "b?", "c?"}}, nil
		}),
		Planner: AgentFunc[PlanInput, SearchPlan](func(_ context.Context, in PlanInput) (SearchPlan, error) {
			return planOf(7, "initial"), nil
		}),
		RefinePlanner: AgentFunc[PlanInput, SearchPlan](func(_ context.Context, in PlanInput) (SearchPlan, error) {
			h.refinePlans++
			if in.Feedback == nil {
				return SearchPlan{}, errors.New("refinement without feedback")
			}
			return planOf(4, fmt.Sprintf("refine%d", h.refinePlans)), nil
		}),
		Searcher: AgentFunc[SearchTask, SearchResult](func(_ context.Context, task SearchTask) (SearchResult, error) {
			return SearchResult{Task: task, Summary: "summary of " + task.Query}, nil
		}),
		Writer: AgentFunc[WriteInput, Report](func(_ context.Context, in WriteInput) (Report, error) {
			h.writes = append(h.writes, in)
			n := len(h.writes)
			return Report{
				ShortSummary:      fmt.Sprintf("draft %d", n),
				Markdown:          fmt.Sprintf("# Draft %d\n\nbased on %d sources", n, len(in.Results)),
				FollowUpQuestions: []string{"f1", "f2", "f3", "f4", "f5"},
			}, nil
		}),
		Evaluator: AgentFunc[EvaluateInput, Evaluation](func(_ context.Context, in EvaluateInput) (Evaluation, error) {
			s := h.evals[h.evalCalls]
			h.evalCalls++
			return Evaluation{Scores: s, Summary: in.Report.ShortSummary, Gaps: []string{"gap"}, SuggestedQueries: []string{"more"}}, nil
		}),
		Deliverer: h.deliverer,
	}
	return h
}

func newTestEngine(t *testing.T, cfg Config, agents Agents) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, agents, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func mustQuery(t *testing.T, text string) Query {
	t.Helper()
	q, err := NewQuery(text, "skip", "")
	require.NoError(t, err)
	return q
}

var (
	passing = Scores{Completeness: 8, Depth: 8, Accuracy: 9, Structure: 9, Insight: 6} // avg 8, min 6
	failing = Scores{Completeness: 5, Depth: 3, Accuracy: 6, Structure: 6, Insight: 5} // avg 5, min 3
	strong  = Scores{Completeness: 9, Depth: 9, Accuracy: 10, Structure: 11, Insight: 6}
)

func TestRunPassesFirstIteration(t *testing.T) {
	h := newHarness(passing)
	e := newTestEngine(t, DefaultConfig(), h.agents)

	out, err := e.Run(context.Background(), "s1", mustQuery(t, "X"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Iteration)
	assert.Equal(t, 0, out.Refinements)
	assert.Len(t, out.Results, 7)
	require.Len(t, out.Evaluations, 1)
	assert.True(t, out.Evaluations[0].Passed)
	assert.Equal(t, 0, h.refinePlans)
	require.Len(t, h.deliverer.reports, 1)
	assert.Equal(t, "draft 1", h.deliverer.reports[0].ShortSummary)
	assert.Equal(t, PhaseDone, out.Phase)
	assert.NoError(t, out.DeliveryErr)
}

func TestRunRefinesUntilPass(t *testing.T) {
	h := newHarness(failing, failing, strong)
	e := newTestEngine(t, DefaultConfig(), h.agents)

	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, 3, out.Iteration)
	assert.Equal(t, 2, out.Refinements)
	assert.Equal(t, 2, h.refinePlans)
	assert.Len(t, out.Results, 7+4+4)

	require.Len(t, out.Evaluations, 3)
	assert.False(t, out.Evaluations[0].Passed)
	assert.False(t, out.Evaluations[1].Passed)
	assert.True(t, out.Evaluations[2].Passed)
	assert.Equal(t, "draft 1", out.Evaluations[0].Summary)
	assert.Equal(t, "draft 3", out.Evaluations[2].Summary)
	assert.Equal(t, 10, out.Evaluations[2].Scores.Structure, "scores are clamped to 10")

	require.Len(t, h.deliverer.reports, 1)
	assert.Equal(t, "draft 3", h.deliverer.reports[0].ShortSummary)

	require.Len(t, h.writes, 3)
	assert.Nil(t, h.writes[0].Previous)
	assert.Nil(t, h.writes[0].Feedback)
	require.NotNil(t, h.writes[1].Previous)
	assert.Equal(t, "draft 1", h.writes[1].Previous.ShortSummary)
	require.NotNil(t, h.writes[2].Feedback)
	assert.Equal(t, "draft 2", h.writes[2].Feedback.Summary)
}

func TestRunStopsAtIterationCap(t *testing.T) {
	h := newHarness(failing, failing, failing, passing)
	e := newTestEngine(t, DefaultConfig(), h.agents)

	out, err := e.Run(context.Background(), "s3", mustQuery(t, "X"), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Iteration)
	assert.Equal(t, 3, h.evalCalls, "no fourth round")
	assert.Len(t, h.writes, 3)
	assert.Equal(t, 2, h.refinePlans)
	assert.False(t, out.Evaluation.Passed)
	require.Len(t, h.deliverer.reports, 1)
	assert.Equal(t, "draft 3", h.deliverer.reports[0].ShortSummary)
}

func TestRunIterationCapIsConfigurable(t *testing.T) {
	for _, limit := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("cap %d", limit), func(t *testing.T) {
			evals := make([]Scores, limit+1)
			for i := range evals {
				evals[i] = failing
			}
			h := newHarness(evals...)
			cfg := DefaultConfig()
			cfg.MaxIterations = limit
			e := newTestEngine(t, cfg, h.agents)

			out, err := e.Run(context.Background(), "", mustQuery(t, "X"), nil)
			require.NoError(t, err)
			assert.Equal(t, limit, out.Iteration)
			assert.LessOrEqual(t, out.Iteration, cfg.MaxIterations)
			assert.Equal(t, limit-1, out.Refinements)
		})
	}
}

func TestRunWritesReportWhenAllSearchesFail(t *testing.T) {
	h := newHarness(failing, failing, failing)
	h.agents.Searcher = AgentFunc[SearchTask, SearchResult](func(context.Context, SearchTask) (SearchResult, error) {
		return SearchResult{}, errors.New("provider down")
	})
	e := newTestEngine(t, DefaultConfig(), h.agents)

	var failed atomic.Int32
	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), func(ev Event) {
		if ev.Type == EventSearchFailed {
			failed.Add(1)
		}
	})
	require.NoError(t, err)

	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Report.Markdown)
	assert.Empty(t, h.writes[0].Results)
	assert.Equal(t, int32(7+4+4), failed.Load())
}

func TestRunDropsEmptyAndFailedSearches(t *testing.T) {
	h := newHarness(passing)
	h.agents.Searcher = AgentFunc[SearchTask, SearchResult](func(_ context.Context, task SearchTask) (SearchResult, error) {
		switch task.Query {
		case "initial 2":
			return SearchResult{}, errors.New("timeout")
		case "initial 5":
			return SearchResult{Summary: "  "}, nil
		}
		return SearchResult{Summary: "ok " + task.Query}, nil
	})
	e := newTestEngine(t, DefaultConfig(), h.agents)

	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), nil)
	require.NoError(t, err)

	require.Len(t, out.Results, 5)
	assert.Equal(t, "initial 1", out.Results[0].Task.Query, "task filled in when searcher omits it")
	assert.Equal(t, "initial 3", out.Results[1].Task.Query)
}

func TestRunKeepsPlanOrder(t *testing.T) {
	h := newHarness(passing)
	h.agents.Searcher = AgentFunc[SearchTask, SearchResult](func(_ context.Context, task SearchTask) (SearchResult, error) {
		var n int
		fmt.Sscanf(task.Query, "initial %d", &n)
		time.Sleep(time.Duration(8-n) * 5 * time.Millisecond)
		return SearchResult{Task: task, Summary: task.Query}, nil
	})
	e := newTestEngine(t, DefaultConfig(), h.agents)

	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), nil)
	require.NoError(t, err)
	require.Len(t, out.Results, 7)
	for i, r := range out.Results {
		assert.Equal(t, fmt.Sprintf("initial %d", i+1), r.Task.Query)
	}
}

func TestRunResultsNeverShrink(t *testing.T) {
	h := newHarness(failing, failing, failing)
	calls := 0
	h.agents.Searcher = AgentFunc[SearchTask, SearchResult](func(_ context.Context, task SearchTask) (SearchResult, error) {
		return SearchResult{Task: task, Summary: "s"}, nil
	})
	// Second refinement round finds nothing.
	h.agents.RefinePlanner = AgentFunc[PlanInput, SearchPlan](func(context.Context, PlanInput) (SearchPlan, error) {
		calls++
		if calls == 2 {
			return SearchPlan{}, nil
		}
		return planOf(3, "refine"), nil
	})
	e := newTestEngine(t, DefaultConfig(), h.agents)

	var mu sync.Mutex
	var seen []int
	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), func(ev Event) {
		mu.Lock()
		seen = append(seen, ev.Results)
		mu.Unlock()
	})
	require.NoError(t, err)

	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Len(t, out.Results, 10)

	var perRound []int
	for _, w := range h.writes {
		perRound = append(perRound, len(w.Results))
	}
	assert.Equal(t, []int{7, 10, 10}, perRound)
}

func TestRunTruncatesOversizedPlans(t *testing.T) {
	h := newHarness(failing, passing)
	h.agents.Planner = AgentFunc[PlanInput, SearchPlan](func(context.Context, PlanInput) (SearchPlan, error) {
		plan := planOf(9, "initial")
		plan.Searches = append(plan.Searches, SearchTask{Query: "  "})
		return plan, nil
	})
	h.agents.RefinePlanner = AgentFunc[PlanInput, SearchPlan](func(context.Context, PlanInput) (SearchPlan, error) {
		return planOf(8, "refine"), nil
	})
	e := newTestEngine(t, DefaultConfig(), h.agents)

	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), nil)
	require.NoError(t, err)
	assert.Len(t, out.Results, 7+5)
}

func TestRunLimitsSearchConcurrency(t *testing.T) {
	h := newHarness(passing)
	var inFlight, peak atomic.Int32
	h.agents.Searcher = AgentFunc[SearchTask, SearchResult](func(_ context.Context, task SearchTask) (SearchResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return SearchResult{Task: task, Summary: "s"}, nil
	})
	cfg := DefaultConfig()
	cfg.MaxConcurrentSearches = 2
	e := newTestEngine(t, cfg, h.agents)

	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), nil)
	require.NoError(t, err)
	assert.Len(t, out.Results, 7)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunAbortsOnAgentFailure(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		mutate func(*Agents)
		want   string
	}{
		{"Planner", func(a *Agents) {
			a.Planner = AgentFunc[PlanInput, SearchPlan](func(context.Context, PlanInput) (SearchPlan, error) { return SearchPlan{}, boom })
		}, "planning failed"},
		{"Writer", func(a *Agents) {
			a.Writer = AgentFunc[WriteInput, Report](func(context.Context, WriteInput) (Report, error) { return Report{}, boom })
		}, "writing failed"},
		{"Evaluator", func(a *Agents) {
			a.Evaluator = AgentFunc[EvaluateInput, Evaluation](func(context.Context, EvaluateInput) (Evaluation, error) { return Evaluation{}, boom })
		}, "evaluation failed"},
		{"Refinement planner", func(a *Agents) {
			a.RefinePlanner = AgentFunc[PlanInput, SearchPlan](func(context.Context, PlanInput) (SearchPlan, error) { return SearchPlan{}, boom })
		}, "refinement planning failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(failing, failing, failing)
			tt.mutate(&h.agents)
			e := newTestEngine(t, DefaultConfig(), h.agents)

			var gotError bool
			out, err := e.Run(context.Background(), "", mustQuery(t, "X"), func(ev Event) {
				if ev.Type == EventError {
					gotError = true
					assert.Equal(t, PhaseFailed, ev.Phase)
				}
			})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, gotError)
			assert.Empty(t, h.deliverer.reports)
		})
	}
}

func TestRunDeliveryFailureKeepsReport(t *testing.T) {
	h := newHarness(passing)
	h.deliverer.err = errors.New("smtp refused")
	e := newTestEngine(t, DefaultConfig(), h.agents)

	var types []EventType
	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), func(ev Event) { types = append(types, ev.Type) })
	require.NoError(t, err)

	assert.EqualError(t, out.DeliveryErr, "smtp refused")
	assert.Equal(t, "draft 1", out.Report.ShortSummary)
	assert.Contains(t, types, EventDeliveryFailed)
	assert.Equal(t, EventFollowUp, types[len(types)-1])
}

func TestRunWithoutDeliverer(t *testing.T) {
	h := newHarness(passing)
	h.agents.Deliverer = nil
	e := newTestEngine(t, DefaultConfig(), h.agents)

	out, err := e.Run(context.Background(), "", mustQuery(t, "X"), nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, out.Phase)
}

func TestRunEmitsPhasesInOrder(t *testing.T) {
	h := newHarness(failing, passing)
	e := newTestEngine(t, DefaultConfig(), h.agents)

	var phases []Phase
	_, err := e.Run(context.Background(), "", mustQuery(t, "X"), func(ev Event) {
		if ev.Type == EventPhase {
			phases = append(phases, ev.Phase)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []Phase{
		PhasePlanning, PhaseSearching, PhaseWriting, PhaseEvaluating,
		PhaseRefining, PhaseSearching, PhaseWriting, PhaseEvaluating,
		PhaseDelivering, PhaseDone,
	}, phases)
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	h := newHarness(passing)
	e := newTestEngine(t, DefaultConfig(), h.agents)

	_, err := e.Run(context.Background(), "", Query{}, nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRunHonoursCancellation(t *testing.T) {
	h := newHarness(passing)
	ctx, cancel := context.WithCancel(context.Background())
	h.agents.Planner = AgentFunc[PlanInput, SearchPlan](func(context.Context, PlanInput) (SearchPlan, error) {
		cancel()
		return planOf(2, "initial"), nil
	})
	e := newTestEngine(t, DefaultConfig(), h.agents)

	_, err := e.Run(ctx, "", mustQuery(t, "X"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClarify(t *testing.T) {
	h := newHarness(passing)
	e := newTestEngine(t, DefaultConfig(), h.agents)

	qs, err := e.Clarify(context.Background(), "X")
	require.NoError(t, err)
	assert.Len(t, qs, 3)

	_, err = e.Clarify(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNewEngineRequiresAgents(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), Agents{}, nil)
	assert.Error(t, err)

	h := newHarness(passing)
	h.agents.RefinePlanner = nil
	e, err := NewEngine(DefaultConfig(), h.agents, nil)
	require.NoError(t, err)
	assert.NotNil(t, e.Agents.RefinePlanner)
}
