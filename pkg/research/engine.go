package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Engine sequences the role agents through clarify, plan, search, write,
// evaluate and refine, then delivers the report.
type Engine struct {
	Config Config
	Agents Agents
	Logger *slog.Logger
}

func NewEngine(cfg Config, agents Agents, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid research config: %w", err)
	}
	if agents.Planner == nil || agents.Searcher == nil || agents.Writer == nil || agents.Evaluator == nil {
		return nil, errors.New("planner, searcher, writer and evaluator agents are required")
	}
	if agents.RefinePlanner == nil {
		agents.RefinePlanner = agents.Planner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Config: cfg, Agents: agents, Logger: logger}, nil
}

// WithLogger returns a copy of the engine that logs to logger. The copy
// shares config and agents with e.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	cp := *e
	cp.Logger = logger
	return &cp
}

// Clarify asks the clarifier for questions that sharpen the raw query.
func (e *Engine) Clarify(ctx context.Context, raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyQuery
	}
	if e.Agents.Clarifier == nil {
		return nil, errors.New("no clarifier agent configured")
	}
	e.Logger.Info("Generating clarifying questions", "query", raw)

	out, err := e.Agents.Clarifier.Submit(ctx, ClarifyInput{Query: raw})
	if err != nil {
		return nil, fmt.Errorf("clarification failed: %w", err)
	}
	return out.Questions, nil
}

// NewQuery builds a query using the engine's skip token.
func (e *Engine) NewQuery(original, answers string) (Query, error) {
	return NewQuery(original, answers, e.Config.SkipToken)
}

// Run executes the research pipeline for q. sessionID may be empty, in which
// case one is generated. obs may be nil.
//
// Errors from the planner, writer or evaluator abort the run. Failed searches
// are dropped and a delivery failure is reported on the Outcome.
func (e *Engine) Run(ctx context.Context, sessionID string, q Query, obs Observer) (*Outcome, error) {
	if strings.TrimSpace(q.Original) == "" {
		return nil, ErrEmptyQuery
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	r := &run{
		engine:  e,
		session: &Session{ID: sessionID, Query: q},
		obs:     obs,
		logger:  e.Logger.With("session", sessionID),
	}
	return r.execute(ctx)
}

type run struct {
	engine  *Engine
	session *Session
	obs     Observer
	logger  *slog.Logger
	mu      sync.Mutex
}

func (r *run) execute(ctx context.Context) (*Outcome, error) {
	cfg := r.engine.Config
	agents := r.engine.Agents
	s := r.session
	pass := cfg.predicate()

	r.logger.Info("Starting research", "query", s.Query.Original, "clarified", !s.Query.Skipped())

	r.setPhase(PhasePlanning, "Planning research strategy...")
	plan, err := agents.Planner.Submit(ctx, PlanInput{Query: s.Query})
	if err != nil {
		return nil, r.fail(fmt.Errorf("planning failed: %w", err))
	}
	tasks := limitTasks(plan.Searches, cfg.InitialSearches)
	r.emit(Event{Type: EventPlan, Plan: tasks, Message: describePlan(tasks)})

	r.setPhase(PhaseSearching, fmt.Sprintf("Executing %d searches in parallel...", len(tasks)))
	s.appendResults(r.search(ctx, tasks))
	r.status(fmt.Sprintf("Initial search complete. Got %d results.", len(s.Results)))

	var previous *Report
	var feedback *Evaluation

	for {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(err)
		}
		s.Iteration++
		r.logger.Info("Starting iteration", "iteration", s.Iteration, "max", cfg.MaxIterations, "results", len(s.Results))

		r.setPhase(PhaseWriting, fmt.Sprintf("Writing report (iteration %d/%d)...", s.Iteration, cfg.MaxIterations))
		report, err := agents.Writer.Submit(ctx, WriteInput{
			Query:    s.Query,
			Results:  append([]SearchResult(nil), s.Results...),
			Previous: previous,
			Feedback: feedback,
		})
		if err != nil {
			return nil, r.fail(fmt.Errorf("writing failed: %w", err))
		}
		s.Report = report
		r.emit(Event{Type: EventDraft, Message: fmt.Sprintf("Draft %d complete (%d words). Evaluating quality...", s.Iteration, report.WordCount())})

		r.setPhase(PhaseEvaluating, "")
		ev, err := agents.Evaluator.Submit(ctx, EvaluateInput{Query: s.Query, Report: report, Results: s.Results})
		if err != nil {
			return nil, r.fail(fmt.Errorf("evaluation failed: %w", err))
		}
		ev.Scores = ev.Scores.Clamp()
		ev.Passed = pass(ev.Scores)
		s.Evaluation = &ev
		s.Evaluations = append(s.Evaluations, ev)

		r.logger.Info("Evaluation complete", "iteration", s.Iteration, "average", ev.Scores.Average(), "min", ev.Scores.Min(), "passed", ev.Passed)
		evCopy := ev
		r.emit(Event{Type: EventEvaluation, Evaluation: &evCopy, Message: fmt.Sprintf("Evaluation scores: %s\n%s", ev.Scores, ev.Summary)})

		if ev.Passed {
			r.status("Report meets quality standards!")
			break
		}
		if s.Iteration >= cfg.MaxIterations {
			r.status("Max iterations reached. Proceeding with current report.")
			break
		}

		r.setPhase(PhaseRefining, "Report needs improvement. Identified gaps:\n"+bulletList(ev.Gaps)+"\n\nPlanning additional research...")
		refinement, err := agents.RefinePlanner.Submit(ctx, PlanInput{
			Query:    s.Query,
			Feedback: &ev,
			Existing: append([]SearchResult(nil), s.Results...),
		})
		if err != nil {
			return nil, r.fail(fmt.Errorf("refinement planning failed: %w", err))
		}
		tasks := limitTasks(refinement.Searches, cfg.RefinementSearchesMax)
		s.Refinements++
		r.emit(Event{Type: EventPlan, Plan: tasks, Message: describePlan(tasks)})

		r.setPhase(PhaseSearching, fmt.Sprintf("Executing %d additional searches...", len(tasks)))
		s.appendResults(r.search(ctx, tasks))
		r.status(fmt.Sprintf("Now have %d total search results. Rewriting report...", len(s.Results)))

		previous = &report
		feedback = &ev
	}

	out := &Outcome{}
	if d := agents.Deliverer; d != nil {
		r.setPhase(PhaseDelivering, "Sending report via email...")
		if err := d.Deliver(ctx, s.Query, s.Report); err != nil {
			r.logger.Error("Report delivery failed", "error", err)
			r.emit(Event{Type: EventDeliveryFailed, Message: err.Error()})
			out.DeliveryErr = err
		} else {
			r.status("Email sent! Research complete.")
		}
	}

	r.setPhase(PhaseDone, "")
	report := s.Report
	r.emit(Event{Type: EventReport, Report: &report})
	r.emit(Event{Type: EventFollowUp, FollowUps: report.FollowUpQuestions})

	r.logger.Info("Research finished", "iterations", s.Iteration, "results", len(s.Results), "passed", s.Evaluation.Passed)
	out.Session = s.snapshot()
	return out, nil
}

// search runs every task concurrently and waits for all of them. Failed or
// empty searches are dropped; the survivors keep plan order.
func (r *run) search(ctx context.Context, tasks []SearchTask) []SearchResult {
	slots := make([]*SearchResult, len(tasks))

	var g errgroup.Group
	if limit := r.engine.Config.MaxConcurrentSearches; limit > 0 {
		g.SetLimit(limit)
	}
	for i, task := range tasks {
		g.Go(func() error {
			res, err := r.engine.Agents.Searcher.Submit(ctx, task)
			if err == nil && strings.TrimSpace(res.Summary) == "" {
				err = errors.New("empty search summary")
			}
			if err != nil {
				r.logger.Warn("Search failed", "query", task.Query, "error", err)
				r.emit(Event{Type: EventSearchFailed, Task: &task, Message: err.Error()})
				return nil
			}
			if res.Task.Query == "" {
				res.Task = task
			}
			slots[i] = &res
			r.emit(Event{Type: EventSearchDone, Task: &task})
			return nil
		})
	}
	_ = g.Wait()

	results := make([]SearchResult, 0, len(tasks))
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	r.logger.Info("Search round complete", "planned", len(tasks), "succeeded", len(results))
	return results
}

func (r *run) setPhase(p Phase, msg string) {
	r.session.Phase = p
	r.emit(Event{Type: EventPhase, Message: msg})
}

func (r *run) status(msg string) {
	r.emit(Event{Type: EventStatus, Message: msg})
}

func (r *run) fail(err error) error {
	r.logger.Error("Research failed", "phase", r.session.Phase, "error", err)
	r.session.Phase = PhaseFailed
	r.emit(Event{Type: EventError, Message: err.Error()})
	return err
}

func (r *run) emit(ev Event) {
	if r.obs == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.SessionID = r.session.ID
	ev.Phase = r.session.Phase
	ev.Iteration = r.session.Iteration
	ev.Results = len(r.session.Results)
	r.obs(ev)
}

func limitTasks(tasks []SearchTask, n int) []SearchTask {
	out := make([]SearchTask, 0, len(tasks))
	for _, t := range tasks {
		if strings.TrimSpace(t.Query) == "" {
			continue
		}
		out = append(out, t)
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func describePlan(tasks []SearchTask) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("- %s (%s)", t.Query, t.Reason))
	}
	return fmt.Sprintf("Planned %d searches:\n%s", len(tasks), strings.Join(lines, "\n"))
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}
