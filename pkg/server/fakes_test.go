package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/archive"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*database.SessionRecord
	logs     map[uuid.UUID][]database.LogEntry
	progress []database.Progress
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uuid.UUID]*database.SessionRecord),
		logs:     make(map[uuid.UUID][]database.LogEntry),
	}
}

func (m *memStore) CreateSession(_ context.Context, query string, questions []string) (*database.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rec := &database.SessionRecord{
		ID:          uuid.New(),
		Query:       query,
		Questions:   questions,
		Status:      database.StatusClarifying,
		Phase:       string(research.PhaseClarifying),
		FollowUps:   []string{},
		Evaluations: json.RawMessage("[]"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.sessions[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*database.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) ListSessions(_ context.Context, limit int) ([]database.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.SessionRecord
	for _, rec := range m.sessions {
		if len(out) == limit {
			break
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (m *memStore) StartSession(_ context.Context, id uuid.UUID, answers string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return database.ErrNotFound
	}
	if rec.Status != database.StatusClarifying {
		return database.ErrConflict
	}
	rec.Answers = &answers
	rec.Status = database.StatusRunning
	rec.Phase = string(research.PhasePlanning)
	return nil
}

func (m *memStore) SaveProgress(_ context.Context, id uuid.UUID, p database.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return database.ErrNotFound
	}
	m.progress = append(m.progress, p)
	rec.Phase, rec.Iteration, rec.Results = p.Phase, p.Iteration, p.Results
	if p.Evaluations != nil {
		rec.Evaluations = p.Evaluations
	}
	return nil
}

func (m *memStore) CompleteSession(_ context.Context, id uuid.UUID, c database.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return database.ErrNotFound
	}
	rec.Status = database.StatusCompleted
	rec.Phase, rec.Iteration, rec.Results = c.Phase, c.Iteration, c.Results
	if c.Evaluations != nil {
		rec.Evaluations = c.Evaluations
	}
	rec.Report, rec.ShortSummary = &c.Report, &c.ShortSummary
	rec.FollowUps = c.FollowUps
	if c.DeliveryError != "" {
		rec.DeliveryError = &c.DeliveryError
	}
	return nil
}

func (m *memStore) FailSession(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return database.ErrNotFound
	}
	rec.Status, rec.Phase, rec.Error = database.StatusFailed, string(research.PhaseFailed), &reason
	return nil
}

func (m *memStore) InsertLog(_ context.Context, id uuid.UUID, e database.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = len(m.logs[id]) + 1
	m.logs[id] = append(m.logs[id], e)
	return nil
}

func (m *memStore) ListLogs(_ context.Context, id uuid.UUID) ([]database.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.LogEntry(nil), m.logs[id]...), nil
}

func (m *memStore) phases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.progress))
	for _, p := range m.progress {
		out = append(out, p.Phase)
	}
	return out
}

type fakeArchive struct {
	mu       sync.Mutex
	saved    map[string][]research.SearchResult
	queries  []string
	findings []archive.Finding
}

func (a *fakeArchive) Save(_ context.Context, sessionID, _ string, results []research.SearchResult) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saved == nil {
		a.saved = make(map[string][]research.SearchResult)
	}
	a.saved[sessionID] = results
	return len(results), nil
}

func (a *fakeArchive) Search(_ context.Context, query string, _ int, _ string) ([]archive.Finding, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, query)
	return a.findings, nil
}

func (a *fakeArchive) savedFor(sessionID string) []research.SearchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saved[sessionID]
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// testAgents returns agents that pass on the first evaluation. planErr, when
// set, fails planning.
func testAgents(planErr error) research.Agents {
	return research.Agents{
		Clarifier: research.AgentFunc[research.ClarifyInput, research.Clarification](func(_ context.Context, in research.ClarifyInput) (research.Clarification, error) {
			return research.Clarification{Questions: []string{"Which region?", "What timeframe?", "How technical?"}}, nil
		}),
		Planner: research.AgentFunc[research.PlanInput, research.SearchPlan](func(_ context.Context, in research.PlanInput) (research.SearchPlan, error) {
			if planErr != nil {
				return research.SearchPlan{}, planErr
			}
			return research.SearchPlan{Searches: []research.SearchTask{
				{Query: "grid storage costs", Reason: "prices"},
				{Query: "sodium ion outlook", Reason: "alternatives"},
			}}, nil
		}),
		Searcher: research.AgentFunc[research.SearchTask, research.SearchResult](func(_ context.Context, task research.SearchTask) (research.SearchResult, error) {
			return research.SearchResult{
				Task:    task,
				Summary: fmt.Sprintf("Findings for %s.", task.Query),
				Sources: []research.Source{{Title: "Example", URL: "https://example.com/" + task.Reason}},
			}, nil
		}),
		Writer: research.AgentFunc[research.WriteInput, research.Report](func(_ context.Context, in research.WriteInput) (research.Report, error) {
			return research.Report{
				ShortSummary:      "Storage keeps getting cheaper.",
				Markdown:          "# Battery Storage\n\nPrices fell.",
				FollowUpQuestions: []string{"What about recycling?"},
			}, nil
		}),
		Evaluator: research.AgentFunc[research.EvaluateInput, research.Evaluation](func(_ context.Context, in research.EvaluateInput) (research.Evaluation, error) {
			return research.Evaluation{
				Scores:  research.Scores{Completeness: 8, Depth: 8, Accuracy: 8, Structure: 8, Insight: 8},
				Summary: "Solid.",
			}, nil
		}),
	}
}

func newTestService(t *testing.T, planErr error) (*Service, *memStore, *fakeArchive) {
	t.Helper()
	engine, err := research.NewEngine(research.DefaultConfig(), testAgents(planErr), discard)
	require.NoError(t, err)

	store := newMemStore()
	arch := &fakeArchive{}
	return NewService(store, engine, arch, NewHub(), discard), store, arch
}

var errBoom = errors.New("boom")
