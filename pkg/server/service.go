package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

const listLimit = 50

type Service struct {
	Store   Store
	Engine  *research.Engine
	Archive Archiver
	Hub     *Hub
	// Observer, if set, sees every event of every session (metrics).
	Observer research.Observer
	Logger   *slog.Logger

	workers sync.WaitGroup
}

func NewService(store Store, engine *research.Engine, archive Archiver, hub *Hub, logger *slog.Logger) *Service {
	if hub == nil {
		hub = NewHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:   store,
		Engine:  engine,
		Archive: archive,
		Hub:     hub,
		Logger:  logger,
	}
}

type CreateSessionRequest struct {
	Query string `json:"query"`
}

type SubmitAnswersRequest struct {
	Answers string `json:"answers"`
}

// CreateSession asks the clarifier for questions and stores a session that
// waits for the user's answers.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*database.SessionRecord, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, research.ErrEmptyQuery
	}

	questions, err := s.Engine.Clarify(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Store.CreateSession(ctx, query, questions)
}

// SubmitAnswers records the answers (or the skip token) and starts the
// research in the background.
func (s *Service) SubmitAnswers(ctx context.Context, id uuid.UUID, req SubmitAnswersRequest) (*database.SessionRecord, error) {
	rec, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != database.StatusClarifying {
		return nil, database.ErrConflict
	}

	q, err := s.Engine.NewQuery(rec.Query, req.Answers)
	if err != nil {
		return nil, err
	}
	if err := s.Store.StartSession(ctx, id, req.Answers); err != nil {
		return nil, err
	}

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.runWorker(id, q)
	}()

	return s.Store.GetSession(ctx, id)
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*database.SessionRecord, error) {
	return s.Store.GetSession(ctx, id)
}

func (s *Service) ListSessions(ctx context.Context) ([]database.SessionRecord, error) {
	return s.Store.ListSessions(ctx, listLimit)
}

func (s *Service) GetSessionLogs(ctx context.Context, id uuid.UUID) ([]database.LogEntry, error) {
	if _, err := s.Store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListLogs(ctx, id)
}

// Wait blocks until every running session has finished.
func (s *Service) Wait() {
	s.workers.Wait()
}

func (s *Service) runWorker(id uuid.UUID, q research.Query) {
	ctx := context.Background()
	sessionID := id.String()
	defer s.Hub.Close(sessionID)

	logger := slog.New(NewDBLogHandler(s.Store, id, s.Logger.Handler()))
	engine := s.Engine.WithLogger(logger)

	progress := &progressRecorder{store: s.Store, id: id, logger: logger}
	obs := research.Observers(progress.observe, s.Hub.Publish, s.Observer)

	out, err := engine.Run(ctx, sessionID, q, obs)
	if err != nil {
		if ferr := s.Store.FailSession(ctx, id, err.Error()); ferr != nil {
			logger.Error("Failed to mark session failed", "error", ferr)
		}
		return
	}

	completion := database.Completion{
		Progress:     progress.snapshot(research.PhaseDone, out.Iteration, len(out.Results)),
		Report:       out.Report.Markdown,
		ShortSummary: out.Report.ShortSummary,
		FollowUps:    out.Report.FollowUpQuestions,
	}
	if out.DeliveryErr != nil {
		completion.DeliveryError = out.DeliveryErr.Error()
	}
	if err := s.Store.CompleteSession(ctx, id, completion); err != nil {
		logger.Error("Failed to save final report to DB", "error", err)
	}

	if s.Archive != nil {
		if _, err := s.Archive.Save(ctx, sessionID, q.Original, out.Results); err != nil {
			logger.Warn("Failed to archive findings", "error", err)
		}
	}
}

// progressRecorder saves the session's phase, counters and evaluation history
// as events arrive. The engine serializes observer calls.
type progressRecorder struct {
	store       Store
	id          uuid.UUID
	logger      *slog.Logger
	evaluations []research.Evaluation
}

func (p *progressRecorder) observe(ev research.Event) {
	switch ev.Type {
	case research.EventEvaluation:
		if ev.Evaluation != nil {
			p.evaluations = append(p.evaluations, *ev.Evaluation)
		}
	case research.EventPhase:
		if ev.Phase == research.PhaseDone || ev.Phase == research.PhaseFailed {
			return
		}
	default:
		return
	}

	if err := p.store.SaveProgress(context.Background(), p.id, p.snapshot(ev.Phase, ev.Iteration, ev.Results)); err != nil {
		p.logger.Error("Failed to save progress to DB", "error", err)
	}
}

func (p *progressRecorder) snapshot(phase research.Phase, iteration, results int) database.Progress {
	evaluations, err := json.Marshal(p.evaluations)
	if err != nil || p.evaluations == nil {
		evaluations = nil
	}
	return database.Progress{
		Phase:       string(phase),
		Iteration:   iteration,
		Results:     results,
		Evaluations: evaluations,
	}
}
