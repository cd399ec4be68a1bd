package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when a session is not in the state an update expects.
	ErrConflict = errors.New("session is not awaiting answers")
)

// Session statuses.
const (
	StatusClarifying = "clarifying"
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type SessionRecord struct {
	ID            uuid.UUID       `json:"id"`
	Query         string          `json:"query"`
	Questions     []string        `json:"questions"`
	Answers       *string         `json:"answers,omitempty"`
	Status        string          `json:"status"`
	Phase         string          `json:"phase"`
	Iteration     int             `json:"iteration"`
	Results       int             `json:"results"`
	Report        *string         `json:"report,omitempty"`
	ShortSummary  *string         `json:"short_summary,omitempty"`
	FollowUps     []string        `json:"follow_up_questions"`
	Evaluations   json.RawMessage `json:"evaluations"`
	Error         *string         `json:"error,omitempty"`
	DeliveryError *string         `json:"delivery_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Progress is the running state saved while a session is researched.
type Progress struct {
	Phase       string
	Iteration   int
	Results     int
	Evaluations json.RawMessage
}

// Completion is what a finished session stores.
type Completion struct {
	Progress
	Report        string
	ShortSummary  string
	FollowUps     []string
	DeliveryError string
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

const sessionColumns = `id, query, questions, answers, status, phase, iteration, results, report,
	short_summary, follow_ups, evaluations, error, delivery_error, created_at, updated_at`

func scanSession(row pgx.Row) (*SessionRecord, error) {
	s := &SessionRecord{}
	var questions, followUps []byte
	err := row.Scan(&s.ID, &s.Query, &questions, &s.Answers, &s.Status, &s.Phase, &s.Iteration, &s.Results,
		&s.Report, &s.ShortSummary, &followUps, &s.Evaluations, &s.Error, &s.DeliveryError, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return nil, fmt.Errorf("invalid questions column: %w", err)
	}
	if err := json.Unmarshal(followUps, &s.FollowUps); err != nil {
		return nil, fmt.Errorf("invalid follow_ups column: %w", err)
	}
	return s, nil
}

func (db *PostgresDB) CreateSession(ctx context.Context, query string, questions []string) (*SessionRecord, error) {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}

	row := db.Pool.QueryRow(ctx, `
		INSERT INTO research_sessions (id, query, questions)
		VALUES ($1, $2, $3)
		RETURNING `+sessionColumns, uuid.New(), query, questionsJSON)

	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (db *PostgresDB) GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	s, err := scanSession(db.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM research_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (db *PostgresDB) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+sessionColumns+` FROM research_sessions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			continue
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// StartSession records the user's answers and moves the session from
// clarifying to running.
func (db *PostgresDB) StartSession(ctx context.Context, id uuid.UUID, answers string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE research_sessions
		SET answers = $2, status = 'running', phase = 'planning', updated_at = NOW()
		WHERE id = $1 AND status = 'clarifying'`, id, answers)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetSession(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (db *PostgresDB) SaveProgress(ctx context.Context, id uuid.UUID, p Progress) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE research_sessions
		SET phase = $2, iteration = $3, results = $4, evaluations = COALESCE($5, evaluations), updated_at = NOW()
		WHERE id = $1`, id, p.Phase, p.Iteration, p.Results, nullJSON(p.Evaluations))
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (db *PostgresDB) CompleteSession(ctx context.Context, id uuid.UUID, c Completion) error {
	followUps, err := json.Marshal(c.FollowUps)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
		UPDATE research_sessions
		SET status = 'completed', phase = $2, iteration = $3, results = $4, evaluations = COALESCE($5, evaluations),
			report = $6, short_summary = $7, follow_ups = $8, delivery_error = NULLIF($9, ''), updated_at = NOW()
		WHERE id = $1`,
		id, c.Phase, c.Iteration, c.Results, nullJSON(c.Evaluations), c.Report, c.ShortSummary, followUps, c.DeliveryError)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

func (db *PostgresDB) FailSession(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE research_sessions SET status = 'failed', phase = 'failed', error = $2, updated_at = NOW()
		WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}
	return nil
}

func (db *PostgresDB) InsertLog(ctx context.Context, sessionID uuid.UUID, e LogEntry) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO research_logs (session_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)`, sessionID, e.Timestamp, e.Level, e.Message, []byte(e.Metadata))
	return err
}

func (db *PostgresDB) ListLogs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE session_id = $1
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
