package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/archive"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

// LogWriter persists one log record of a session.
type LogWriter interface {
	InsertLog(ctx context.Context, sessionID uuid.UUID, e database.LogEntry) error
}

// Store is the session persistence the service needs. *database.PostgresDB
// implements it.
type Store interface {
	LogWriter
	CreateSession(ctx context.Context, query string, questions []string) (*database.SessionRecord, error)
	GetSession(ctx context.Context, id uuid.UUID) (*database.SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]database.SessionRecord, error)
	StartSession(ctx context.Context, id uuid.UUID, answers string) error
	SaveProgress(ctx context.Context, id uuid.UUID, p database.Progress) error
	CompleteSession(ctx context.Context, id uuid.UUID, c database.Completion) error
	FailSession(ctx context.Context, id uuid.UUID, reason string) error
	ListLogs(ctx context.Context, sessionID uuid.UUID) ([]database.LogEntry, error)
}

// Archiver stores the findings of finished sessions and searches them.
type Archiver interface {
	Save(ctx context.Context, sessionID, query string, results []research.SearchResult) (int, error)
	Search(ctx context.Context, query string, k int, sessionID string) ([]archive.Finding, error)
}

var (
	_ Store    = (*database.PostgresDB)(nil)
	_ Archiver = (*archive.Archive)(nil)
)
