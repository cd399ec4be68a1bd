package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/database"
)

// DBLogHandler is a slog.Handler that writes records of one session to the
// database and passes them on to next, if set.
type DBLogHandler struct {
	DB        LogWriter
	SessionID uuid.UUID
	Level     slog.Leveler

	next   slog.Handler
	attrs  []slog.Attr
	prefix string
}

func NewDBLogHandler(db LogWriter, sessionID uuid.UUID, next slog.Handler) *DBLogHandler {
	return &DBLogHandler{
		DB:        db,
		SessionID: sessionID,
		Level:     slog.LevelInfo,
		next:      next,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.Level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error

	if r.Level >= h.Level.Level() {
		attrs := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			attrs[a.Key] = jsonValue(a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			attrs[h.prefix+a.Key] = jsonValue(a.Value)
			return true
		})

		metaJSON, err := json.Marshal(attrs)
		if err != nil {
			metaJSON = []byte("{}")
		}

		// Background context: the log row should land even when the run's
		// context has been cancelled.
		err = h.DB.InsertLog(context.Background(), h.SessionID, database.LogEntry{
			Timestamp: r.Time,
			Level:     r.Level.String(),
			Message:   r.Message,
			Metadata:  metaJSON,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		if err := h.next.Handle(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	if h.next != nil {
		cp.next = h.next.WithAttrs(attrs)
	}
	return &cp
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	if h.next != nil {
		cp.next = h.next.WithGroup(name)
	}
	return &cp
}

func jsonValue(v slog.Value) interface{} {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := make(map[string]interface{}, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = jsonValue(a.Value)
		}
		return group
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}
