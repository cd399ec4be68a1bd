package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

type Handler struct {
	Service *Service
	Metrics http.Handler
	mcp     *mcpSessions
}

func NewHandler(s *Service, metrics http.Handler) *Handler {
	return &Handler{Service: s, Metrics: metrics, mcp: newMCPSessions()}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/mcp", h.MCPHandler)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	api := r.Group("/api")
	{
		api.POST("/research", h.createSession)
		api.GET("/research", h.listSessions)
		api.GET("/research/:id", h.getSession)
		api.POST("/research/:id/answers", h.submitAnswers)
		api.GET("/research/:id/logs", h.getSessionLogs)
		api.GET("/research/:id/events", h.streamEvents)
	}
}

// streamEnd is the last SSE message of a stream.
type streamEnd struct {
	Type   string  `json:"type"`
	Status string  `json:"status"`
	Phase  string  `json:"phase"`
	Error  *string `json:"error,omitempty"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.Service.CreateSession(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) submitAnswers(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.Service.SubmitAnswers(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, session)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.Service.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Return empty list instead of null
	if sessions == nil {
		sessions = []database.SessionRecord{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) getSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.Service.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handler) getSessionLogs(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	logs, err := h.Service.GetSessionLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if logs == nil {
		logs = []database.LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

// streamEvents relays the session's progress events as server-sent events
// until the session finishes or the client goes away.
func (h *Handler) streamEvents(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// Subscribe before reading the status so a session finishing in between
	// still closes this subscription.
	events, unsubscribe := h.Service.Hub.Subscribe(id.String())
	defer unsubscribe()

	session, err := h.Service.GetSession(ctx, id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	if finished(session.Status) {
		writeEvent(c, endOf(session))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				if final, err := h.Service.GetSession(ctx, id); err == nil {
					writeEvent(c, endOf(final))
				}
				return
			}
			writeEvent(c, ev)
		}
	}
}

func writeEvent(c *gin.Context, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = c.Writer.Write([]byte("data: "))
	_, _ = c.Writer.Write(data)
	_, _ = c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func endOf(s *database.SessionRecord) streamEnd {
	return streamEnd{Type: "end", Status: s.Status, Phase: s.Phase, Error: s.Error}
}

func finished(status string) bool {
	return status == database.StatusCompleted || status == database.StatusFailed
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, research.ErrEmptyQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
