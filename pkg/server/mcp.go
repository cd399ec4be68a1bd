package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/archive"
	"github.com/mikeboe/deep-research/pkg/database"
)

const mcpProtocolVersion = "2024-11-05"

// MCPRequest represents an MCP JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an MCP JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type mcpSessions struct {
	mu      sync.RWMutex
	created map[string]int64
}

func newMCPSessions() *mcpSessions {
	return &mcpSessions{created: make(map[string]int64)}
}

func (m *mcpSessions) open() string {
	id := uuid.New().String()
	m.mu.Lock()
	m.created[id] = time.Now().Unix()
	m.mu.Unlock()
	return id
}

func (m *mcpSessions) valid(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.created[id]
	return ok
}

type getReportArgs struct {
	SessionID string `json:"session_id"`
}

type searchFindingsArgs struct {
	Query     string `json:"query"`
	TopK      int    `json:"topK"`
	SessionID string `json:"session_id"`
}

// MCPHandler handles MCP protocol requests
func (h *Handler) MCPHandler(c *gin.Context) {
	sessionID := c.GetHeader("Mcp-Session-Id")

	var req MCPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			Error:   &MCPError{Code: -32700, Message: "Parse error"},
		})
		return
	}

	if req.Method == "initialize" {
		if sessionID == "" || !h.mcp.valid(sessionID) {
			sessionID = h.mcp.open()
		}
		c.Header("Mcp-Session-Id", sessionID)

		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": mcpProtocolVersion,
				"serverInfo": map[string]interface{}{
					"name":    "deep-research-mcp",
					"version": "1.0.0",
				},
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
			},
		})
		return
	}

	if sessionID == "" {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32000, Message: "Bad Request: No valid session ID provided"},
		})
		return
	}
	if !h.mcp.valid(sessionID) {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32000, Message: "Invalid session ID"},
		})
		return
	}

	switch req.Method {
	case "tools/list":
		h.handleToolsList(c, req)
	case "tools/call":
		h.handleToolsCall(c, req)
	case "ping":
		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		})
	default:
		h.sendError(c, req.ID, -32601, "Method not found")
	}
}

func (h *Handler) handleToolsList(c *gin.Context, req MCPRequest) {
	tools := []map[string]interface{}{
		{
			"name":        "get_report",
			"description": "Get the status and final report of a research session.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": map[string]interface{}{
						"type":        "string",
						"description": "The research session ID.",
					},
				},
				"required": []string{"session_id"},
			},
		},
	}
	if h.Service.Archive != nil {
		tools = append(tools, map[string]interface{}{
			"name":        "search_findings",
			"description": "Semantic search over the findings of past research sessions.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query.",
					},
					"topK": map[string]interface{}{
						"type":        "number",
						"description": "The number of top results to return.",
						"default":     5,
					},
					"session_id": map[string]interface{}{
						"type":        "string",
						"description": "Restrict the search to one research session.",
					},
				},
				"required": []string{"query"},
			},
		})
	}

	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]interface{}{"tools": tools},
	})
}

func (h *Handler) handleToolsCall(c *gin.Context, req MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.sendError(c, req.ID, -32602, "Invalid params")
		return
	}
	ctx := c.Request.Context()

	switch params.Name {
	case "get_report":
		var args getReportArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			h.sendError(c, req.ID, -32602, "Invalid arguments")
			return
		}
		id, err := uuid.Parse(args.SessionID)
		if err != nil {
			h.sendError(c, req.ID, -32602, "Invalid session_id")
			return
		}
		session, err := h.Service.GetSession(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			h.sendError(c, req.ID, -32602, err.Error())
			return
		}
		if err != nil {
			h.sendError(c, req.ID, -32603, err.Error())
			return
		}
		h.sendResult(c, req.ID, describeSession(session))

	case "search_findings":
		if h.Service.Archive == nil {
			h.sendError(c, req.ID, -32601, "Tool not available: search_findings")
			return
		}
		var args searchFindingsArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			h.sendError(c, req.ID, -32602, "Invalid arguments")
			return
		}
		findings, err := h.Service.Archive.Search(ctx, args.Query, args.TopK, args.SessionID)
		if err != nil {
			h.sendError(c, req.ID, -32603, err.Error())
			return
		}
		h.sendResult(c, req.ID, archive.Format(findings))

	default:
		h.sendError(c, req.ID, -32601, fmt.Sprintf("Tool not found: %s", params.Name))
	}
}

func (h *Handler) sendError(c *gin.Context, id interface{}, code int, msg string) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: msg},
	})
}

func (h *Handler) sendResult(c *gin.Context, id interface{}, text string) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
		},
	})
}

func describeSession(s *database.SessionRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\nStatus: %s (phase %s, iteration %d, %d results)\n", s.Query, s.Status, s.Phase, s.Iteration, s.Results)
	if s.Error != nil {
		fmt.Fprintf(&sb, "Error: %s\n", *s.Error)
	}
	if s.DeliveryError != nil {
		fmt.Fprintf(&sb, "Delivery failed: %s\n", *s.DeliveryError)
	}
	if s.Report == nil {
		sb.WriteString("\nThe report is not ready yet.")
		return sb.String()
	}
	sb.WriteString("\n" + *s.Report)
	if len(s.FollowUps) > 0 {
		sb.WriteString("\n\nFollow-up questions:\n")
		for _, q := range s.FollowUps {
			sb.WriteString("- " + q + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
