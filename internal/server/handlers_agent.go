package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teemow/calagent/internal/agent"
	"github.com/teemow/calagent/internal/logging"
)

// chatRequest is the natural-language entry point's body.
type chatRequest struct {
	Prompt      string `json:"prompt" binding:"required"`
	Timezone    string `json:"timezone"`
	UserEmail   string `json:"user_email"`
	ChatContext string `json:"chat_context"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	svc, err := s.backend(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp, err := s.agent.Chat(c.Request.Context(), svc, sessionKey(c), agent.ChatRequest{
		Prompt:      req.Prompt,
		Timezone:    req.Timezone,
		UserEmail:   req.UserEmail,
		ChatContext: req.ChatContext,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUndo(c *gin.Context) {
	svc, err := s.backend(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	result := s.agent.Undo(c.Request.Context(), svc, sessionKey(c))
	c.JSON(http.StatusOK, result)
}

// historyEntry is the outward projection of a journal record. Rollback
// snapshots stay internal; only what the user needs to pick an undo
// target is exposed.
type historyEntry struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	ActionType string `json:"action_type"`
	EventID    string `json:"event_id"`
	RolledBack bool   `json:"rolled_back"`
}

const defaultHistoryLimit = 20

func (s *Server) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records := s.agent.History(sessionKey(c), limit)
	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, historyEntry{
			ID:         r.ID,
			Timestamp:  r.Timestamp.Format(time.RFC3339),
			ActionType: string(r.ActionType),
			EventID:    r.EventID,
			RolledBack: r.RolledBack,
		})
	}

	logging.WithSession(s.logger, sessionKey(c)).Debug("history served", "count", len(entries))
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}
