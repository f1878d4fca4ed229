package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/logging"
	"github.com/teemow/calagent/internal/planner"
)

// statusForError maps domain errors to HTTP status codes. Unclassified
// failures count as upstream trouble, not client mistakes.
func statusForError(err error) int {
	var parseErr *planner.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusUnprocessableEntity
	}

	switch calendar.KindOf(err) {
	case calendar.KindUnauthenticated:
		return http.StatusUnauthorized
	case calendar.KindForbidden:
		return http.StatusForbidden
	case calendar.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func messageForError(err error) string {
	var parseErr *planner.ParseError
	if errors.As(err, &parseErr) {
		return "Could not interpret the request. Please try rephrasing."
	}
	var calErr *calendar.Error
	if errors.As(err, &calErr) {
		return calendar.ErrorMessage(err)
	}
	return "Upstream service unavailable."
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Err(err))
	}
	c.JSON(status, gin.H{"error": messageForError(err)})
}
