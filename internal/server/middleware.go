package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/logging"
)

const (
	ctxKeyToken   = "accessToken"
	ctxKeySession = "sessionKey"
)

// requireBearer extracts the bearer access token. The token is the
// calendar credential and the session identity; requests without one are
// rejected before any handler runs.
func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		c.Set(ctxKeyToken, token)
		c.Set(ctxKeySession, history.SessionKey(token))
		c.Next()
	}
}

func accessToken(c *gin.Context) string {
	return c.GetString(ctxKeyToken)
}

func sessionKey(c *gin.Context) string {
	return c.GetString(ctxKeySession)
}

func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Use the route pattern, not the raw URL, to bound cardinality.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Context(), c.Request.Method, path,
			c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			slog.Duration(logging.KeyDuration, time.Since(start)))
	}
}
