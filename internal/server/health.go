package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// healthState tracks liveness details and the readiness flag flipped
// during shutdown so load balancers stop routing before the drain.
type healthState struct {
	ready     atomic.Bool
	startTime time.Time
}

func newHealthState() *healthState {
	h := &healthState{startTime: time.Now()}
	h.ready.Store(true)
	return h
}

func (h *healthState) setReady(ready bool) {
	h.ready.Store(ready)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.health.startTime).Truncate(time.Second).String(),
	})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if !s.health.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
