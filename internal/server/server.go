package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teemow/calagent/internal/agent"
	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/logging"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
)

// backendFactory builds a calendar backend for one request's credential.
type backendFactory func(ctx context.Context, accessToken string) (calendar.Service, error)

// Server is the HTTP front of the agent.
type Server struct {
	agent      *agent.Agent
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	health     *healthState
	newBackend backendFactory

	engine *gin.Engine
	http   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for HTTP requests.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(s *Server) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// withBackendFactory replaces the calendar client constructor in tests.
func withBackendFactory(factory backendFactory) Option {
	return func(s *Server) {
		s.newBackend = factory
	}
}

// New assembles the routes. addr is the listen address for Run.
func New(addr string, ag *agent.Agent, opts ...Option) *Server {
	s := &Server{
		agent:   ag,
		logger:  logging.WithService(slog.Default(), "http"),
		metrics: &instrumentation.Metrics{},
		health:  newHealthState(),
		newBackend: func(ctx context.Context, accessToken string) (calendar.Service, error) {
			return calendar.NewClient(ctx, accessToken)
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestMetrics(), s.requestLog())

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/readyz", s.handleReadyz)

	authed := engine.Group("/", s.requireBearer())
	authed.POST("/agent/chat", s.handleChat)
	authed.POST("/agent/undo", s.handleUndo)
	authed.GET("/agent/history", s.handleHistory)

	events := authed.Group("/calendar/events")
	events.GET("", s.handleListEvents)
	events.POST("", s.handleCreateEvent)
	events.GET("/:id", s.handleGetEvent)
	events.PUT("/:id", s.handleUpdateEvent)
	events.DELETE("/:id", s.handleDeleteEvent)

	s.engine = engine
	s.http = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// backend builds the calendar client for this request's credential,
// instrumented so every backend call lands in the operation metrics.
func (s *Server) backend(c *gin.Context) (calendar.Service, error) {
	svc, err := s.newBackend(c.Request.Context(), accessToken(c))
	if err != nil {
		return nil, err
	}
	return calendar.WithMetrics(svc, s.metrics), nil
}

// Run serves until the context is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.health.setReady(false)
	s.logger.Info("http server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
