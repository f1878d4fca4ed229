package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calagent/internal/agent"
	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/logging"
	"github.com/teemow/calagent/internal/planner"
	"github.com/teemow/calagent/internal/server"
)

type serveOptions struct {
	addr string

	llmURL    string
	llmModel  string
	llmAPIKey string

	historySize int
	sessionTTL  time.Duration

	verifyGrace    time.Duration
	verifyBackoff  time.Duration
	deleteAttempts int

	metricsEnabled bool
	metricsAddr    string

	logLevel  string
	logFormat string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the calendar agent HTTP server",
		Long: `Starts the HTTP API that accepts natural-language calendar requests,
executes the resulting actions against Google Calendar, and offers
per-session undo.

Clients authenticate every request with a Google OAuth access token in
the Authorization header; the token doubles as the session identity for
the undo journal.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			opts.applyEnv()
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8000", "API server address. Can also use CALAGENT_ADDR env var.")
	cmd.Flags().StringVar(&opts.llmURL, "llm-url", "http://localhost:8080/v1", "Base URL of the OpenAI-compatible completion endpoint. Can also use CALAGENT_LLM_URL env var.")
	cmd.Flags().StringVar(&opts.llmModel, "llm-model", "", "Model name to request from the completion endpoint. Can also use CALAGENT_LLM_MODEL env var.")
	cmd.Flags().StringVar(&opts.llmAPIKey, "llm-api-key", "", "API key for the completion endpoint, if it requires one. Can also use CALAGENT_LLM_API_KEY env var.")
	cmd.Flags().IntVar(&opts.historySize, "history-size", history.DefaultCapacity, "Maximum journaled actions per session; older entries are evicted.")
	cmd.Flags().DurationVar(&opts.sessionTTL, "session-ttl", 0, "Evict session journals idle for this long. 0 keeps sessions forever.")
	cmd.Flags().DurationVar(&opts.verifyGrace, "verify-grace", 2*time.Second, "Wait before the first read-back that verifies a deletion.")
	cmd.Flags().DurationVar(&opts.verifyBackoff, "verify-backoff", 5*time.Second, "Wait before retrying an unconfirmed deletion.")
	cmd.Flags().IntVar(&opts.deleteAttempts, "delete-attempts", 2, "Delete attempts per event before the deletion counts as failed.")
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Serve Prometheus metrics on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "json", "Log format: json or text.")

	return cmd
}

// applyEnv fills flag values from the environment when the flag was left
// at its default. Flags win over env vars.
func (o *serveOptions) applyEnv() {
	envString := func(target *string, current, key string) {
		if *target == current {
			if v := os.Getenv(key); v != "" {
				*target = v
			}
		}
	}
	envString(&o.addr, ":8000", "CALAGENT_ADDR")
	envString(&o.llmURL, "http://localhost:8080/v1", "CALAGENT_LLM_URL")
	envString(&o.llmModel, "", "CALAGENT_LLM_MODEL")
	envString(&o.llmAPIKey, "", "CALAGENT_LLM_API_KEY")
	envString(&o.metricsAddr, server.DefaultMetricsAddr, "METRICS_ADDR")

	if v := os.Getenv("METRICS_ENABLED"); v == "false" {
		o.metricsEnabled = false
	}
}

func runServe(opts *serveOptions) error {
	if opts.llmModel == "" {
		return fmt.Errorf("--llm-model is required (or set CALAGENT_LLM_MODEL)")
	}

	logger := logging.NewLogger(os.Stderr, opts.logLevel, opts.logFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if !opts.metricsEnabled {
		instrConfig.MetricsExporter = instrumentation.ExporterNone
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if opts.metricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(opts.metricsAddr, provider)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	store := history.New(
		history.WithCapacity(opts.historySize),
		history.WithSessionTTL(opts.sessionTTL),
		history.WithLogger(logging.WithService(logger, "history")),
	)
	defer store.Close()

	interpreter, err := planner.NewClient(planner.Config{
		BaseURL: opts.llmURL,
		APIKey:  opts.llmAPIKey,
		Model:   opts.llmModel,
	}, logging.WithService(logger, "planner"))
	if err != nil {
		return fmt.Errorf("failed to create planner client: %w", err)
	}

	ag := agent.New(interpreter, store, agent.Config{
		DeleteAttempts:   opts.deleteAttempts,
		VerifyGraceDelay: opts.verifyGrace,
		VerifyBackoff:    opts.verifyBackoff,
	},
		agent.WithLogger(logging.WithService(logger, "agent")),
		agent.WithMetrics(provider.Metrics()),
		agent.WithAuditLogger(instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)),
	)

	srv := server.New(opts.addr, ag,
		server.WithLogger(logging.WithService(logger, "http")),
		server.WithMetrics(provider.Metrics()),
	)

	logger.Info("starting calagent",
		"addr", opts.addr,
		"model", opts.llmModel,
		"history_size", opts.historySize)

	err = srv.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", logging.Err(shutdownErr))
		}
	}

	return err
}
