package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/logging"
)

// Request carries one interpretation request: the user's prompt plus the
// context the model needs to resolve relative times and event references.
type Request struct {
	Prompt       string
	Events       []calendar.EventSummary
	UserEmail    string
	UserDateTime time.Time
	UserTimezone string
	ChatContext  string
}

// Planner turns a natural-language request into an ordered action plan.
// Implementations must not execute anything; planning is read-only.
type Planner interface {
	Plan(ctx context.Context, req Request) (*Plan, error)
}

// Config configures the chat-completions client.
type Config struct {
	// BaseURL of an OpenAI-compatible endpoint, including the /v1 prefix,
	// e.g. "http://localhost:8000/v1" for a local vLLM server.
	BaseURL string
	// APIKey is optional; self-hosted endpoints usually ignore it.
	APIKey string
	// Model is the model name to request.
	Model string
	// MaxTokens caps the completion length. Defaults to 2048.
	MaxTokens int64
	// Temperature for sampling. Kept low so the JSON output stays
	// deterministic. Defaults to 0.1.
	Temperature float64
}

// Client implements Planner via an OpenAI-compatible chat-completions API.
type Client struct {
	chat   openai.Client
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewClient creates a planner client for the configured endpoint.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 2048
	}
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}

	return &Client{
		chat:   openai.NewClient(opts...),
		config: config,
		logger: logging.WithService(logger, "planner"),
		now:    time.Now,
	}, nil
}

// Plan sends the request to the model and parses its JSON response.
// Transport failures are returned wrapped; malformed model output is
// returned as a *ParseError.
func (c *Client) Plan(ctx context.Context, req Request) (*Plan, error) {
	start := time.Now()

	completion, err := c.chat.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserPrompt(req, c.now())),
		},
		MaxTokens:   openai.Int(c.config.MaxTokens),
		Temperature: openai.Float(c.config.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		c.logger.Error("chat completion failed",
			logging.Err(err),
			slog.Duration(logging.KeyDuration, time.Since(start)))
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	plan, err := ParsePlan(completion.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("model output could not be parsed",
			logging.Err(err),
			slog.Duration(logging.KeyDuration, time.Since(start)))
		return nil, err
	}

	c.logger.Debug("plan generated",
		slog.Int("actions", len(plan.Actions)),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	return plan, nil
}
