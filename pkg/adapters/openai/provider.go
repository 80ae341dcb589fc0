// Package openai answers ai_response nodes with OpenAI-compatible chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/ports"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when neither the node nor the engine name one.
const DefaultModel = openai.GPT4oMini

// ErrEmptyChoices is returned when the API answers without any choice.
var ErrEmptyChoices = errors.New("openai: empty choices")

// Provider implements ports.CompletionProvider.
type Provider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

type config struct {
	baseURL    string
	httpClient *http.Client
	model      string
	logger     *slog.Logger
}

// Option configures a Provider.
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithModel sets the fallback model for requests that carry none.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New creates a Provider authenticated with apiKey.
func New(apiKey string, opts ...Option) *Provider {
	cfg := config{model: DefaultModel, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		clientCfg.HTTPClient = cfg.httpClient
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.model,
		logger: cfg.logger,
	}
}

// Complete sends a system + user message pair and returns the first choice.
func (p *Provider) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	chat := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		chat.Temperature = *req.Temperature
	}

	resp, err := p.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			p.logger.Warn("OpenAI request rejected", "model", model, "status", apiErr.HTTPStatusCode, "type", apiErr.Type)
		}
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoices
	}

	p.logger.Debug("OpenAI completion", "model", resp.Model, "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
