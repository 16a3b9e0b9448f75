package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/c360/semcommunity/errors"
)

// OpenAIGenerator calls an OpenAI-compatible chat completions API.
//
// This implementation works with:
//   - OpenAI (cloud)
//   - LocalAI, vLLM and Ollama (self-hosted)
//   - Any OpenAI-compatible chat API
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// OpenAIConfig configures the OpenAI generator.
type OpenAIConfig struct {
	// BaseURL of the API, e.g. "https://api.openai.com/v1" or
	// "http://localhost:11434/v1". Empty uses the OpenAI default.
	BaseURL string

	// Model is the chat model, e.g. "gpt-4o-mini" or "llama3.1"
	Model string

	// APIKey for authentication (optional for local services)
	APIKey string

	Temperature float32
	MaxTokens   int

	// Timeout for HTTP requests (default: 60s)
	Timeout time.Duration

	// Logger (optional, defaults to slog.Default())
	Logger *slog.Logger
}

// NewOpenAIGenerator creates a generator for an OpenAI-compatible API.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: model is required", errors.ErrInvalidConfig),
			"OpenAIGenerator", "NewOpenAIGenerator", "validate config")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key" // Local services don't need a real key
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}, nil
}

// Generate sends the child context (if any) followed by the prompt as user
// messages and returns the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if contextText != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: contextText,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.WrapInvalid(errors.ErrEmptyResponse, "OpenAIGenerator", "Generate", "no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.WrapInvalid(errors.ErrEmptyResponse, "OpenAIGenerator", "Generate", "empty completion")
	}

	g.logger.Debug("chat completion finished",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return text, nil
}

// Model returns the model identifier.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// classifyOpenAIError maps API status codes onto error classes.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == 0:
		return errors.WrapTransient(err, "OpenAIGenerator", "Generate", "chat completion request failed")
	case retryableStatus(status):
		return errors.WrapTransient(err, "OpenAIGenerator", "Generate", fmt.Sprintf("chat completion returned %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.WrapFatal(err, "OpenAIGenerator", "Generate", "chat completion rejected credentials")
	default:
		return errors.WrapInvalid(err, "OpenAIGenerator", "Generate", fmt.Sprintf("chat completion returned %d", status))
	}
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}
