package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c360/semcommunity/errors"
)

// HTTPGenerator calls a semsummarize-style summarization service
// (POST {BaseURL}/summarize).
type HTTPGenerator struct {
	baseURL   string
	maxLength int
	minLength int
	client    *http.Client
}

// HTTPConfig configures the HTTP generator.
type HTTPConfig struct {
	// BaseURL is the service endpoint, e.g. "http://semsummarize:8083"
	BaseURL string

	// MaxLength and MinLength bound the summary length in tokens
	MaxLength int
	MinLength int

	// Timeout for HTTP requests (default: 10s)
	Timeout time.Duration
}

// summarizeRequest matches the semsummarize API request format
type summarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length,omitempty"`
	MinLength int    `json:"min_length,omitempty"`
}

// summarizeResponse matches the semsummarize API response format
type summarizeResponse struct {
	Summary string  `json:"summary"`
	Model   string  `json:"model"`
	Latency float64 `json:"latency_ms"`
}

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 512

// NewHTTPGenerator creates an HTTP summarization client.
func NewHTTPGenerator(cfg HTTPConfig) (*HTTPGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: base_url is required", errors.ErrInvalidConfig),
			"HTTPGenerator", "NewHTTPGenerator", "validate config")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 100
	}
	minLength := cfg.MinLength
	if minLength == 0 || minLength > maxLength {
		minLength = min(20, maxLength)
	}

	return &HTTPGenerator{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxLength: maxLength,
		minLength: minLength,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// Generate posts the child context and prompt as a single text.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	text := prompt
	if contextText != "" {
		text = contextText + "\n\n" + prompt
	}

	body, err := json.Marshal(summarizeRequest{
		Text:      text,
		MaxLength: g.maxLength,
		MinLength: g.minLength,
	})
	if err != nil {
		return "", errors.WrapInvalid(err, "HTTPGenerator", "Generate", "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/summarize", bytes.NewReader(body))
	if err != nil {
		return "", errors.WrapInvalid(err, "HTTPGenerator", "Generate", "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.WrapTransient(err, "HTTPGenerator", "Generate",
			"HTTP request failed (service may be unavailable)")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if retryableStatus(resp.StatusCode) {
			return "", errors.WrapTransient(statusErr, "HTTPGenerator", "Generate", "non-OK status code")
		}
		return "", errors.WrapInvalid(statusErr, "HTTPGenerator", "Generate", "non-OK status code")
	}

	var result summarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"HTTPGenerator", "Generate", "decode response")
	}

	summary := strings.TrimSpace(result.Summary)
	if summary == "" {
		return "", errors.WrapInvalid(errors.ErrEmptyResponse, "HTTPGenerator", "Generate", "empty summary returned")
	}
	return summary, nil
}
