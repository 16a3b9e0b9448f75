// Package llm provides text generators for community summarization.
//
// Every generator implements graphclustering.TextGenerator:
//
//   - OpenAIGenerator calls an OpenAI-compatible chat completions API
//     (OpenAI, LocalAI, vLLM, Ollama).
//   - HTTPGenerator calls a semsummarize-style POST /summarize service.
//   - StatisticalGenerator derives a deterministic summary from the prompt
//     itself and needs no network.
//
// RateLimited and Fallback wrap any generator. New builds the generator
// stack described by a config.LLMConfig.
//
// Errors are classified with the errors package: throttling, timeouts and
// server errors are transient and retried by the summarizer, everything else
// fails the community immediately.
package llm

import (
	"fmt"
	"log/slog"

	"github.com/c360/semcommunity/config"
	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// New builds the generator selected by cfg, wrapped in a rate limiter when
// cfg.RateLimit is set and in a statistical fallback when cfg.Fallback is set.
func New(cfg config.LLMConfig, logger *slog.Logger) (gc.TextGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var gen gc.TextGenerator
	switch cfg.Provider {
	case config.ProviderOpenAI:
		g, err := NewOpenAIGenerator(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		gen = g
	case config.ProviderHTTP:
		g, err := NewHTTPGenerator(HTTPConfig{
			BaseURL:   cfg.BaseURL,
			MaxLength: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		gen = g
	case config.ProviderStatistical:
		return NewStatisticalGenerator(), nil
	default:
		return nil, errors.WrapInvalid(fmt.Errorf("%w: unknown provider %q", errors.ErrInvalidConfig, cfg.Provider),
			"llm", "New", "select provider")
	}

	if cfg.RateLimit > 0 {
		gen = NewRateLimited(gen, cfg.RateLimit, cfg.Burst)
	}
	if cfg.Fallback {
		gen = NewFallback(gen, NewStatisticalGenerator(), logger)
	}
	return gen, nil
}
