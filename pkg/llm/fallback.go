package llm

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// Fallback answers from a secondary generator when the primary fails with
// an invalid or fatal error. Transient errors and cancellation are returned
// unchanged so the summarizer's retry sees them.
type Fallback struct {
	primary   gc.TextGenerator
	secondary gc.TextGenerator
	logger    *slog.Logger
}

// NewFallback creates a fallback generator.
func NewFallback(primary, secondary gc.TextGenerator, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Generate tries the primary, then the secondary for permanent failures.
func (f *Fallback) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	text, err := f.primary.Generate(ctx, prompt, contextText)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
		return "", err
	}
	class := errors.Classify(err)
	if class == errors.ErrorTransient {
		return "", err
	}

	f.logger.Warn("primary generator failed, using fallback",
		"error", err,
		"error_class", class.String())

	text, fbErr := f.secondary.Generate(ctx, prompt, contextText)
	if fbErr != nil {
		return "", stderrors.Join(err, fbErr)
	}
	return text, nil
}
