package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// RateLimited throttles calls to a generator with a token bucket.
type RateLimited struct {
	gen    gc.TextGenerator
	bucket *rate.Limiter
}

// NewRateLimited allows perSecond calls per second with the given burst.
// A burst below 1 is raised to 1.
func NewRateLimited(gen gc.TextGenerator, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		gen:    gen,
		bucket: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// The deadline would pass before a token frees up
		return "", errors.WrapTransient(err, "RateLimited", "Generate", "wait for rate limit")
	}
	return r.gen.Generate(ctx, prompt, contextText)
}
