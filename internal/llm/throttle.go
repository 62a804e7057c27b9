package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// throttledGenerator enforces a minimum interval between calls to stay under
// the provider's request quota.
type throttledGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// NewThrottledGenerator wraps next so that consecutive calls are at least
// interval apart. A non-positive interval disables throttling.
func NewThrottledGenerator(next Generator, interval time.Duration) Generator {
	if interval <= 0 {
		return next
	}
	return &throttledGenerator{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (t *throttledGenerator) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle wait: %w", err)
	}
	return t.next.Generate(ctx, req)
}
