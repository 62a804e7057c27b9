package planner

import (
	"context"
	"errors"
	"fmt"

	"ai-weekly-planner/internal/llm"
)

// Attempt is the sampling setup of one generation call.
type Attempt struct {
	MaxOutputTokens int
	Temperature     float32
}

// AttemptPolicy is an ordered list of attempts. Later attempts are smaller
// and cooler, trading detail for a better chance of a complete answer.
type AttemptPolicy struct {
	Name     string
	Attempts []Attempt
}

var (
	// SingleAttemptPolicy makes one conservative call per day to save quota.
	SingleAttemptPolicy = AttemptPolicy{Name: "single", Attempts: []Attempt{{1200, 0.5}}}
	// GraduatedPolicy retries a day up to three times with shrinking budgets.
	GraduatedPolicy = AttemptPolicy{Name: "graduated", Attempts: []Attempt{{2048, 0.7}, {1500, 0.5}, {1000, 0.3}}}
	// BatchPolicy is used for multi-day requests.
	BatchPolicy = AttemptPolicy{Name: "batch", Attempts: []Attempt{{4096, 0.7}, {3072, 0.5}, {2048, 0.3}}}
	// RepairPolicy is a single bounded repair call.
	RepairPolicy = AttemptPolicy{Name: "repair", Attempts: []Attempt{{1500, 0.2}}}
	// MealPolicy is used for single meal regeneration.
	MealPolicy = AttemptPolicy{Name: "meal", Attempts: []Attempt{{800, 0.8}, {600, 0.6}}}
)

// PolicyByName resolves the configured day attempt policy.
func PolicyByName(name string) (AttemptPolicy, error) {
	switch name {
	case SingleAttemptPolicy.Name:
		return SingleAttemptPolicy, nil
	case GraduatedPolicy.Name, "":
		return GraduatedPolicy, nil
	}
	return AttemptPolicy{}, fmt.Errorf("unknown attempt policy '%s'", name)
}

// IsRetryable reports whether a failed attempt may succeed with the next,
// smaller attempt. Blocked content, client errors, rate limiting and
// cancellation are final.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrBlocked), errors.Is(err, llm.ErrRateLimited):
		return false
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrTruncated),
		errors.Is(err, ErrNoJSON), errors.Is(err, ErrUnrecognizedShape), errors.Is(err, ErrNoItems):
		return true
	}
	var status *llm.StatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500
	}
	return false
}

// runAttempts tries each attempt of the policy in order and stops at the
// first success or the first error that is not retryable. It returns the
// number of attempts made.
func runAttempts[T any](ctx context.Context, policy AttemptPolicy, fn func(context.Context, Attempt) (T, error)) (T, int, error) {
	var zero T
	var lastErr error
	calls := 0
	for _, a := range policy.Attempts {
		if err := ctx.Err(); err != nil {
			return zero, calls, err
		}
		calls++
		v, err := fn(ctx, a)
		if err == nil {
			return v, calls, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("attempt policy '%s' has no attempts", policy.Name)
	}
	return zero, calls, lastErr
}
