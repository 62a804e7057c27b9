package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-weekly-planner/internal/llm"
)

// Diagnosis explains why a run produced no days at all.
type Diagnosis string

const (
	// DiagnosisUnreachable means the service could not be reached or rejected
	// the request, usually a wrong key, model or endpoint.
	DiagnosisUnreachable Diagnosis = "unreachable"
	// DiagnosisRateLimited means the service is throttling requests.
	DiagnosisRateLimited Diagnosis = "rate_limited"
	// DiagnosisContent means the service answers but every day failed on
	// blocked content or output complexity.
	DiagnosisContent Diagnosis = "content"
)

// Message is a user facing explanation of the diagnosis.
func (d Diagnosis) Message() string {
	switch d {
	case DiagnosisUnreachable:
		return "the generation service is unreachable or misconfigured, check the API key, model and endpoint"
	case DiagnosisRateLimited:
		return "the generation service rate limit was reached, wait a while before trying again"
	default:
		return "the generation service is reachable but every day failed on content or complexity, try simpler preferences or fewer exclusions"
	}
}

// DayFailure records why one day could not be generated.
type DayFailure struct {
	Day string
	Err error
}

// PlanError is returned when no day at all could be generated.
type PlanError struct {
	Requested int
	Failures  []DayFailure
	Diagnosis Diagnosis
}

func (e *PlanError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no days generated out of %d requested: %s", e.Requested, e.Diagnosis.Message())
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n- %s: %v", f.Day, f.Err)
	}
	return sb.String()
}

// Unwrap exposes the per-day errors to errors.Is and errors.As.
func (e *PlanError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// diagnose sends a minimal prompt to tell an unreachable service apart from
// one that answers but refuses or chokes on the plan prompts. Any response,
// even a blocked one, proves the service is reachable.
func (p *Planner) diagnose(ctx context.Context, r *run) Diagnosis {
	if r.rateLimited {
		return DiagnosisRateLimited
	}
	_, err := p.call(ctx, r, agentPing, "", BuildPingPrompt(), Attempt{MaxOutputTokens: 32, Temperature: 0})
	switch {
	case err == nil:
		return DiagnosisContent
	case errors.Is(err, llm.ErrRateLimited):
		return DiagnosisRateLimited
	case errors.Is(err, ErrBlocked), errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrTruncated):
		return DiagnosisContent
	}
	return DiagnosisUnreachable
}
