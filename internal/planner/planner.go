package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-weekly-planner/internal/llm"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/shared"
)

// Agent names recorded in call metadata.
const (
	agentDay    = "DayPlanner"
	agentBatch  = "BatchPlanner"
	agentRepair = "Repair"
	agentMeal   = "MealRegenerator"
	agentSweep  = "DuplicateSweep"
	agentPing   = "Ping"
)

const (
	defaultRegenAttempts = 2
	// nearLimitRatio flags responses whose usage comes close to the model
	// limit, which is when empty answers tend to show up.
	nearLimitRatio = 0.75
)

// Planner generates weekly meal plans day by day against a text generation
// service. Calls are strictly sequential; every dedup decision sees the
// results of all earlier calls.
type Planner struct {
	gen            llm.Generator
	model          string
	estimator      TokenEstimator
	similarity     SimilarityEngine
	dayAttempts    AttemptPolicy
	batchAttempts  AttemptPolicy
	repairAttempts AttemptPolicy
	mealAttempts   AttemptPolicy
	batchSize      int
	regenAttempts  int
	log            *logger.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithModel sets the model name sent with every request.
func WithModel(model string) Option {
	return func(p *Planner) { p.model = model }
}

// WithTokenLimit sets the context limit used for token estimates.
func WithTokenLimit(limit int) Option {
	return func(p *Planner) { p.estimator = NewTokenEstimator(limit) }
}

// WithThresholds sets the similarity thresholds.
func WithThresholds(unique, reject float64) Option {
	return func(p *Planner) { p.similarity = SimilarityEngine{UniqueThreshold: unique, RejectThreshold: reject} }
}

// WithDayAttempts sets the attempt policy for single day requests.
func WithDayAttempts(policy AttemptPolicy) Option {
	return func(p *Planner) { p.dayAttempts = policy }
}

// WithBatchSize sets how many days are requested per call. Batches that
// would exceed the safe token budget fall back to one day per call.
func WithBatchSize(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithRegenAttempts sets how many replacement recipes are requested for a
// duplicate or empty meal before the least similar candidate is kept.
func WithRegenAttempts(n int) Option {
	return func(p *Planner) {
		if n >= 0 {
			p.regenAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// NewPlanner creates a new Planner instance.
func NewPlanner(gen llm.Generator, opts ...Option) *Planner {
	p := &Planner{
		gen:            gen,
		estimator:      NewTokenEstimator(defaultModelLimit),
		similarity:     NewSimilarityEngine(),
		dayAttempts:    GraduatedPolicy,
		batchAttempts:  BatchPolicy,
		repairAttempts: RepairPolicy,
		mealAttempts:   MealPolicy,
		batchSize:      1,
		regenAttempts:  defaultRegenAttempts,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the state of one GeneratePlan call.
type run struct {
	profile     UserProfile
	dedup       *DedupContext
	metas       []shared.AgentMeta
	calls       int
	rateLimited bool
}

// GeneratePlan builds a plan for the given day labels in order. Days that
// cannot be generated are left out; the plan is partial, not an error. An
// error is returned only when no day could be generated, as a *PlanError.
func (p *Planner) GeneratePlan(ctx context.Context, profile UserProfile, days []string, onProgress ProgressFunc) (*MealPlan, []shared.AgentMeta, error) {
	labels := uniqueLabels(days)
	if len(labels) == 0 {
		return nil, nil, fmt.Errorf("no days requested")
	}

	r := &run{profile: profile, dedup: NewDedupContext()}
	plan := &MealPlan{Title: planTitle(labels), Notes: profile.Summary()}
	var failures []DayFailure

	index := 0
	for start := 0; start < len(labels); start += p.batchSize {
		batch := labels[start:min(start+p.batchSize, len(labels))]
		var drafts map[string]dayDraft
		batchCalls := 0
		if len(batch) > 1 && !r.rateLimited && ctx.Err() == nil {
			before := r.calls
			drafts = p.generateBatch(ctx, r, batch)
			batchCalls = r.calls - before
		}

		for _, label := range batch {
			index++
			var pre *dayDraft
			if d, ok := drafts[label]; ok {
				pre = &d
			}

			var (
				day    Day
				report DayReport
			)
			switch {
			case ctx.Err() != nil:
				report = DayReport{Day: label, State: StateFailed, Err: ctx.Err()}
			case r.rateLimited:
				report = DayReport{Day: label, State: StateFailed, Err: llm.ErrRateLimited}
			default:
				day, report = p.processDay(ctx, r, label, pre)
			}
			// The shared batch request counts towards the first day of the batch.
			report.Calls += batchCalls
			batchCalls = 0

			plan.Diagnostics = append(plan.Diagnostics, report)
			accepted := report.State == StateAccepted
			if accepted {
				plan.Days = append(plan.Days, day)
			} else {
				failures = append(failures, DayFailure{Day: label, Err: report.Err})
				p.log.Warn("day failed", "day", label, "error", report.Err)
			}
			if onProgress != nil {
				onProgress(Progress{DayLabel: label, Index: index, Total: len(labels), Accepted: accepted})
			}
		}
	}

	if len(plan.Days) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, r.metas, fmt.Errorf("plan generation cancelled: %w", err)
		}
		perr := &PlanError{Requested: len(labels), Failures: failures, Diagnosis: p.diagnose(ctx, r)}
		p.log.Error("plan generation failed", "diagnosis", perr.Diagnosis, "requested", len(labels))
		return nil, r.metas, perr
	}

	if len(plan.Days) > 1 && !r.rateLimited && ctx.Err() == nil {
		p.sweep(ctx, r, plan)
	}
	if r.rateLimited {
		plan.Notes = strings.TrimSpace(plan.Notes + "\nGeneration stopped early: the service rate limit was reached.")
	}

	p.log.Info("plan generated", "days", len(plan.Days), "requested", len(labels), "calls", r.calls)
	return plan, r.metas, nil
}

// generateBatch requests several days in one call. It returns nil when the
// batch is too large for the safe budget or fails, and the caller falls back
// to one day per call for any day missing from the result.
func (p *Planner) generateBatch(ctx context.Context, r *run, labels []string) map[string]dayDraft {
	prompt, err := BuildDayPrompt(r.profile, labels, r.dedup.AvoidTitles(MaxAvoidTitles), r.dedup.AvoidTokens(MaxAvoidTokens))
	if err != nil {
		return nil
	}
	est := p.estimator.Estimate(prompt, p.batchAttempts.Attempts[0].MaxOutputTokens)
	if !est.WithinLimit {
		p.log.Info("batch over safe token budget, generating days one by one",
			"days", strings.Join(labels, ","), "utilization", fmt.Sprintf("%.1f%%", est.UtilizationPercent))
		return nil
	}

	batchLabel := strings.Join(labels, ",")
	drafts, _, err := runAttempts(ctx, p.estimator.Fit(prompt, p.batchAttempts), func(ctx context.Context, a Attempt) ([]dayDraft, error) {
		text, err := p.call(ctx, r, agentBatch, batchLabel, prompt, a)
		if err != nil {
			return nil, err
		}
		return parsePlanText(text)
	})
	if err != nil {
		p.log.Warn("batch generation failed, falling back to single days", "days", batchLabel, "error", err)
		return nil
	}

	out := make(map[string]dayDraft, len(labels))
	for _, label := range labels {
		for _, d := range drafts {
			if strings.EqualFold(d.label, label) && d.itemCount() > 0 {
				d.label = label
				out[label] = d
				break
			}
		}
	}
	return out
}

// call sends one request with the attempt's output budget as given; callers
// fit their policy to the prompt first. A rate limit response stops every
// later call of the run.
func (p *Planner) call(ctx context.Context, r *run, agent, day, prompt string, a Attempt) (string, error) {
	if r.rateLimited {
		return "", llm.ErrRateLimited
	}

	req := llm.GenerationRequest{
		Model:  p.model,
		Prompt: prompt,
		Config: llm.GenerationConfig{
			MaxOutputTokens: a.MaxOutputTokens,
			Temperature:     a.Temperature,
			TopP:            0.95,
			TopK:            40,
		},
	}

	r.calls++
	start := time.Now()
	resp, err := p.gen.Generate(ctx, req)
	meta := shared.AgentMeta{AgentName: agent, Day: day, Latency: time.Since(start)}
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			r.rateLimited = true
			p.log.Warn("rate limited, stopping further requests", "agent", agent, "day", day)
		}
		meta.Outcome = outcomeOf(err)
		r.metas = append(r.metas, meta)
		return "", fmt.Errorf("failed to call generation service: %w", err)
	}

	meta.Usage = resp.Usage(p.model)
	meta.FinishReason = resp.FinishReason()
	text, err := ClassifyResponse(resp)
	if err == nil && text == "" {
		err = ErrEmptyResponse
	}
	meta.Outcome = outcomeOf(err)
	r.metas = append(r.metas, meta)

	nearLimit := float64(meta.Usage.TotalTokens) >= nearLimitRatio*float64(p.estimator.limit())
	switch {
	case errors.Is(err, ErrEmptyResponse) && nearLimit:
		p.log.Warn("empty response near token limit", "agent", agent, "day", day,
			"total_tokens", meta.Usage.TotalTokens, "limit", p.estimator.limit())
	case err != nil:
		p.log.Debug("generation attempt failed", "agent", agent, "day", day, "error", err,
			"max_output", a.MaxOutputTokens, "temperature", a.Temperature, "total_tokens", meta.Usage.TotalTokens)
	default:
		p.log.Debug("generation call", "agent", agent, "day", day,
			"max_output", a.MaxOutputTokens, "total_tokens", meta.Usage.TotalTokens, "latency", meta.Latency)
	}
	return text, err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, llm.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	}
	return "error"
}

func uniqueLabels(days []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range days {
		label := NormalizeDayLabel(d)
		key := strings.ToLower(label)
		if label == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, label)
	}
	return out
}

func planTitle(labels []string) string {
	if len(labels) == 1 {
		return "Meal Plan for " + labels[0]
	}
	return fmt.Sprintf("Meal Plan: %s to %s", labels[0], labels[len(labels)-1])
}
