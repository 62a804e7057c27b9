package planner

import "math"

const (
	defaultModelLimit      = 8192
	defaultMinOutput       = 300
	defaultSafeUtilization = 0.75
)

// TokenEstimate is a pre-flight view of a request's token footprint.
type TokenEstimate struct {
	PromptTokens       int
	Total              int
	UtilizationPercent float64
	WithinLimit        bool
	// SafetyBuffer is the headroom left under the safe ceiling. Negative when
	// the request would exceed it.
	SafetyBuffer int
}

// TokenEstimator approximates token usage from character counts. The exact
// tokenizer of the model is not available, so four characters per token is
// used as a conservative ratio.
type TokenEstimator struct {
	ModelLimit      int
	MinOutput       int
	SafeUtilization float64
}

// NewTokenEstimator returns an estimator for the given model context limit.
func NewTokenEstimator(modelLimit int) TokenEstimator {
	if modelLimit <= 0 {
		modelLimit = defaultModelLimit
	}
	return TokenEstimator{
		ModelLimit:      modelLimit,
		MinOutput:       defaultMinOutput,
		SafeUtilization: defaultSafeUtilization,
	}
}

// EstimateTokens returns ceil(len(text)/4).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func (e TokenEstimator) limit() int {
	if e.ModelLimit <= 0 {
		return defaultModelLimit
	}
	return e.ModelLimit
}

func (e TokenEstimator) safeCeiling() int {
	u := e.SafeUtilization
	if u <= 0 || u > 1 {
		u = defaultSafeUtilization
	}
	return int(math.Floor(float64(e.limit()) * u))
}

// Estimate computes the expected usage of prompt plus requestedMaxOutput.
func (e TokenEstimator) Estimate(prompt string, requestedMaxOutput int) TokenEstimate {
	promptTokens := EstimateTokens(prompt)
	total := promptTokens + requestedMaxOutput
	ceiling := e.safeCeiling()
	return TokenEstimate{
		PromptTokens:       promptTokens,
		Total:              total,
		UtilizationPercent: float64(total) / float64(e.limit()) * 100,
		WithinLimit:        total <= ceiling,
		SafetyBuffer:       ceiling - total,
	}
}

// Adjust returns an output budget that keeps the estimated total under the
// safe ceiling. It never returns less than MinOutput, so a long prompt cannot
// shrink the budget to a value that makes generation pointless.
func (e TokenEstimator) Adjust(prompt string, requestedMaxOutput int) int {
	available := e.safeCeiling() - EstimateTokens(prompt)
	adjusted := requestedMaxOutput
	if available < adjusted {
		adjusted = available
	}
	if floor := e.floor(); adjusted < floor {
		adjusted = floor
	}
	return adjusted
}

func (e TokenEstimator) floor() int {
	if e.MinOutput <= 0 {
		return defaultMinOutput
	}
	return e.MinOutput
}

// Fit adjusts every attempt of policy to prompt. Once an attempt has been
// clamped, later attempts shrink to at most three quarters of the previous
// budget, and attempts that cannot go below the previous budget are dropped,
// so each retry asks for strictly fewer output tokens.
func (e TokenEstimator) Fit(prompt string, policy AttemptPolicy) AttemptPolicy {
	fitted := AttemptPolicy{Name: policy.Name}
	prev := 0
	for _, a := range policy.Attempts {
		budget := e.Adjust(prompt, a.MaxOutputTokens)
		if len(fitted.Attempts) > 0 {
			if shrunk := prev * 3 / 4; budget > shrunk {
				budget = max(shrunk, e.floor())
			}
			if budget >= prev {
				continue
			}
		}
		a.MaxOutputTokens = budget
		fitted.Attempts = append(fitted.Attempts, a)
		prev = budget
	}
	return fitted
}
