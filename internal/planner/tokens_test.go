package planner

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	cases := map[string]int{
		"":         0,
		"a":        1,
		"abcd":     1,
		"abcde":    2,
		"12345678": 2,
	}
	for text, want := range cases {
		if got := EstimateTokens(text); got != want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestTokenEstimator_Estimate(t *testing.T) {
	e := NewTokenEstimator(8192)
	prompt := strings.Repeat("x", 4000) // 1000 tokens

	est := e.Estimate(prompt, 2000)
	if est.PromptTokens != 1000 {
		t.Errorf("Expected 1000 prompt tokens, got %d", est.PromptTokens)
	}
	if est.Total != 3000 {
		t.Errorf("Expected total 3000, got %d", est.Total)
	}
	if !est.WithinLimit {
		t.Error("Expected request to be within limit")
	}
	if est.SafetyBuffer != 6144-3000 {
		t.Errorf("Expected safety buffer %d, got %d", 6144-3000, est.SafetyBuffer)
	}

	over := e.Estimate(prompt, 6000)
	if over.WithinLimit {
		t.Error("Expected request above 75% to be outside the limit")
	}
	if over.UtilizationPercent <= 75 {
		t.Errorf("Expected utilization above 75%%, got %.1f", over.UtilizationPercent)
	}
}

func TestTokenEstimator_Adjust(t *testing.T) {
	e := NewTokenEstimator(8192)

	t.Run("KeepsRequestedWhenItFits", func(t *testing.T) {
		if got := e.Adjust("short prompt", 1200); got != 1200 {
			t.Errorf("Expected 1200, got %d", got)
		}
	})

	t.Run("ShrinksToSafeCeiling", func(t *testing.T) {
		prompt := strings.Repeat("x", 20000) // 5000 tokens
		got := e.Adjust(prompt, 4000)
		if got != 6144-5000 {
			t.Errorf("Expected %d, got %d", 6144-5000, got)
		}
	})

	t.Run("NeverBelowFloor", func(t *testing.T) {
		prompt := strings.Repeat("x", 30000) // 7500 tokens
		if got := e.Adjust(prompt, 4000); got != 300 {
			t.Errorf("Expected floor 300, got %d", got)
		}
		if got := e.Adjust("p", 100); got != 300 {
			t.Errorf("Expected floor 300 for a tiny request, got %d", got)
		}
	})

	t.Run("BudgetInvariant", func(t *testing.T) {
		for promptLen := 0; promptLen <= 22000; promptLen += 1375 {
			prompt := strings.Repeat("y", promptLen)
			for _, requested := range []int{300, 800, 1500, 3000, 6000} {
				got := e.Adjust(prompt, requested)
				if got < e.MinOutput {
					t.Fatalf("Adjust returned %d below floor", got)
				}
				if EstimateTokens(prompt)+got > 6144 {
					t.Fatalf("prompt %d chars, requested %d: total %d exceeds 75%% of limit",
						promptLen, requested, EstimateTokens(prompt)+got)
				}
			}
		}
	})
}

func TestTokenEstimator_Fit(t *testing.T) {
	e := NewTokenEstimator(8192)

	t.Run("UnclampedPolicyUnchanged", func(t *testing.T) {
		for _, policy := range []AttemptPolicy{GraduatedPolicy, BatchPolicy, MealPolicy, RepairPolicy} {
			got := e.Fit("short prompt", policy)
			if len(got.Attempts) != len(policy.Attempts) {
				t.Fatalf("%s: expected %d attempts, got %d", policy.Name, len(policy.Attempts), len(got.Attempts))
			}
			for i := range got.Attempts {
				if got.Attempts[i] != policy.Attempts[i] {
					t.Errorf("%s: attempt %d changed from %+v to %+v", policy.Name, i, policy.Attempts[i], got.Attempts[i])
				}
			}
		}
	})

	t.Run("ClampedRetriesStillShrink", func(t *testing.T) {
		prompt := strings.Repeat("x", 20000) // 5000 tokens, 1144 left under the ceiling
		got := e.Fit(prompt, BatchPolicy)
		if len(got.Attempts) < 2 {
			t.Fatalf("Expected at least 2 attempts, got %+v", got.Attempts)
		}
		if got.Attempts[0].MaxOutputTokens != 1144 {
			t.Errorf("Expected first attempt clamped to 1144, got %d", got.Attempts[0].MaxOutputTokens)
		}
		for i := 1; i < len(got.Attempts); i++ {
			prev, cur := got.Attempts[i-1], got.Attempts[i]
			if cur.MaxOutputTokens >= prev.MaxOutputTokens {
				t.Errorf("Attempt %d asks for %d, not less than %d", i, cur.MaxOutputTokens, prev.MaxOutputTokens)
			}
			if cur.Temperature >= prev.Temperature {
				t.Errorf("Attempt %d is not cooler: %v then %v", i, prev.Temperature, cur.Temperature)
			}
		}
	})

	t.Run("FloorKeepsSingleAttempt", func(t *testing.T) {
		prompt := strings.Repeat("x", 30000) // past the ceiling
		got := e.Fit(prompt, GraduatedPolicy)
		if len(got.Attempts) != 1 || got.Attempts[0].MaxOutputTokens != 300 {
			t.Errorf("Expected one attempt at the floor, got %+v", got.Attempts)
		}
	})

	t.Run("NeverOverCeiling", func(t *testing.T) {
		for promptLen := 0; promptLen <= 22000; promptLen += 1375 {
			prompt := strings.Repeat("y", promptLen)
			for _, a := range e.Fit(prompt, GraduatedPolicy).Attempts {
				if a.MaxOutputTokens > e.Adjust(prompt, a.MaxOutputTokens) {
					t.Fatalf("prompt %d chars: attempt %d over the adjusted budget", promptLen, a.MaxOutputTokens)
				}
			}
		}
	})
}
