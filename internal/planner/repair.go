package planner

import (
	"context"
	"encoding/json"
	"strings"

	"ai-weekly-planner/internal/logger"
)

// callFunc issues one generation call and returns the response text.
type callFunc func(ctx context.Context, agent, day, prompt string, a Attempt) (string, error)

// Repairer asks the model to fill in missing ingredients and steps. Repair is
// best effort: any failure leaves the draft as it was.
type Repairer struct {
	call      callFunc
	policy    AttemptPolicy
	estimator TokenEstimator
	log       *logger.Logger
}

// Repair returns the patched draft and whether any item was completed.
func (r *Repairer) Repair(ctx context.Context, profile UserProfile, d dayDraft) (dayDraft, bool) {
	broken, err := json.Marshal(draftDocument(d))
	if err != nil {
		return d, false
	}
	prompt, err := BuildRepairPrompt(profile, string(broken))
	if err != nil {
		r.log.Warn("repair prompt failed", "day", d.label, "error", err)
		return d, false
	}

	patched, _, err := runAttempts(ctx, r.estimator.Fit(prompt, r.policy), func(ctx context.Context, a Attempt) (dayDraft, error) {
		text, err := r.call(ctx, agentRepair, d.label, prompt, a)
		if err != nil {
			return dayDraft{}, err
		}
		drafts, err := parsePlanText(text)
		if err != nil {
			return dayDraft{}, err
		}
		return pickDraft(drafts, d.label), nil
	})
	if err != nil {
		r.log.Warn("repair failed, keeping original", "day", d.label, "error", err)
		return d, false
	}
	return mergeRepair(d, patched)
}

// mergeRepair copies ingredients and steps from the patched draft into
// incomplete items of the original. Items are matched by title, then by
// position within the slot.
func mergeRepair(orig, patched dayDraft) (dayDraft, bool) {
	out := orig
	changed := false
	for s := range out.slots {
		slot := append([]Item(nil), orig.slots[s]...)
		for i, it := range slot {
			if it.Complete() {
				continue
			}
			src, ok := matchItem(patched.slots[s], it.Title, i)
			if !ok {
				continue
			}
			if len(it.Ingredients) == 0 && len(src.Ingredients) > 0 {
				it.Ingredients = src.Ingredients
				changed = true
			}
			if len(it.Steps) == 0 && len(src.Steps) > 0 {
				it.Steps = src.Steps
				changed = true
			}
			slot[i] = it
		}
		out.slots[s] = slot
	}
	return out, changed
}

func matchItem(items []Item, title string, pos int) (Item, bool) {
	want := normalizeTitle(title)
	for _, it := range items {
		if normalizeTitle(it.Title) == want {
			return it, true
		}
	}
	if pos < len(items) {
		return items[pos], true
	}
	return Item{}, false
}

// pickDraft returns the draft for label, or the first one.
func pickDraft(drafts []dayDraft, label string) dayDraft {
	for _, d := range drafts {
		if strings.EqualFold(d.label, label) {
			return d
		}
	}
	return drafts[0]
}

// draftDocument renders a draft in the same layout the prompts ask for.
func draftDocument(d dayDraft) map[string]any {
	meals := make([]Meal, len(MealNames))
	for i, name := range MealNames {
		meals[i] = Meal{Name: name, Items: d.slots[i]}
		if meals[i].Items == nil {
			meals[i].Items = []Item{}
		}
	}
	return map[string]any{"days": []Day{{Day: d.label, Summary: d.summary, Totals: d.totals, Meals: meals}}}
}
