package planner

import (
	"context"
	"sort"
)

type itemRef struct {
	day, meal int
}

type conflict struct {
	earlier, later itemRef
	score          float64
}

// sweep runs after all days are in. Per-day dedup cannot see items of days
// generated later, so every pair is checked again in generation order. The
// later item of each duplicate pair is regenerated, highest similarity
// first, with the other title in its avoid list. A replacement is kept only
// when it is not a duplicate of any other item; otherwise the original stays
// and is marked.
func (p *Planner) sweep(ctx context.Context, r *run, plan *MealPlan) {
	item := func(ref itemRef) *Item { return &plan.Days[ref.day].Meals[ref.meal].Items[0] }

	var refs []itemRef
	for d := range plan.Days {
		for m := range plan.Days[d].Meals {
			if len(plan.Days[d].Meals[m].Items) > 0 {
				refs = append(refs, itemRef{d, m})
			}
		}
	}

	var conflicts []conflict
	for j := 1; j < len(refs); j++ {
		later := item(refs[j])
		if later.SimilarTo != "" {
			continue
		}
		for i := 0; i < j; i++ {
			if s := CombinedSimilarity(*item(refs[i]), *later); p.similarity.IsDuplicate(s) {
				conflicts = append(conflicts, conflict{refs[i], refs[j], s})
			}
		}
	}
	if len(conflicts) == 0 {
		return
	}
	sort.SliceStable(conflicts, func(a, b int) bool { return conflicts[a].score > conflicts[b].score })
	p.log.Info("duplicate sweep found conflicts", "count", len(conflicts))

	done := map[itemRef]bool{}
	for _, c := range conflicts {
		if done[c.later] || r.rateLimited || ctx.Err() != nil {
			continue
		}
		other, target := item(c.earlier), item(c.later)
		// An earlier replacement may already have resolved this pair.
		if !p.similarity.IsDuplicate(CombinedSimilarity(*other, *target)) {
			continue
		}
		done[c.later] = true

		rest := make([]Item, 0, len(refs)-1)
		for _, ref := range refs {
			if ref != c.later {
				rest = append(rest, *item(ref))
			}
		}

		day := &plan.Days[c.later.day]
		mealName := day.Meals[c.later.meal].Name
		avoidTitles := append(r.dedup.AvoidTitles(MaxAvoidTitles-1), other.Title)
		avoidTokens := append(r.dedup.AvoidTokens(MaxAvoidTokens), TitleTokens(other.Title)...)
		prompt, err := BuildSingleMealPrompt(r.profile, day.Day, mealName, avoidTitles, avoidTokens)
		if err != nil {
			continue
		}
		replacement, err := p.generateMeal(ctx, r, agentSweep, day.Day, prompt)
		if err == nil {
			if score, _ := p.similarity.MaxSimilarity(replacement, rest); !p.similarity.IsDuplicate(score) {
				p.log.Info("duplicate replaced", "day", day.Day, "meal", mealName,
					"old", target.Title, "new", replacement.Title)
				*target = replacement
				r.dedup.Accept(replacement)
				day.RecomputeTotals()
				markRegenerated(plan, day.Day)
				continue
			}
		}
		target.SimilarTo = other.Title
		p.log.Warn("duplicate kept after sweep", "day", day.Day, "meal", mealName,
			"title", target.Title, "similar_to", other.Title, "error", err)
	}
}

func markRegenerated(plan *MealPlan, label string) {
	for i := range plan.Diagnostics {
		if plan.Diagnostics[i].Day == label {
			plan.Diagnostics[i].Regenerated++
		}
	}
}
