package planner

import (
	"context"
	"errors"
)

// DayState is a step of the per-day state machine.
type DayState string

const (
	StatePending      DayState = "PENDING"
	StateGenerating   DayState = "GENERATING"
	StateParsing      DayState = "PARSING"
	StateRepairing    DayState = "REPAIRING"
	StateDeduping     DayState = "DEDUPING"
	StateRegenerating DayState = "REGENERATING_SLOT"
	StateAccepted     DayState = "ACCEPTED"
	StateFailed       DayState = "FAILED"
)

// ErrEmptyDay means no meal slot of a day could be filled.
var ErrEmptyDay = errors.New("no meal could be generated for the day")

// DayReport describes how a day was processed.
type DayReport struct {
	Day         string     `json:"day"`
	State       DayState   `json:"state"`
	Trace       []DayState `json:"trace,omitempty"`
	Calls       int        `json:"calls"`
	Repaired    bool       `json:"repaired,omitempty"`
	Regenerated int        `json:"regenerated,omitempty"`
	Err         error      `json:"-"`
}

func (r *DayReport) enter(s DayState) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// processDay drives one day from prompt to accepted Day. pre is a draft that
// came from a batch request; when nil the day is requested on its own.
func (p *Planner) processDay(ctx context.Context, r *run, label string, pre *dayDraft) (Day, DayReport) {
	report := DayReport{Day: label}
	report.enter(StatePending)
	callsBefore := r.calls

	var draft dayDraft
	if pre != nil {
		draft = *pre
		report.enter(StateGenerating)
		report.enter(StateParsing)
	} else {
		report.enter(StateGenerating)
		d, err := p.generateDay(ctx, r, label, &report)
		if err != nil {
			report.enter(StateFailed)
			report.Err = err
			report.Calls = r.calls - callsBefore
			return Day{}, report
		}
		draft = d
	}
	draft.label = label

	if draft.incomplete() {
		report.enter(StateRepairing)
		repairer := &Repairer{call: p.callFor(r), policy: p.repairAttempts, estimator: p.estimator, log: p.log}
		draft, report.Repaired = repairer.Repair(ctx, r.profile, draft)
	}

	report.enter(StateDeduping)
	day, replaced := p.fillSlots(ctx, r, draft, &report)

	if len(day.Items()) == 0 {
		report.enter(StateFailed)
		report.Err = ErrEmptyDay
		report.Calls = r.calls - callsBefore
		return Day{}, report
	}
	if draft.totals.IsZero() || replaced {
		day.RecomputeTotals()
	}
	for _, it := range day.Items() {
		r.dedup.Accept(it)
	}
	report.enter(StateAccepted)
	report.Calls = r.calls - callsBefore
	return day, report
}

func (p *Planner) callFor(r *run) callFunc {
	return func(ctx context.Context, agent, day, prompt string, a Attempt) (string, error) {
		return p.call(ctx, r, agent, day, prompt, a)
	}
}

// generateDay requests a single day with the configured attempt policy. The
// prompt is built once from the dedup snapshot; retries only shrink the
// budget and temperature.
func (p *Planner) generateDay(ctx context.Context, r *run, label string, report *DayReport) (dayDraft, error) {
	prompt, err := BuildDayPrompt(r.profile, []string{label}, r.dedup.AvoidTitles(MaxAvoidTitles), r.dedup.AvoidTokens(MaxAvoidTokens))
	if err != nil {
		return dayDraft{}, err
	}
	d, _, err := runAttempts(ctx, p.estimator.Fit(prompt, p.dayAttempts), func(ctx context.Context, a Attempt) (dayDraft, error) {
		text, err := p.call(ctx, r, agentDay, label, prompt, a)
		if err != nil {
			return dayDraft{}, err
		}
		report.enter(StateParsing)
		drafts, err := parsePlanText(text)
		if err != nil {
			return dayDraft{}, err
		}
		d := pickDraft(drafts, label)
		if d.itemCount() == 0 {
			return dayDraft{}, ErrNoItems
		}
		return d, nil
	})
	return d, err
}

// fillSlots picks one item per meal in Breakfast, Lunch, Dinner order,
// comparing against everything accepted so far plus the siblings already
// chosen for this day. Slots left empty or holding only duplicates are
// regenerated. replaced reports whether any slot differs from the draft's
// first candidate.
func (p *Planner) fillSlots(ctx context.Context, r *run, draft dayDraft, report *DayReport) (day Day, replaced bool) {
	day = Day{Day: draft.label, Summary: draft.summary, Totals: draft.totals, Meals: make([]Meal, len(MealNames))}
	previous := r.dedup.Items()
	var siblings []Item

	for i, name := range MealNames {
		day.Meals[i] = Meal{Name: name, Items: []Item{}}
		against := append(append([]Item(nil), previous...), siblings...)

		cands := draft.slots[i]
		chosen, score, ok := p.selectCandidate(cands, against)
		if !ok {
			report.enter(StateRegenerating)
			chosen, ok = p.regenerateSlot(ctx, r, draft.label, name, cands, against, report)
			replaced = true
		} else if len(cands) > 0 && chosen.Title != cands[0].Title {
			replaced = true
		}
		if !ok {
			p.log.Warn("meal left empty", "day", draft.label, "meal", name)
			continue
		}
		p.log.Debug("meal accepted", "day", draft.label, "meal", name, "title", chosen.Title, "similarity", score)
		day.Meals[i].Items = []Item{chosen}
		siblings = append(siblings, chosen)
	}
	return day, replaced
}

// selectCandidate returns the first candidate under the unique threshold,
// else the least similar one not above the reject threshold. ok is false
// when every candidate is a duplicate or there are none.
func (p *Planner) selectCandidate(cands, against []Item) (Item, float64, bool) {
	var best Item
	bestScore := 2.0
	for _, c := range cands {
		score, _ := p.similarity.MaxSimilarity(c, against)
		if p.similarity.IsUnique(score) {
			return c, score, true
		}
		if !p.similarity.IsDuplicate(score) && score < bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore <= p.similarity.RejectThreshold {
		return best, bestScore, true
	}
	return Item{}, 0, false
}

// regenerateSlot asks for replacement recipes until one is not a duplicate.
// When the budget runs out the least similar candidate seen is kept and
// marked with the title it resembles.
func (p *Planner) regenerateSlot(ctx context.Context, r *run, label, meal string, rejected, against []Item, report *DayReport) (Item, bool) {
	avoidTitles := r.dedup.AvoidTitles(MaxAvoidTitles)
	var avoidTokens []string
	for _, it := range against[len(r.dedup.Items()):] {
		avoidTitles = append(avoidTitles, it.Title)
	}
	seen := append([]Item(nil), rejected...)
	for _, it := range rejected {
		avoidTitles = append(avoidTitles, it.Title)
		avoidTokens = append(avoidTokens, TitleTokens(it.Title)...)
	}
	avoidTokens = append(r.dedup.AvoidTokens(MaxAvoidTokens), avoidTokens...)

	for i := 0; i < p.regenAttempts; i++ {
		prompt, err := BuildSingleMealPrompt(r.profile, label, meal, avoidTitles, avoidTokens)
		if err != nil {
			break
		}
		it, err := p.generateMeal(ctx, r, agentMeal, label, prompt)
		if err != nil {
			p.log.Warn("meal regeneration failed", "day", label, "meal", meal, "error", err)
			if !IsRetryable(err) {
				break
			}
			continue
		}
		score, _ := p.similarity.MaxSimilarity(it, against)
		if !p.similarity.IsDuplicate(score) {
			report.Regenerated++
			return it, true
		}
		seen = append(seen, it)
		avoidTitles = append(avoidTitles, it.Title)
		avoidTokens = append(avoidTokens, TitleTokens(it.Title)...)
	}

	if len(seen) == 0 {
		return Item{}, false
	}
	best, bestScore := seen[0], 2.0
	var match *Item
	for _, c := range seen {
		if score, m := p.similarity.MaxSimilarity(c, against); score < bestScore {
			best, bestScore, match = c, score, m
		}
	}
	if match != nil && p.similarity.IsDuplicate(bestScore) {
		best.SimilarTo = match.Title
		p.log.Warn("keeping similar meal after regeneration budget", "day", label, "meal", meal,
			"title", best.Title, "similar_to", match.Title, "similarity", bestScore)
	}
	return best, true
}

// generateMeal requests one recipe with the meal attempt policy.
func (p *Planner) generateMeal(ctx context.Context, r *run, agent, label, prompt string) (Item, error) {
	it, _, err := runAttempts(ctx, p.estimator.Fit(prompt, p.mealAttempts), func(ctx context.Context, a Attempt) (Item, error) {
		text, err := p.call(ctx, r, agent, label, prompt, a)
		if err != nil {
			return Item{}, err
		}
		return parseItemText(text)
	})
	return it, err
}
