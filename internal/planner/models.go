package planner

import (
	"fmt"
	"strings"
)

// Canonical meal names, in plan order.
const (
	MealBreakfast = "Breakfast"
	MealLunch     = "Lunch"
	MealDinner    = "Dinner"
)

// MealNames lists the fixed meal slots of every day.
var MealNames = [3]string{MealBreakfast, MealLunch, MealDinner}

// UserProfile captures the dietary preferences collected from the user.
// It is not modified during a generation run.
type UserProfile struct {
	Age                int      `json:"age,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	Ethnicity          string   `json:"ethnicity,omitempty"`
	MedicalConditions  string   `json:"medicalConditions,omitempty"`
	FitnessGoal        string   `json:"fitnessGoal,omitempty"`
	Exclusions         string   `json:"exclusions,omitempty"`
	DietaryPreferences []string `json:"dietaryPreferences,omitempty"`
}

// Summary renders the profile as a compact single line for prompts.
func (p UserProfile) Summary() string {
	var parts []string
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("age %d", p.Age))
	}
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			parts = append(parts, label+v)
		}
	}
	add("", p.Gender)
	add("cuisine: ", p.Ethnicity)
	add("goal: ", p.FitnessGoal)
	add("conditions: ", p.MedicalConditions)
	add("exclude: ", p.Exclusions)
	if len(p.DietaryPreferences) > 0 {
		parts = append(parts, "diet: "+strings.Join(p.DietaryPreferences, ", "))
	}
	if len(parts) == 0 {
		return "no specific preferences"
	}
	return strings.Join(parts, "; ")
}

// Totals are the macro sums of a day.
type Totals struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// IsZero reports whether no totals were provided.
func (t Totals) IsZero() bool {
	return t == Totals{}
}

// Ingredient is a single line of a recipe.
type Ingredient struct {
	Item     string   `json:"item"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Category string   `json:"category,omitempty"`
}

// Item is a recipe.
type Item struct {
	Title         string       `json:"title"`
	Calories      int          `json:"calories"`
	Protein       int          `json:"protein"`
	Carbs         int          `json:"carbs"`
	Fat           int          `json:"fat"`
	Rationale     string       `json:"rationale,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Allergens     []string     `json:"allergens,omitempty"`
	Substitutions []string     `json:"substitutions,omitempty"`
	PrepTime      int          `json:"prepTime,omitempty"`
	CookTime      int          `json:"cookTime,omitempty"`
	Ingredients   []Ingredient `json:"ingredients"`
	Steps         []string     `json:"steps"`

	// SimilarTo names the already accepted item this one resembles. It is only
	// set when no sufficiently distinct candidate was found within the
	// regeneration budget and the least similar one was kept.
	SimilarTo string `json:"similarTo,omitempty"`
}

// Complete reports whether the item has both ingredients and steps.
func (it Item) Complete() bool {
	return len(it.Ingredients) > 0 && len(it.Steps) > 0
}

// Meal is one of the fixed slots of a day. It holds at most one item.
type Meal struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Day is the plan for a single weekday.
type Day struct {
	Day     string `json:"day"`
	Summary string `json:"summary,omitempty"`
	Totals  Totals `json:"totals"`
	Meals   []Meal `json:"meals"`
}

// Items returns the accepted items of the day in meal order.
func (d Day) Items() []Item {
	var items []Item
	for _, m := range d.Meals {
		items = append(items, m.Items...)
	}
	return items
}

// RecomputeTotals sets Totals to the sum over the day's items.
func (d *Day) RecomputeTotals() {
	var t Totals
	for _, it := range d.Items() {
		t.Calories += it.Calories
		t.Protein += it.Protein
		t.Carbs += it.Carbs
		t.Fat += it.Fat
	}
	d.Totals = t
}

// MealPlan is the result of one generation run.
type MealPlan struct {
	Title       string      `json:"title"`
	Notes       string      `json:"notes,omitempty"`
	Days        []Day       `json:"days"`
	Diagnostics []DayReport `json:"diagnostics,omitempty"`
}

// Complete reports whether every requested day is present.
func (p *MealPlan) Complete(requested int) bool {
	return len(p.Days) >= requested
}

// PartialNotice returns the user facing notice for an incomplete plan, or an
// empty string when the plan is complete.
func (p *MealPlan) PartialNotice(requested int) string {
	if p.Complete(requested) {
		return ""
	}
	return fmt.Sprintf("%d of %d days generated, regenerate for more", len(p.Days), requested)
}

// ProgressFunc is invoked after each requested day has been processed.
type ProgressFunc func(Progress)

// Progress reports how far a generation run has come.
type Progress struct {
	DayLabel string
	Index    int
	Total    int
	Accepted bool
}
