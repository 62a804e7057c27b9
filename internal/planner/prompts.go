package planner

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

// Avoid lists are capped so prompts stay well under the model limit over a
// full week.
const (
	MaxAvoidTitles = 20
	MaxAvoidTokens = 30
)

var (
	//go:embed day_prompt.md
	dayPrompt string
	//go:embed single_meal_prompt.md
	singleMealPrompt string
	//go:embed repair_prompt.md
	repairPrompt string
)

var promptFuncs = template.FuncMap{"join": strings.Join}

var (
	dayTmpl        = template.Must(template.New("Day").Funcs(promptFuncs).Parse(dayPrompt))
	singleMealTmpl = template.Must(template.New("SingleMeal").Funcs(promptFuncs).Parse(singleMealPrompt))
	repairTmpl     = template.Must(template.New("Repair").Funcs(promptFuncs).Parse(repairPrompt))
)

// BuildDayPrompt builds the prompt for one day or a batch of days.
func BuildDayPrompt(profile UserProfile, days []string, avoidTitles, avoidTokens []string) (string, error) {
	if len(days) == 0 {
		return "", fmt.Errorf("at least one day is required")
	}
	return render(dayTmpl, map[string]any{
		"Profile":     profile.Summary(),
		"Days":        days,
		"AvoidTitles": lastN(avoidTitles, MaxAvoidTitles),
		"AvoidTokens": lastN(avoidTokens, MaxAvoidTokens),
	})
}

// BuildSingleMealPrompt asks for exactly one replacement recipe.
func BuildSingleMealPrompt(profile UserProfile, dayLabel, mealName string, avoidTitles, avoidTokens []string) (string, error) {
	return render(singleMealTmpl, map[string]any{
		"Profile":     profile.Summary(),
		"Day":         dayLabel,
		"Meal":        mealName,
		"AvoidTitles": lastN(avoidTitles, MaxAvoidTitles),
		"AvoidTokens": lastN(avoidTokens, MaxAvoidTokens),
	})
}

// BuildRepairPrompt asks the model to complete missing ingredients and steps
// in brokenPlanJSON.
func BuildRepairPrompt(profile UserProfile, brokenPlanJSON string) (string, error) {
	return render(repairTmpl, map[string]any{
		"Profile": profile.Summary(),
		"Plan":    brokenPlanJSON,
	})
}

// BuildPingPrompt is the minimal prompt used to check that the service
// answers at all.
func BuildPingPrompt() string {
	return `Reply with the JSON {"ok":true} and nothing else.`
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// lastN keeps the most recent n entries.
func lastN(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[len(list)-n:]
}
