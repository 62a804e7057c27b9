package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"ai-weekly-planner/internal/planner"
	"ai-weekly-planner/internal/shopping"
)

//go:embed plan.html.tmpl
var planHTML string

var htmlTmpl = template.Must(template.New("plan").Funcs(template.FuncMap{
	"quantity": formatIngredient,
}).Parse(planHTML))

// Text renders the plan for a terminal.
func Text(plan *planner.MealPlan, requested int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", plan.Title)
	if plan.Notes != "" {
		fmt.Fprintf(&sb, "%s\n", plan.Notes)
	}
	if notice := plan.PartialNotice(requested); notice != "" {
		fmt.Fprintf(&sb, "Note: %s\n", notice)
	}

	for _, day := range plan.Days {
		fmt.Fprintf(&sb, "\n== %s (%d kcal, P %dg / C %dg / F %dg) ==\n",
			day.Day, day.Totals.Calories, day.Totals.Protein, day.Totals.Carbs, day.Totals.Fat)
		if day.Summary != "" {
			fmt.Fprintf(&sb, "%s\n", day.Summary)
		}
		for _, meal := range day.Meals {
			if len(meal.Items) == 0 {
				fmt.Fprintf(&sb, "\n%s: (no recipe)\n", meal.Name)
				continue
			}
			it := meal.Items[0]
			fmt.Fprintf(&sb, "\n%s: %s (%d kcal", meal.Name, it.Title, it.Calories)
			if total := it.PrepTime + it.CookTime; total > 0 {
				fmt.Fprintf(&sb, ", %d min", total)
			}
			sb.WriteString(")\n")
			if it.SimilarTo != "" {
				fmt.Fprintf(&sb, "  similar to %s\n", it.SimilarTo)
			}
			for _, ing := range it.Ingredients {
				fmt.Fprintf(&sb, "  - %s\n", formatIngredient(ing))
			}
			for i, step := range it.Steps {
				fmt.Fprintf(&sb, "  %d. %s\n", i+1, step)
			}
		}
	}

	list := shopping.Build(plan)
	if list.Len() > 0 {
		sb.WriteString("\nGrocery list\n\n")
		sb.WriteString(list.Format())
	}
	return sb.String()
}

// HTML renders the plan as an HTML fragment suitable for a blog post.
func HTML(plan *planner.MealPlan, requested int) (string, error) {
	data := struct {
		Plan    *planner.MealPlan
		Notice  string
		Grocery *shopping.List
	}{plan, plan.PartialNotice(requested), shopping.Build(plan)}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render plan html: %w", err)
	}
	return buf.String(), nil
}

func formatIngredient(ing planner.Ingredient) string {
	var parts []string
	if ing.Quantity != nil {
		parts = append(parts, strconv.FormatFloat(*ing.Quantity, 'f', -1, 64))
	}
	if ing.Unit != "" {
		parts = append(parts, ing.Unit)
	}
	parts = append(parts, ing.Item)
	return strings.Join(parts, " ")
}
