package shopping

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ai-weekly-planner/internal/planner"
)

// categoryOrder is the aisle order used when printing a list.
var categoryOrder = []string{"produce", "protein", "dairy", "grains", "pantry", "spices", "other"}

// Entry is one line of a grocery list. Quantity is nil when no ingredient
// merged into it carried an amount.
type Entry struct {
	Name     string
	Quantity *float64
	Unit     string
	Category string
	// Uses counts the recipes that need this entry.
	Uses int
}

// String renders the entry as "1.5 cup rice".
func (e Entry) String() string {
	var parts []string
	if e.Quantity != nil {
		parts = append(parts, strconv.FormatFloat(*e.Quantity, 'f', -1, 64))
	}
	if e.Unit != "" {
		parts = append(parts, e.Unit)
	}
	parts = append(parts, e.Name)
	return strings.Join(parts, " ")
}

// Group is the entries of one category.
type Group struct {
	Category string
	Entries  []Entry
}

// List is a grocery list derived from a meal plan.
type List struct {
	Groups []Group
}

// Len returns the number of entries across groups.
func (l *List) Len() int {
	n := 0
	for _, g := range l.Groups {
		n += len(g.Entries)
	}
	return n
}

// Build merges the ingredients of every item in the plan. Ingredients with
// the same normalized name and unit are summed; entries are grouped by
// category in aisle order and sorted by name.
func Build(plan *planner.MealPlan) *List {
	merged := map[string]*Entry{}
	var keys []string

	for _, day := range plan.Days {
		for _, it := range day.Items() {
			for _, ing := range it.Ingredients {
				name := normalizeName(ing.Item)
				if name == "" {
					continue
				}
				unit := strings.ToLower(strings.TrimSpace(ing.Unit))
				key := name + "|" + unit
				e, ok := merged[key]
				if !ok {
					e = &Entry{Name: name, Unit: unit, Category: categoryOf(ing)}
					merged[key] = e
					keys = append(keys, key)
				}
				e.Uses++
				if ing.Quantity != nil {
					sum := *ing.Quantity
					if e.Quantity != nil {
						sum += *e.Quantity
					}
					e.Quantity = &sum
				}
			}
		}
	}

	byCategory := map[string][]Entry{}
	for _, key := range keys {
		e := merged[key]
		byCategory[e.Category] = append(byCategory[e.Category], *e)
	}

	list := &List{}
	for _, cat := range orderedCategories(byCategory) {
		entries := byCategory[cat]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		list.Groups = append(list.Groups, Group{Category: cat, Entries: entries})
	}
	return list
}

// Format renders the list as plain text with one section per category.
func (l *List) Format() string {
	var sb strings.Builder
	for i, g := range l.Groups {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s:\n", strings.ToUpper(g.Category[:1])+g.Category[1:])
		for _, e := range g.Entries {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	return sb.String()
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func categoryOf(ing planner.Ingredient) string {
	cat := strings.ToLower(strings.TrimSpace(ing.Category))
	if cat == "" {
		return "other"
	}
	return cat
}

func orderedCategories(byCategory map[string][]Entry) []string {
	var out []string
	known := map[string]bool{}
	for _, cat := range categoryOrder {
		known[cat] = true
		if len(byCategory[cat]) > 0 {
			out = append(out, cat)
		}
	}
	var extra []string
	for cat := range byCategory {
		if !known[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
