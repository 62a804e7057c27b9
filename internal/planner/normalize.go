package planner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// dayDraft is a parsed day before candidate selection. Each slot holds every
// candidate item the model produced for that meal.
type dayDraft struct {
	label   string
	summary string
	totals  Totals
	slots   [3][]Item
}

// incomplete reports whether any candidate lacks ingredients or steps.
func (d dayDraft) incomplete() bool {
	for _, slot := range d.slots {
		for _, it := range slot {
			if !it.Complete() {
				return true
			}
		}
	}
	return false
}

func (d dayDraft) itemCount() int {
	n := 0
	for _, slot := range d.slots {
		n += len(slot)
	}
	return n
}

// mealSlot maps a meal name onto the canonical slot index.
func mealSlot(name string) (int, bool) {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "breakfast"), strings.Contains(n, "brunch"), strings.Contains(n, "morning"):
		return 0, true
	case strings.Contains(n, "lunch"), strings.Contains(n, "midday"), strings.Contains(n, "noon"):
		return 1, true
	case strings.Contains(n, "dinner"), strings.Contains(n, "supper"), strings.Contains(n, "evening"):
		return 2, true
	}
	return 0, false
}

// toDraft places meals into the three canonical slots. Meals with an
// unrecognized name backfill empty slots in order; anything left over is
// dropped.
func (rd rawDay) toDraft() dayDraft {
	d := dayDraft{
		label:   NormalizeDayLabel(rd.Day),
		summary: stripMarkup(rd.Summary),
	}
	if rd.Totals != nil {
		d.totals = Totals{
			Calories: int(rd.Totals.Calories),
			Protein:  int(rd.Totals.Protein),
			Carbs:    int(rd.Totals.Carbs),
			Fat:      int(rd.Totals.Fat),
		}
	}

	var unplaced [][]Item
	for _, meal := range rd.Meals {
		items := toItems(meal.candidates)
		if len(items) == 0 {
			continue
		}
		slot, ok := mealSlot(meal.name)
		if !ok || len(d.slots[slot]) > 0 {
			unplaced = append(unplaced, items)
			continue
		}
		d.slots[slot] = items
	}
	for _, items := range unplaced {
		for i := range d.slots {
			if len(d.slots[i]) == 0 {
				d.slots[i] = items
				break
			}
		}
	}
	return d
}

func toItems(raw []rawItem) []Item {
	var items []Item
	for _, r := range raw {
		if it, ok := r.toItem(); ok {
			items = append(items, it)
		}
	}
	return items
}

func (r rawItem) toItem() (Item, bool) {
	title := stripMarkup(r.title())
	if title == "" {
		return Item{}, false
	}
	it := Item{
		Title:         title,
		Calories:      int(r.Calories),
		Protein:       int(r.Protein),
		Carbs:         int(r.Carbs),
		Fat:           int(r.Fat),
		Rationale:     stripMarkup(firstNonEmpty(r.Rationale, r.Description)),
		Tags:          cleanList(r.Tags),
		Allergens:     cleanList(r.Allergens),
		Substitutions: cleanList(r.Substitutions),
		PrepTime:      int(r.PrepTime),
		CookTime:      int(r.CookTime),
	}
	if r.Macros != nil && it.Calories == 0 && it.Protein == 0 && it.Carbs == 0 && it.Fat == 0 {
		it.Calories = int(r.Macros.Calories)
		it.Protein = int(r.Macros.Protein)
		it.Carbs = int(r.Macros.Carbs)
		it.Fat = int(r.Macros.Fat)
	}

	for _, ing := range r.Ingredients {
		name := stripMarkup(ing.Item)
		if name == "" {
			continue
		}
		category := strings.ToLower(strings.TrimSpace(ing.Category))
		if category == "" {
			category = inferCategory(name)
		}
		it.Ingredients = append(it.Ingredients, Ingredient{
			Item:     name,
			Quantity: ing.Quantity,
			Unit:     strings.TrimSpace(ing.Unit),
			Category: category,
		})
	}

	steps := r.Steps
	if len(steps) == 0 {
		steps = r.Instructions
	}
	it.Steps = cleanList(steps)
	return it, true
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = stripMarkup(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripMarkup removes HTML the model sometimes embeds in text fields and
// collapses whitespace.
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Week returns the first n weekday labels starting on Monday. n outside
// 1..7 yields the whole week.
func Week(n int) []string {
	if n <= 0 || n > len(weekdays) {
		n = len(weekdays)
	}
	return append([]string(nil), weekdays[:n]...)
}

// NormalizeDayLabel title-cases weekday names and leaves other labels as is.
func NormalizeDayLabel(label string) string {
	label = strings.TrimSpace(label)
	for _, wd := range weekdays {
		if strings.EqualFold(label, wd) || strings.EqualFold(label, wd[:3]) {
			return wd
		}
	}
	return label
}

var units = map[string]string{
	"cup": "cup", "cups": "cup", "c": "cup",
	"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp", "tbs": "tbsp",
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp",
	"g": "g", "gram": "g", "grams": "g", "kg": "kg",
	"ml": "ml", "l": "l", "liter": "l", "liters": "l",
	"oz": "oz", "ounce": "oz", "ounces": "oz", "lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"clove": "clove", "cloves": "clove", "slice": "slice", "slices": "slice",
	"can": "can", "cans": "can", "pinch": "pinch", "handful": "handful",
	"piece": "piece", "pieces": "piece", "bunch": "bunch", "stalk": "stalk", "stalks": "stalk",
}

// parseIngredientLine splits "1 1/2 cups brown rice" into quantity, unit and
// item name.
func parseIngredientLine(line string) rawIngredient {
	fields := strings.Fields(normalizeFractionSlash(line))
	qty, n := leadingQuantity(fields)
	out := rawIngredient{}
	if n > 0 {
		v := qty
		out.Quantity = &v
	}
	rest := fields[n:]
	if len(rest) > 1 {
		if unit, ok := units[strings.Trim(strings.ToLower(rest[0]), ".,")]; ok {
			out.Unit = unit
			rest = rest[1:]
		}
	}
	name := strings.Join(rest, " ")
	name = strings.TrimPrefix(name, "of ")
	out.Item = strings.TrimSpace(name)
	return out
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"protein", []string{"chicken", "beef", "pork", "turkey", "salmon", "tuna", "fish", "shrimp", "tofu", "tempeh", "egg", "lamb", "lentil", "chickpea", "bean"}},
	{"dairy", []string{"milk", "cheese", "yogurt", "yoghurt", "butter", "cream", "feta", "parmesan", "mozzarella"}},
	{"grains", []string{"rice", "quinoa", "oat", "bread", "pasta", "noodle", "tortilla", "flour", "couscous", "barley", "wrap"}},
	{"produce", []string{"spinach", "tomato", "onion", "garlic", "pepper", "carrot", "broccoli", "lettuce", "kale", "cucumber", "avocado", "lemon", "lime", "apple", "banana", "berry", "berries", "potato", "zucchini", "mushroom", "herb", "parsley", "cilantro", "basil", "ginger"}},
	{"spices", []string{"salt", "cumin", "paprika", "turmeric", "cinnamon", "oregano", "chili", "thyme", "spice"}},
	{"pantry", []string{"oil", "vinegar", "sauce", "honey", "syrup", "stock", "broth", "nut", "seed", "almond", "peanut", "sugar"}},
}

// inferCategory guesses a grocery category from an ingredient name.
func inferCategory(name string) string {
	n := strings.ToLower(name)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(n, w) {
				return c.category
			}
		}
	}
	return "other"
}
