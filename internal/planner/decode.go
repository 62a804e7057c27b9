package planner

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// flexInt accepts numbers, numeric strings ("450 kcal", "12g") and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexInt(leadingInt(s))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		// Booleans, objects and the like are ignored.
		return nil
	}
	*f = flexInt(int(v + 0.5))
	return nil
}

// leadingInt reads the number at the start of s. Thousands separators
// ("1,850", "2_000") are skipped when a group of three digits follows.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	var num strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9' || c == '.':
			num.WriteByte(c)
		case (c == ',' || c == '_') && num.Len() > 0 && thousandsGroup(s[i+1:]):
		default:
			i = len(s)
		}
	}
	v, err := strconv.ParseFloat(num.String(), 64)
	if err != nil {
		return 0
	}
	return int(v + 0.5)
}

func thousandsGroup(s string) bool {
	if len(s) < 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) == 3 || s[3] < '0' || s[3] > '9'
}

// flexStrings accepts a string, a list of strings, or a list of objects
// carrying the text under a common key.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = splitLines(s)
	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, el := range raw {
			if s := stringFromAny(el, "text", "step", "instruction", "description", "name"); s != "" {
				out = append(out, s)
			}
		}
		*f = out
	}
	return nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func stringFromAny(v any, keys ...string) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for _, k := range keys {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

type rawIngredient struct {
	Item     string
	Quantity *float64
	Unit     string
	Category string
}

func (r *rawIngredient) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var line string
		if err := json.Unmarshal(data, &line); err != nil {
			return err
		}
		*r = parseIngredientLine(line)
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	r.Item = stringFromAny(m, "item", "name", "ingredient")
	r.Unit = stringFromAny(m, "unit")
	r.Category = stringFromAny(m, "category")
	for _, key := range []string{"quantity", "qty", "amount"} {
		switch q := m[key].(type) {
		case float64:
			v := q
			r.Quantity = &v
		case string:
			// "1 1/2 cups" may arrive as the quantity value
			if line := parseIngredientLine(q); line.Quantity != nil {
				r.Quantity = line.Quantity
				if r.Unit == "" {
					r.Unit = firstNonEmpty(line.Unit, line.Item)
				}
			}
		}
		if r.Quantity != nil {
			break
		}
	}
	return nil
}

type rawMacros struct {
	Calories flexInt `json:"calories"`
	Protein  flexInt `json:"protein"`
	Carbs    flexInt `json:"carbs"`
	Fat      flexInt `json:"fat"`
}

type rawItem struct {
	Title         string          `json:"title"`
	Name          string          `json:"name"`
	Calories      flexInt         `json:"calories"`
	Protein       flexInt         `json:"protein"`
	Carbs         flexInt         `json:"carbs"`
	Fat           flexInt         `json:"fat"`
	Macros        *rawMacros      `json:"macros"`
	Rationale     string          `json:"rationale"`
	Description   string          `json:"description"`
	Tags          flexStrings     `json:"tags"`
	Allergens     flexStrings     `json:"allergens"`
	Substitutions flexStrings     `json:"substitutions"`
	PrepTime      flexInt         `json:"prepTime"`
	CookTime      flexInt         `json:"cookTime"`
	Ingredients   []rawIngredient `json:"ingredients"`
	Steps         flexStrings     `json:"steps"`
	Instructions  flexStrings     `json:"instructions"`
}

func (r rawItem) title() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

type rawMeal struct {
	name       string
	candidates []rawItem
}

func (m *rawMeal) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Name   string    `json:"name"`
		Meal   string    `json:"meal"`
		Type   string    `json:"type"`
		Items  []rawItem `json:"items"`
		Item   *rawItem  `json:"item"`
		Recipe *rawItem  `json:"recipe"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}

	m.name = firstNonEmpty(wrapper.Meal, wrapper.Type, wrapper.Name)
	m.candidates = append(m.candidates, wrapper.Items...)
	if wrapper.Item != nil {
		m.candidates = append(m.candidates, *wrapper.Item)
	}
	if wrapper.Recipe != nil {
		m.candidates = append(m.candidates, *wrapper.Recipe)
	}

	// A meal may be the recipe itself: {"meal":"Lunch","title":"..."}.
	var flat rawItem
	if err := json.Unmarshal(data, &flat); err == nil && flat.Title != "" {
		m.candidates = append(m.candidates, flat)
	}
	return nil
}

// rawMeals accepts either a list of meals or an object keyed by meal name.
type rawMeals []rawMeal

func (r *rawMeals) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '[' {
		var list []rawMeal
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*r = list
		return nil
	}

	var byName map[string]json.RawMessage
	if err := json.Unmarshal(data, &byName); err != nil {
		return err
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		body := bytes.TrimSpace(byName[name])
		meal := rawMeal{}
		if len(body) > 0 && body[0] == '[' {
			var items []rawItem
			if err := json.Unmarshal(body, &items); err != nil {
				continue
			}
			meal.candidates = items
		} else if err := json.Unmarshal(body, &meal); err != nil {
			continue
		}
		meal.name = name
		*r = append(*r, meal)
	}
	return nil
}

type rawDay struct {
	Day     string     `json:"day"`
	Summary string     `json:"summary"`
	Totals  *rawMacros `json:"totals"`
	Meals   rawMeals   `json:"meals"`
}

// decodeDays turns the canonical {"days": [...]} shape into drafts. Elements
// that cannot be decoded are skipped.
func decodeDays(shape map[string]any) ([]dayDraft, error) {
	days, _ := shape["days"].([]any)
	var drafts []dayDraft
	for _, el := range days {
		data, err := json.Marshal(el)
		if err != nil {
			continue
		}
		var rd rawDay
		if err := json.Unmarshal(data, &rd); err != nil {
			continue
		}
		drafts = append(drafts, rd.toDraft())
	}
	if len(drafts) == 0 {
		return nil, ErrUnrecognizedShape
	}
	return drafts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
