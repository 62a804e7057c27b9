package planner

import (
	"testing"
)

func TestParseIngredientLine(t *testing.T) {
	tests := []struct {
		line   string
		qty    float64
		hasQty bool
		unit   string
		item   string
	}{
		{"1 1/2 cups brown rice", 1.5, true, "cup", "brown rice"},
		{"½ tsp of salt", 0.5, true, "tsp", "salt"},
		{"2 eggs", 2, true, "", "eggs"},
		{"salt to taste", 0, false, "", "salt to taste"},
		{"200 g chicken breast", 200, true, "g", "chicken breast"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := parseIngredientLine(tt.line)
			if (got.Quantity != nil) != tt.hasQty || (got.Quantity != nil && *got.Quantity != tt.qty) {
				t.Errorf("Unexpected quantity %v", got.Quantity)
			}
			if got.Unit != tt.unit || got.Item != tt.item {
				t.Errorf("Expected unit '%s' item '%s', got '%s' '%s'", tt.unit, tt.item, got.Unit, got.Item)
			}
		})
	}
}

func TestInferCategory(t *testing.T) {
	cases := map[string]string{
		"Chicken thighs": "protein",
		"Greek yogurt":   "dairy",
		"brown rice":     "grains",
		"baby spinach":   "produce",
		"ground cumin":   "spices",
		"olive oil":      "pantry",
		"xanthan gum":    "other",
	}
	for name, want := range cases {
		if got := inferCategory(name); got != want {
			t.Errorf("inferCategory(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestStripMarkup(t *testing.T) {
	cases := map[string]string{
		"<b>Lemon</b> Chicken":   "Lemon Chicken",
		"Mac &amp; Cheese":       "Mac & Cheese",
		"  plain\n text  ":       "plain text",
		"<p>Step <i>one</i></p>": "Step one",
	}
	for in, want := range cases {
		if got := stripMarkup(in); got != want {
			t.Errorf("stripMarkup(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToDraft(t *testing.T) {
	t.Run("CanonicalSlotsAndBackfill", func(t *testing.T) {
		drafts, err := parsePlanText(`{"days":[{"day":"tue","meals":[
			{"name":"Evening","items":[{"title":"Beef Stew"}]},
			{"name":"Brunch","item":{"title":"Avocado Toast"}},
			{"name":"Afternoon snack","recipe":{"title":"Hummus Plate"}},
			{"meal":"Dinner","title":"Second Dinner"}
		]}]}`)
		if err != nil {
			t.Fatalf("parsePlanText failed: %v", err)
		}
		d := drafts[0]
		if d.label != "Tuesday" {
			t.Errorf("Expected label Tuesday, got '%s'", d.label)
		}
		want := [3]string{"Avocado Toast", "Hummus Plate", "Beef Stew"}
		for i, title := range want {
			if len(d.slots[i]) == 0 || d.slots[i][0].Title != title {
				t.Errorf("Slot %d: expected %s, got %+v", i, title, d.slots[i])
			}
		}
	})

	t.Run("TolerantFields", func(t *testing.T) {
		drafts, err := parsePlanText(`{"days":[{"day":"Monday","totals":{"calories":"1,800 kcal"},"meals":{"Breakfast":{
			"title":"Oats","macros":{"calories":"350 kcal","protein":"12g","carbs":55.4,"fat":null},
			"prepTime":"10 minutes","tags":"vegan","ingredients":[{"ingredient":"oats","amount":"1 ¾ cups"}],
			"steps":[{"step":"Simmer"},{"text":"Serve"}]}}}]}`)
		if err != nil {
			t.Fatalf("parsePlanText failed: %v", err)
		}
		it := drafts[0].slots[0][0]
		if it.Calories != 350 || it.Protein != 12 || it.Carbs != 55 || it.Fat != 0 {
			t.Errorf("Unexpected macros %+v", it)
		}
		if it.PrepTime != 10 || len(it.Tags) != 1 || it.Tags[0] != "vegan" {
			t.Errorf("Unexpected prep time or tags %+v", it)
		}
		if len(it.Steps) != 2 || it.Steps[1] != "Serve" {
			t.Errorf("Unexpected steps %v", it.Steps)
		}
		ing := it.Ingredients[0]
		if ing.Item != "oats" || ing.Quantity == nil || *ing.Quantity != 1.75 || ing.Unit != "cups" || ing.Category != "grains" {
			t.Errorf("Unexpected ingredient %+v", ing)
		}
	})

	t.Run("DropsUntitledItems", func(t *testing.T) {
		drafts, err := parsePlanText(`[{"day":"Friday","meals":[{"name":"Lunch","items":[{"title":""},{"name":"Pho"}]}]}]`)
		if err != nil {
			t.Fatalf("parsePlanText failed: %v", err)
		}
		if got := drafts[0].slots[1]; len(got) != 1 || got[0].Title != "Pho" {
			t.Errorf("Expected only Pho, got %+v", got)
		}
	})
}
