package planner

import (
	"math"
	"reflect"
	"testing"
)

func itemWith(title string, ingredients ...string) Item {
	it := Item{Title: title}
	for _, ing := range ingredients {
		it.Ingredients = append(it.Ingredients, Ingredient{Item: ing})
	}
	return it
}

func TestTitleTokens(t *testing.T) {
	got := TitleTokens("Grilled Chicken & Avocado Salad (with Lime!)")
	want := []string{"chicken", "avocado", "lime"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Grilled Chicken Salad", "grilled chicken salad", 1},
		{"Grilled Chicken Salad", "Chicken Garden Salad", 1},
		{"Chicken Caesar Wrap", "Chicken Tikka Masala", 0.2},
		{"Lentil Soup", "Beef Tacos", 0},
		{"Salad Bowl", "Garden Salad", 0},
	}
	for _, tt := range tests {
		if got := TitleSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("TitleSimilarity(%q, %q) = %.3f, want %.3f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIngredientSimilarity(t *testing.T) {
	t.Run("OnlyMainIngredientsCount", func(t *testing.T) {
		a := itemWith("A", "chicken breast", "rice", "broccoli", "soy sauce", "garlic", "sesame seeds")
		b := itemWith("B", "Chicken Breast", "Rice", "broccoli", "soy sauce", "garlic", "chili flakes")
		if got := IngredientSimilarity(a, b); got != 1 {
			t.Errorf("Expected garnishes beyond the first 5 to be ignored, got %.2f", got)
		}
	})

	t.Run("Plurals", func(t *testing.T) {
		a := itemWith("A", "eggs", "tomatoes")
		b := itemWith("B", "egg", "tomato", "spinach", "onion")
		if got := IngredientSimilarity(a, b); math.Abs(got-0.5) > 1e-9 {
			t.Errorf("Expected 0.5, got %.2f", got)
		}
	})

	t.Run("NoIngredients", func(t *testing.T) {
		if got := IngredientSimilarity(Item{}, itemWith("B", "rice")); got != 0 {
			t.Errorf("Expected 0, got %.2f", got)
		}
	})
}

func TestCombinedSimilarity(t *testing.T) {
	a := itemWith("Chicken Stir Fry", "chicken", "bell pepper", "soy sauce")
	b := itemWith("Teriyaki Noodles", "chicken", "bell pepper", "soy sauce", "noodles")
	if got := CombinedSimilarity(a, b); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Expected ingredient overlap to dominate with 0.75, got %.2f", got)
	}
}

func TestSimilarityEngine(t *testing.T) {
	e := NewSimilarityEngine()
	if !e.IsDuplicate(0.51) || e.IsDuplicate(0.5) {
		t.Error("Expected only scores above 0.5 to be duplicates")
	}
	if !e.IsUnique(0.29) || e.IsUnique(0.3) {
		t.Error("Expected only scores below 0.3 to be unique")
	}

	against := []Item{itemWith("Beef Tacos"), itemWith("Chicken Salad"), itemWith("Lentil Soup")}
	score, match := e.MaxSimilarity(itemWith("Chicken Garden Salad"), against)
	if score != 1 || match == nil || match.Title != "Chicken Salad" {
		t.Errorf("Expected Chicken Salad at 1.0, got %v %.2f", match, score)
	}

	if score, match := e.MaxSimilarity(itemWith("Anything"), nil); score != 0 || match != nil {
		t.Errorf("Expected 0 and nil for an empty list, got %.2f %v", score, match)
	}
}

func TestDedupContext(t *testing.T) {
	d := NewDedupContext()
	d.Accept(itemWith("Turkey Wrap"))
	d.Accept(itemWith("turkey  wrap"))
	d.Accept(itemWith("Salmon Teriyaki Bowl"))

	if !d.HasTitle("TURKEY WRAP") {
		t.Error("Expected normalized title lookup")
	}
	if got := d.AvoidTitles(10); !reflect.DeepEqual(got, []string{"Turkey Wrap", "Salmon Teriyaki Bowl"}) {
		t.Errorf("Unexpected avoid titles %v", got)
	}
	if got := d.AvoidTitles(1); !reflect.DeepEqual(got, []string{"Salmon Teriyaki Bowl"}) {
		t.Errorf("Expected the most recent title, got %v", got)
	}
	if got := d.AvoidTokens(0); !reflect.DeepEqual(got, []string{"turkey", "wrap", "salmon", "teriyaki"}) {
		t.Errorf("Unexpected avoid tokens %v", got)
	}
	if len(d.Items()) != 3 {
		t.Errorf("Expected every accepted item to be tracked, got %d", len(d.Items()))
	}
}
