package planner

import (
	"strings"
	"unicode"
)

const (
	DefaultUniqueThreshold = 0.3
	DefaultRejectThreshold = 0.5

	// maxComparedIngredients limits ingredient similarity to the main
	// ingredients. Garnishes and spices usually come last.
	maxComparedIngredients = 5
)

// titleStopwords are generic cooking terms that say little about what a dish
// actually is.
var titleStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "with": true, "of": true, "in": true, "on": true,
	"style": true, "easy": true, "quick": true, "healthy": true, "simple": true, "homemade": true,
	"fresh": true, "grilled": true, "roasted": true, "baked": true, "fried": true, "steamed": true,
	"sauteed": true, "stir": true, "pan": true, "seared": true, "bowl": true, "salad": true,
	"plate": true, "dish": true, "mix": true, "medley": true, "garden": true,
}

// TitleTokens lowercases a title, strips punctuation and drops stopwords and
// single letters.
func TitleTokens(title string) []string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)

	var tokens []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(clean) {
		if len(w) < 2 || titleStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// TitleSimilarity is the Jaccard index of the title token sets. Identical
// titles are always 1, even when every word is a stopword.
func TitleSimilarity(a, b string) float64 {
	if na := normalizeTitle(a); na != "" && na == normalizeTitle(b) {
		return 1
	}
	return jaccard(TitleTokens(a), TitleTokens(b))
}

// IngredientSimilarity is the Jaccard index over the first few ingredient
// names of each item.
func IngredientSimilarity(a, b Item) float64 {
	return jaccard(mainIngredients(a), mainIngredients(b))
}

// CombinedSimilarity is the larger of title and ingredient similarity.
func CombinedSimilarity(a, b Item) float64 {
	return max(TitleSimilarity(a.Title, b.Title), IngredientSimilarity(a, b))
}

func mainIngredients(it Item) []string {
	var names []string
	for _, ing := range it.Ingredients {
		if len(names) == maxComparedIngredients {
			break
		}
		if n := normalizeIngredient(ing.Item); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// normalizeIngredient lowercases, drops punctuation and a simple plural on
// the last word.
func normalizeIngredient(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	words := strings.Fields(clean)
	if len(words) == 0 {
		return ""
	}
	last := words[len(words)-1]
	switch {
	case len(last) <= 3, strings.HasSuffix(last, "ss"):
	case strings.HasSuffix(last, "ies"):
		words[len(words)-1] = strings.TrimSuffix(last, "ies") + "y"
	case strings.HasSuffix(last, "oes"):
		words[len(words)-1] = strings.TrimSuffix(last, "es")
	case strings.HasSuffix(last, "s"):
		words[len(words)-1] = strings.TrimSuffix(last, "s")
	}
	return strings.Join(words, " ")
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	inter := 0
	union := len(set)
	seen := map[string]bool{}
	for _, s := range b {
		if seen[s] {
			continue
		}
		seen[s] = true
		if set[s] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// SimilarityEngine applies the accept and reject thresholds.
type SimilarityEngine struct {
	UniqueThreshold float64
	RejectThreshold float64
}

// NewSimilarityEngine returns an engine with the default thresholds.
func NewSimilarityEngine() SimilarityEngine {
	return SimilarityEngine{UniqueThreshold: DefaultUniqueThreshold, RejectThreshold: DefaultRejectThreshold}
}

// IsDuplicate reports whether a score means the candidate must be rejected.
func (e SimilarityEngine) IsDuplicate(score float64) bool {
	return score > e.RejectThreshold
}

// IsUnique reports whether a score is low enough to accept immediately.
func (e SimilarityEngine) IsUnique(score float64) bool {
	return score < e.UniqueThreshold
}

// MaxSimilarity returns the highest combined similarity between candidate and
// any item in against, and that item. It returns 0 and nil for an empty list.
func (e SimilarityEngine) MaxSimilarity(candidate Item, against []Item) (float64, *Item) {
	best := 0.0
	var match *Item
	for i := range against {
		if s := CombinedSimilarity(candidate, against[i]); s > best || match == nil {
			best = s
			match = &against[i]
		}
	}
	return best, match
}
