package planner

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

var vulgarFractions = map[rune]float64{
	'½': 1.0 / 2, '⅓': 1.0 / 3, '⅔': 2.0 / 3, '¼': 1.0 / 4, '¾': 3.0 / 4,
	'⅕': 1.0 / 5, '⅖': 2.0 / 5, '⅗': 3.0 / 5, '⅘': 4.0 / 5, '⅙': 1.0 / 6,
	'⅚': 5.0 / 6, '⅛': 1.0 / 8, '⅜': 3.0 / 8, '⅝': 5.0 / 8, '⅞': 7.0 / 8,
}

// ParseQuantity parses an ingredient amount such as "2", "0.5", "3/4",
// "1 1/2", "½" or "1½". The second return value is false when s does not
// start with a number.
func ParseQuantity(s string) (float64, bool) {
	v, n := leadingQuantity(strings.Fields(normalizeFractionSlash(s)))
	return v, n > 0
}

func normalizeFractionSlash(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "⁄", "/")
}

// leadingQuantity reads up to two leading fields as a quantity ("1 1/2") and
// returns the value and how many fields were consumed.
func leadingQuantity(fields []string) (float64, int) {
	if len(fields) == 0 {
		return 0, 0
	}
	whole, ok := parseQuantityToken(fields[0])
	if !ok {
		return 0, 0
	}
	if len(fields) > 1 && isFractionToken(fields[1]) && !isFractionToken(fields[0]) {
		if frac, ok := parseQuantityToken(fields[1]); ok {
			return whole + frac, 2
		}
	}
	return whole, 1
}

func isFractionToken(f string) bool {
	if strings.Contains(f, "/") {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(f)
	_, ok := vulgarFractions[r]
	return ok
}

func parseQuantityToken(f string) (float64, bool) {
	f = strings.TrimSpace(f)
	if f == "" {
		return 0, false
	}

	// "1½" or "½"
	if r, size := utf8.DecodeLastRuneInString(f); size > 0 {
		if frac, ok := vulgarFractions[r]; ok {
			prefix := f[:len(f)-size]
			if prefix == "" {
				return frac, true
			}
			whole, err := strconv.ParseFloat(prefix, 64)
			if err != nil {
				return 0, false
			}
			return whole + frac, true
		}
	}

	// "3/4"
	if num, den, found := strings.Cut(f, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}

	// "1-2" ranges keep the lower bound
	if lo, _, found := strings.Cut(f, "-"); found && lo != "" {
		f = lo
	}

	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
