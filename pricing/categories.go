package pricing

import (
	"regexp"
	"strings"
)

// Display units
const (
	Per100ml = "100ml"
	Per100g  = "100g"
	PerPound = "lb"
	PerEach  = "1ea"
	PerRoll  = "1roll"
)

// Category groups products that are compared in the same display unit
type Category struct {
	Name        string
	Pattern     *regexp.Regexp
	Base        string
	DisplayUnit string
}

// keywords match at the start of a word so "tea" does not match "steak"
func keywords(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)`)
}

// DefaultCategories returns the product categories in matching order
func DefaultCategories() []Category {
	return []Category{
		{"beverage", keywords("milk", "juice", "beverage", "drink", "liquid", "water", "coffee", "tea", "soda"), BaseMilliliter, Per100ml},
		{"meat", keywords("meat", "turkey", "chicken", "beef", "pork", "deli", "ham", "bacon", "sausage", "fish"), BaseGram, Per100g},
		{"produce", keywords("apple", "orange", "banana", "fruit", "produce", "vegetable", "lemon", "lime"), BaseGram, PerPound},
		{"baked", keywords("bread", "baked", "cake", "cookie", "donut"), BaseGram, Per100g},
		{"eggs", keywords("egg"), BaseCount, PerEach},
		{"paper", keywords("paper", "tissue", "toilet", "towel", "napkin"), BaseCount, PerRoll},
		{"grains", keywords("cereal", "pasta", "rice", "grain", "flour"), BaseGram, Per100g},
	}
}

// Categorize returns the first category whose keywords appear in the name
func (n *Normalizer) Categorize(name string) (Category, bool) {
	name = strings.ToLower(name)
	for _, cat := range n.categories {
		if cat.Pattern.MatchString(name) {
			return cat, true
		}
	}
	return Category{}, false
}

func naturalDisplayUnit(base string) string {
	switch base {
	case BaseMilliliter:
		return Per100ml
	case BaseGram:
		return Per100g
	default:
		return PerEach
	}
}
