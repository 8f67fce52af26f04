package pricing

import (
	"sort"
	"strings"

	"smartcart/models"
)

// DefaultNegativeTerms mark listings that share words with grocery queries
// but are not groceries
var DefaultNegativeTerms = []string{
	"toy", "easter", "decor", "costume", "gift card", "giftcard", "digital", "ebook", "ornament",
}

// DefaultResultLimit caps the records kept per retailer and query
const DefaultResultLimit = 10

// Tokenize lower-cases text, treats '%' as a token boundary and splits on
// whitespace. Tokens are unique and keep their first-seen order.
func Tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "%", "% ")
	seen := make(map[string]bool)
	var tokens []string
	for _, token := range strings.Fields(text) {
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// Ranker filters retailer results down to relevant, priced-first listings
type Ranker struct {
	limit         int
	negativeTerms []string
	normalizer    *Normalizer
}

// NewRanker creates a ranker keeping at most limit records per retailer
func NewRanker(limit int, normalizer *Normalizer) *Ranker {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Ranker{
		limit:         limit,
		negativeTerms: DefaultNegativeTerms,
		normalizer:    normalizer,
	}
}

func combinedText(rec models.ProductRecord) string {
	return strings.ToLower(rec.Name + " " + rec.QuantityText + " " + rec.UnitPriceText)
}

// IsRelevant reports whether a record plausibly answers the query. A record
// is rejected outright when it mentions a negative term; otherwise at least
// max(2, n/2) of the n query tokens must appear in it, never more than n.
func (r *Ranker) IsRelevant(query string, rec models.ProductRecord) bool {
	combined := combinedText(rec)
	for _, term := range r.negativeTerms {
		if strings.Contains(combined, term) {
			return false
		}
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return false
	}
	required := max(2, len(tokens)/2)
	required = min(required, len(tokens))

	matches := 0
	for _, token := range tokens {
		if strings.Contains(combined, token) {
			matches++
		}
	}
	return matches >= required
}

// FilterAndRank keeps relevant records, puts priced ones first in ascending
// price order, truncates to the limit and enriches the survivors. The input
// slice is not modified.
func (r *Ranker) FilterAndRank(query string, records []models.ProductRecord) []models.ProductRecord {
	filtered := make([]models.ProductRecord, 0, len(records))
	for _, rec := range records {
		if r.IsRelevant(query, rec) {
			filtered = append(filtered, rec)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Price.Valid != b.Price.Valid {
			return a.Price.Valid
		}
		if !a.Price.Valid {
			return false
		}
		return a.Price.Decimal.LessThan(b.Price.Decimal)
	})

	if len(filtered) > r.limit {
		filtered = filtered[:r.limit]
	}

	ranked := make([]models.ProductRecord, len(filtered))
	for i, rec := range filtered {
		ranked[i] = r.normalizer.Enrich(rec)
	}
	return ranked
}
