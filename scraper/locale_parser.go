package scraper

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	nonPriceChars = regexp.MustCompile(`[^0-9.,]`)
	centsPrice    = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*¢`)
)

// ParseCurrency reads a retailer price string such as "$3.98", "1,299.00"
// or "97¢". Anything other than digits, '.' and ',' is discarded and
// thousands separators are dropped. Non-positive amounts are rejected.
func ParseCurrency(text string) (decimal.Decimal, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, false
	}

	if m := centsPrice.FindStringSubmatch(text); m != nil {
		cents, err := decimal.NewFromString(m[1])
		if err != nil || !cents.IsPositive() {
			return decimal.Zero, false
		}
		return cents.Shift(-2), true
	}

	cleaned := nonPriceChars.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" || cleaned == "." {
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil || !value.IsPositive() {
		return decimal.Zero, false
	}
	return value, true
}

// priceFromNumber converts a numeric document value
func priceFromNumber(n *Node) (decimal.Decimal, bool) {
	if n == nil || n.Kind != NumberNode {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(n.Number.String())
	if err != nil || !value.IsPositive() {
		return decimal.Zero, false
	}
	return value, true
}
