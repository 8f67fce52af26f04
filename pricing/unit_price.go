package pricing

import (
	"fmt"
	"regexp"
	"strings"

	"smartcart/models"

	"github.com/shopspring/decimal"
)

// Base units every convertible quantity is reduced to
const (
	BaseMilliliter = "ml"
	BaseGram       = "g"
	BaseCount      = "count"
)

type conversion struct {
	unit   string
	factor decimal.Decimal
	base   string
}

var (
	fluidOunce = decimal.RequireFromString("29.5735")
	pound      = decimal.RequireFromString("453.592")
	thousand   = decimal.NewFromInt(1000)
	one        = decimal.NewFromInt(1)
	hundred    = decimal.NewFromInt(100)
)

// unitConversions is consulted in order by the fuzzy fallback
var unitConversions = []conversion{
	{"ml", one, BaseMilliliter},
	{"l", thousand, BaseMilliliter},
	{"oz", fluidOunce, BaseMilliliter},
	{"fl oz", fluidOunce, BaseMilliliter},
	{"g", one, BaseGram},
	{"kg", thousand, BaseGram},
	{"lb", pound, BaseGram},
	{"lbs", pound, BaseGram},
	{"ea", one, BaseCount},
	{"count", one, BaseCount},
	{"ct", one, BaseCount},
	{"piece", one, BaseCount},
	{"roll", one, BaseCount},
	{"rolls", one, BaseCount},
}

// unitAliases maps spelled-out units onto conversion table keys
var unitAliases = map[string]string{
	"millilitre": "ml", "millilitres": "ml", "milliliter": "ml", "milliliters": "ml", "mls": "ml",
	"litre": "l", "litres": "l", "liter": "l", "liters": "l",
	"floz": "fl oz", "fl. oz": "fl oz", "fl.oz": "fl oz", "ounce": "oz", "ounces": "oz",
	"gram": "g", "grams": "g", "gr": "g", "gm": "g",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"pound": "lb", "pounds": "lb",
	"each": "ea", "counts": "count", "pieces": "piece", "pc": "piece", "pcs": "piece",
}

var (
	quantityPattern     = regexp.MustCompile(`(\d+\.?\d*)\s*([a-zA-Z\s]+?)(?:\s*,|$)`)
	explicitDollarPrice = regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)?\s*([a-z][a-z. ]*)`)
	explicitCentsPrice  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*¢\s*/\s*(\d+(?:\.\d+)?)?\s*([a-z][a-z. ]*)`)
)

const (
	internalRoundPlaces int32 = 4
	displayRoundPlaces  int32 = 2
)

func lookupUnit(unit string) (conversion, bool) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		return conversion{}, false
	}
	if alias, ok := unitAliases[unit]; ok {
		unit = alias
	}
	for _, c := range unitConversions {
		if c.unit == unit {
			return c, true
		}
	}
	// Fuzzy pass compares whole words so single-letter keys such as "l"
	// do not match inside unrelated words.
	words := strings.Fields(unit)
	for _, c := range unitConversions {
		for _, w := range words {
			if w == c.unit || unitAliases[w] == c.unit {
				return c, true
			}
		}
		if strings.Contains(" "+c.unit+" ", " "+unit+" ") {
			return c, true
		}
	}
	return conversion{}, false
}

// ParseQuantity reads a package size such as "2 L" or "500 g, $0.40/100g"
// into a positive amount and a lower-case unit.
func ParseQuantity(text string) (decimal.Decimal, string, bool) {
	m := quantityPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return decimal.Zero, "", false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, "", false
	}
	unit := strings.ToLower(strings.TrimSpace(m[2]))
	if unit == "" {
		return decimal.Zero, "", false
	}
	return amount, unit, true
}

// ParseExplicitUnitPrice reads a retailer-stated unit price such as
// "$0.86/100ml", "$2.20/kg" or "28.0¢/100ml".
func ParseExplicitUnitPrice(text string) (models.UnitPrice, bool) {
	text = strings.ToLower(text)

	m := explicitDollarPrice.FindStringSubmatch(text)
	cents := false
	if m == nil {
		m = explicitCentsPrice.FindStringSubmatch(text)
		cents = true
	}
	if m == nil {
		return models.UnitPrice{}, false
	}

	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return models.UnitPrice{}, false
	}
	if cents {
		amount = amount.Shift(-2)
	}
	per := one
	if m[2] != "" {
		if per, err = decimal.NewFromString(m[2]); err != nil || !per.IsPositive() {
			return models.UnitPrice{}, false
		}
	}
	unit := strings.TrimRight(strings.TrimSpace(m[3]), ".")
	if unit == "" {
		return models.UnitPrice{}, false
	}

	perUnit := amount.Div(per)
	up := models.UnitPrice{
		AmountPerUnit: perUnit,
		Unit:          unit,
		RawAmount:     amount.Round(internalRoundPlaces),
		RawUnit:       per.String() + unit,
		Explicit:      true,
	}
	if c, ok := lookupUnit(unit); ok {
		up.AmountPerUnit = perUnit.Div(c.factor)
		up.Unit = c.base
		up.Normalized = true
	}
	return up, true
}

// ComputeUnitPrice derives a unit price from a total price and package size.
// Quantities in units outside the conversion table yield a count-based,
// non-normalized price tagged with the literal unit.
func ComputeUnitPrice(price, amount decimal.Decimal, unit string) (models.UnitPrice, bool) {
	if !amount.IsPositive() || price.IsNegative() {
		return models.UnitPrice{}, false
	}

	raw := price.Div(amount)
	c, ok := lookupUnit(unit)
	if !ok {
		return models.UnitPrice{
			AmountPerUnit: raw.Round(internalRoundPlaces),
			Unit:          unit,
			RawAmount:     raw.Round(internalRoundPlaces),
			RawUnit:       unit,
		}, true
	}

	return models.UnitPrice{
		AmountPerUnit: price.Div(amount.Mul(c.factor)),
		Unit:          c.base,
		RawAmount:     raw.Round(internalRoundPlaces),
		RawUnit:       c.unit,
		Normalized:    true,
	}, true
}

// Normalizer derives unit prices and display strings for product records
type Normalizer struct {
	categories []Category
}

// NewNormalizer creates a normalizer using the default product categories
func NewNormalizer() *Normalizer {
	return &Normalizer{categories: DefaultCategories()}
}

// UnitPriceFor returns the unit price of a record. Retailer-stated unit price
// text is authoritative; otherwise it is computed from price and quantity.
func (n *Normalizer) UnitPriceFor(rec models.ProductRecord) (models.UnitPrice, bool) {
	for _, text := range []string{rec.UnitPriceText, rec.QuantityText} {
		if text == "" {
			continue
		}
		if up, ok := ParseExplicitUnitPrice(text); ok {
			return up, true
		}
	}

	if !rec.Price.Valid {
		return models.UnitPrice{}, false
	}
	amount, unit, ok := ParseQuantity(rec.QuantityText)
	if !ok {
		return models.UnitPrice{}, false
	}
	return ComputeUnitPrice(rec.Price.Decimal, amount, unit)
}

// Display formats a unit price for a product name, choosing the display
// unit from the product's category.
func (n *Normalizer) Display(name string, up models.UnitPrice) string {
	if !up.Normalized {
		if up.Explicit {
			return fmt.Sprintf("$%s/%s", up.RawAmount.StringFixed(displayRoundPlaces), up.RawUnit)
		}
		return fmt.Sprintf("$%s/1%s", up.AmountPerUnit.StringFixed(displayRoundPlaces), up.Unit)
	}

	displayUnit := naturalDisplayUnit(up.Unit)
	if cat, ok := n.Categorize(name); ok && cat.Base == up.Unit {
		displayUnit = cat.DisplayUnit
	}

	var amount decimal.Decimal
	switch displayUnit {
	case Per100ml, Per100g:
		amount = up.AmountPerUnit.Mul(hundred)
	case PerPound:
		amount = up.AmountPerUnit.Mul(pound)
	default:
		amount = up.AmountPerUnit
	}
	return fmt.Sprintf("$%s/%s", amount.StringFixed(displayRoundPlaces), displayUnit)
}

// Enrich returns a copy of the record carrying its unit price and display
// string. Records without a derivable unit price are returned unchanged.
// Only the record's own source fields are read, so enriching twice gives
// the same result as enriching once.
func (n *Normalizer) Enrich(rec models.ProductRecord) models.ProductRecord {
	up, ok := n.UnitPriceFor(rec)
	if !ok {
		return rec.Clone()
	}
	return rec.WithUnitPrice(up, n.Display(rec.Name, up))
}
