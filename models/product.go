package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ProductRecord is one listing returned by one retailer for one search query
type ProductRecord struct {
	Name           string              `json:"name"`
	Price          decimal.NullDecimal `json:"price"`
	QuantityText   string              `json:"quantity,omitempty"`
	UnitPriceText  string              `json:"unit_price,omitempty"`
	Available      bool                `json:"available"`
	SourceRetailer string              `json:"retailer"`

	// Derived by unit price enrichment, absent until then.
	UnitPrice     *UnitPrice `json:"unit_price_info,omitempty"`
	DisplayString string     `json:"unit_price_display,omitempty"`
}

// UnitPrice is a price expressed per base unit of measure.
// Unit is a canonical base unit (ml, g, count) when Normalized is true,
// otherwise the literal unit found in the listing.
type UnitPrice struct {
	AmountPerUnit decimal.Decimal `json:"amount_per_unit"`
	Unit          string          `json:"unit"`
	RawAmount     decimal.Decimal `json:"raw_amount"`
	RawUnit       string          `json:"raw_unit"`
	Normalized    bool            `json:"normalized"`
	Explicit      bool            `json:"explicit"`
}

// HasPrice returns true if a price could be determined for the listing
func (p *ProductRecord) HasPrice() bool {
	return p.Price.Valid
}

// GetPrice returns the price, or zero if it is unknown
func (p *ProductRecord) GetPrice() decimal.Decimal {
	if p.Price.Valid {
		return p.Price.Decimal
	}
	return decimal.Zero
}

// HasNormalizedUnitPrice returns true if the record can be compared on a per-unit basis
func (p *ProductRecord) HasNormalizedUnitPrice() bool {
	return p.UnitPrice != nil && p.UnitPrice.Normalized
}

// WithUnitPrice returns a copy of the record carrying the given derived block.
// The receiver is left untouched.
func (p ProductRecord) WithUnitPrice(up UnitPrice, display string) ProductRecord {
	p.UnitPrice = &up
	p.DisplayString = display
	return p
}

// Clone returns a deep copy of the record
func (p ProductRecord) Clone() ProductRecord {
	if p.UnitPrice != nil {
		up := *p.UnitPrice
		p.UnitPrice = &up
	}
	return p
}

// NewPrice wraps a known price
func NewPrice(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// QueryResultSet maps a retailer name to its ranked records for one query
type QueryResultSet map[string][]ProductRecord

// Retailers returns the retailer names in sorted order
func (qs QueryResultSet) Retailers() []string {
	names := make([]string, 0, len(qs))
	for name := range qs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComparisonBasis tells whether a winner was picked on unit price or total price
type ComparisonBasis string

const (
	BasisUnitPrice  ComparisonBasis = "unit_price"
	BasisTotalPrice ComparisonBasis = "total_price"
)

// ComparisonOutcome is the single cheapest option across retailers for one query
type ComparisonOutcome struct {
	Retailer string          `json:"retailer"`
	Record   ProductRecord   `json:"product"`
	Basis    ComparisonBasis `json:"basis"`
}
