package pricing

import (
	"sort"

	"smartcart/models"

	"github.com/shopspring/decimal"
)

type candidate struct {
	retailer string
	rank     int
	record   models.ProductRecord
	key      decimal.Decimal
}

// CompareAcrossRetailers picks the single cheapest option for a query.
// Normalized unit prices are compared when any priced record has one;
// otherwise total prices are. Available records always beat unavailable
// ones. Returns nil when no retailer has a priced record.
func CompareAcrossRetailers(query string, results models.QueryResultSet) *models.ComparisonOutcome {
	var priced, normalized []candidate

	for _, retailer := range results.Retailers() {
		for rank, rec := range results[retailer] {
			if !rec.Price.Valid {
				continue
			}
			c := candidate{retailer: retailer, rank: rank, record: rec, key: rec.Price.Decimal}
			priced = append(priced, c)
			if rec.HasNormalizedUnitPrice() {
				c.key = rec.UnitPrice.AmountPerUnit
				normalized = append(normalized, c)
			}
		}
	}

	pool, basis := priced, models.BasisTotalPrice
	if len(normalized) > 0 {
		pool, basis = normalized, models.BasisUnitPrice
	}
	if len(pool) == 0 {
		return nil
	}

	// Candidates arrive in retailer-name then rank order, so a stable sort
	// breaks ties deterministically.
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.record.Available != b.record.Available {
			return a.record.Available
		}
		return a.key.LessThan(b.key)
	})

	best := pool[0]
	return &models.ComparisonOutcome{
		Retailer: best.retailer,
		Record:   best.record.Clone(),
		Basis:    basis,
	}
}
