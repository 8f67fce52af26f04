package pricing

import (
	"testing"

	"smartcart/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"2%", "milk"}, Tokenize("2%Milk"))
	assert.Equal(t, []string{"orange", "juice"}, Tokenize("  Orange  JUICE orange "))
	assert.Empty(t, Tokenize("   "))
}

func TestIsRelevant(t *testing.T) {
	r := NewRanker(10, nil)

	tests := []struct {
		name  string
		query string
		rec   models.ProductRecord
		want  bool
	}{
		{"all tokens present", "orange juice", models.ProductRecord{Name: "Tropicana Orange Juice"}, true},
		{"one of two tokens", "orange juice", models.ProductRecord{Name: "Florida Orange"}, false},
		{"single token query", "milk", models.ProductRecord{Name: "Natrel 2% Milk"}, true},
		{"negative term rejects", "chocolate eggs", models.ProductRecord{Name: "Easter Chocolate Eggs"}, false},
		{"negative term in quantity", "eggs", models.ProductRecord{Name: "Large Eggs", QuantityText: "toy bundle"}, false},
		{"token in unit price text", "toilet paper roll", models.ProductRecord{Name: "Cashmere Toilet Paper", UnitPriceText: "$0.50/1roll"}, true},
		{"empty query", "", models.ProductRecord{Name: "Milk"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsRelevant(tt.query, tt.rec))
		})
	}
}

func TestFilterAndRank(t *testing.T) {
	r := NewRanker(3, nil)
	input := []models.ProductRecord{
		priced("Large Eggs Unpriced", "", "12 Count"),
		priced("Large Eggs Dozen", "4.29", "12 Count"),
		priced("Easter Eggs Large", "1.00", ""),
		priced("Large Brown Eggs", "3.99", "12 Count"),
		priced("Large Free Run Eggs", "4.29", "12 Count"),
		priced("Large Omega Eggs", "5.49", "12 Count"),
	}

	ranked := r.FilterAndRank("large eggs", input)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Large Brown Eggs", ranked[0].Name)
	assert.Equal(t, "Large Eggs Dozen", ranked[1].Name, "stable for equal prices")
	assert.Equal(t, "Large Free Run Eggs", ranked[2].Name)
	for _, rec := range ranked {
		assert.NotNil(t, rec.UnitPrice, rec.Name)
		assert.Equal(t, "$", rec.DisplayString[:1])
	}
	assert.Nil(t, input[1].UnitPrice, "input must not be mutated")
}

func TestFilterAndRankPutsUnpricedLast(t *testing.T) {
	r := NewRanker(10, nil)
	ranked := r.FilterAndRank("milk", []models.ProductRecord{
		priced("Milk Unpriced", "", "4 L"),
		priced("Milk 4L", "7.00", "4 L"),
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "Milk 4L", ranked[0].Name)
	assert.False(t, ranked[1].Price.Valid)
}
