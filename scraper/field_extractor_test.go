package scraper

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustParse(t *testing.T, raw string) *Node {
	t.Helper()
	root, err := ParseDocument(raw)
	require.NoError(t, err)
	return root
}

func item(t *testing.T, raw string) *Node {
	t.Helper()
	return mustParse(t, raw)
}

func TestCollectProductsDeepAndDeduplicated(t *testing.T) {
	root := mustParse(t, `{
		"props": {"pageProps": {"initialData": {"searchResult": {"itemStacks": [{
			"items": [
				{"__typename": "Product", "id": "A1", "name": "Milk 2L", "priceInfo": {"currentPrice": {"price": 3.98}}},
				{"__typename": "Product", "id": "B2", "name": "Milk 4L", "priceInfo": {"currentPrice": {"price": 6.97}}}
			]
		}]}}},
		"apollo": {"deep": {"deeper": {"deepest": [
			{"__typename": "Product", "id": "A1", "name": "Milk 2L duplicate", "price": 1.00},
			{"title": "Bread", "regularPrice": "2.49"},
			{"name": "Banner", "link": "/promo"}
		]}}}
	}}`)

	items := CollectProducts(root)
	require.Len(t, items, 3)

	var names []string
	for _, it := range items {
		name, _ := itemName(it)
		names = append(names, name)
	}
	assert.Equal(t, []string{"Milk 2L", "Milk 4L", "Bread"}, names)
}

func TestCollectProductsKeepsNestedProducts(t *testing.T) {
	root := mustParse(t, `{"bundle": {"__typename": "Product", "sku": "1", "name": "Bundle", "price": 10,
		"contains": [{"__typename": "SellableProduct", "sku": "2", "name": "Inner", "price": 5}]}}`)
	assert.Len(t, CollectProducts(root), 2)
}

func TestPriceRuleOrder(t *testing.T) {
	fe := NewFieldExtractor("test", zap.NewNop())

	tests := []struct {
		name  string
		raw   string
		price string
		rule  string
	}{
		{"pricing container current", `{"name": "a", "pricing": {"regular": "$5.00", "current": "$3.98"}}`, "3.98", "pricing_container"},
		{"nested one level", `{"name": "a", "priceInfo": {"currentPrice": {"price": 3.98, "priceString": "$3.98"}}}`, "3.98", "pricing_container"},
		{"offers list", `{"name": "a", "offers": [{"price": "1,299.00"}]}`, "1299", "offers"},
		{"top level string", `{"name": "a", "sellingPrice": "$2.49"}`, "2.49", "top_level"},
		{"container before top level", `{"name": "a", "prices": {"sale": 1.50}, "salePrice": 9.99}`, "1.5", "pricing_container"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, diag, ok := fe.ExtractItem(item(t, tt.raw))
			require.True(t, ok)
			require.True(t, rec.Price.Valid)
			assert.True(t, rec.Price.Decimal.Equal(decimal.RequireFromString(tt.price)), "got %s", rec.Price.Decimal)
			assert.Equal(t, tt.rule, diag.PriceRule)
		})
	}
}

func TestPriceAbsentWhenUnparseable(t *testing.T) {
	fe := NewFieldExtractor("test", nil)
	rec, _, ok := fe.ExtractItem(item(t, `{"name": "a", "price": "see store"}`))
	require.True(t, ok)
	assert.False(t, rec.Price.Valid)
}

func TestPriceObjectRecursesOnlyOneLevel(t *testing.T) {
	fe := NewFieldExtractor("test", nil)
	rec, _, ok := fe.ExtractItem(item(t, `{"name": "a", "price": {"current": {"value": {"amount": 3}}}}`))
	require.True(t, ok)
	assert.False(t, rec.Price.Valid)
}

func TestAvailabilityRulePriority(t *testing.T) {
	fe := NewFieldExtractor("test", nil)

	tests := []struct {
		name      string
		raw       string
		available bool
		rule      string
	}{
		{"out of stock flag beats add to cart", `{"name": "a", "isOutOfStock": true, "canAddToCart": true, "price": 1}`, false, "out_of_stock_flag"},
		{"add to cart flag", `{"name": "a", "canAddToCart": true}`, true, "purchasable_flag"},
		{"status vocabulary", `{"name": "a", "availabilityStatus": "in_stock"}`, true, "status"},
		{"inventory count", `{"name": "a", "inventory": {"availableQuantity": "12"}}`, true, "inventory_count"},
		{"offers availability", `{"name": "a", "offers": [{"availability": "InStock"}]}`, true, "offers_fulfillment"},
		{"fulfillment flag", `{"name": "a", "fulfillment": {"isFulfillable": true}}`, true, "offers_fulfillment"},
		{"message phrase", `{"name": "a", "availabilityMessage": "Available online"}`, true, "availability_text"},
		{"message negative", `{"name": "a", "availabilityMessage": "Currently unavailable"}`, false, "default_unavailable"},
		{"priced default", `{"name": "a", "price": 2.00}`, true, "priced_default"},
		{"priced but sold out", `{"name": "a", "price": 2.00, "inventoryStatus": "SOLD_OUT"}`, false, "default_unavailable"},
		{"nothing", `{"name": "a"}`, false, "default_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, diag, ok := fe.ExtractItem(item(t, tt.raw))
			require.True(t, ok)
			assert.Equal(t, tt.available, rec.Available)
			assert.Equal(t, tt.rule, diag.AvailabilityRule)
		})
	}
}

func TestUnitPriceAndQuantity(t *testing.T) {
	fe := NewFieldExtractor("test", nil)

	rec, _, ok := fe.ExtractItem(item(t, `{"name": "Milk", "priceInfo": {"unitPrice": {"priceString": "$0.20/100ml"}}, "packageSizing": "2 L"}`))
	require.True(t, ok)
	assert.Equal(t, "$0.20/100ml", rec.UnitPriceText)
	assert.Equal(t, "2 L", rec.QuantityText)

	rec, _, ok = fe.ExtractItem(item(t, `{"name": "Natrel Milk 4L Jug", "comparisonPrice": "$0.17/100ml"}`))
	require.True(t, ok)
	assert.Equal(t, "$0.17/100ml", rec.UnitPriceText)
	assert.Equal(t, "4L", rec.QuantityText)

	rec, _, ok = fe.ExtractItem(item(t, `{"name": "Lemons"}`))
	require.True(t, ok)
	assert.Empty(t, rec.QuantityText)
	assert.Empty(t, rec.UnitPriceText)
}

func TestExtractSkipsNamelessNodes(t *testing.T) {
	fe := NewFieldExtractor("walmart", nil)
	root := mustParse(t, `{"items": [{"__typename": "Product", "id": "1", "price": 2}, {"__typename": "Product", "id": "2", "name": "Eggs", "price": 3.5}]}`)

	records := fe.Extract(root)
	require.Len(t, records, 1)
	assert.Equal(t, "Eggs", records[0].Name)
	assert.Equal(t, "walmart", records[0].SourceRetailer)
}

func TestExtractKeepsFullRecordAfterNamelessStub(t *testing.T) {
	fe := NewFieldExtractor("walmart", nil)
	root := mustParse(t, `{
		"refs": [{"__typename": "Product", "id": "123"}],
		"results": [{"__typename": "Product", "id": "123", "name": "2% Milk", "price": 3.98}]
	}`)

	records := fe.Extract(root)
	require.Len(t, records, 1)
	assert.Equal(t, "2% Milk", records[0].Name)
	assert.True(t, records[0].Price.Decimal.Equal(decimal.RequireFromString("3.98")))
}

func TestCustomPriceRules(t *testing.T) {
	fe := NewFieldExtractor("test", nil).WithPriceRules([]PriceRule{{
		Name: "member_price",
		Extract: func(item *Node) (decimal.Decimal, bool) {
			return priceValue(item.Get("memberPrice"), 0)
		},
	}})

	rec, diag, ok := fe.ExtractItem(item(t, `{"name": "a", "price": 5, "memberPrice": 4}`))
	require.True(t, ok)
	assert.True(t, rec.Price.Decimal.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "member_price", diag.PriceRule)
}
