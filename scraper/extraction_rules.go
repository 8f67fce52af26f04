package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Rule is one named step of an ordered extraction chain. The first rule
// that yields a value wins.
type Rule[T any] struct {
	Name    string
	Extract func(item *Node) (T, bool)
}

// PriceRule extracts a price from a product-like node
type PriceRule = Rule[decimal.Decimal]

// TextRule extracts a string field from a product-like node
type TextRule = Rule[string]

// AvailabilityRule decides availability, or declines with fired=false.
// priced tells whether the price chain found a value for the same item.
type AvailabilityRule struct {
	Name   string
	Decide func(item *Node, priced bool) (available bool, fired bool)
}

func firstMatch[T any](rules []Rule[T], item *Node) (T, string, bool) {
	for _, rule := range rules {
		if value, ok := rule.Extract(item); ok {
			return value, rule.Name, true
		}
	}
	var zero T
	return zero, "", false
}

var (
	productTypeNames = []string{"Product", "SellableProduct"}
	priceShapedKeys  = []string{"price", "pricing", "prices", "regularPrice"}
	identifierKeys   = []string{"sku", "id", "productId", "code", "gtin", "upc"}

	pricingContainerKeys = []string{"pricing", "price", "prices", "priceInfo"}
	pricingValueKeys     = []string{
		"current", "currentPrice",
		"sale", "salePrice",
		"regular", "regularPrice",
		"list", "linePrice",
		"price", "amount", "value", "priceValue", "priceString",
	}
	offerContainerKeys = []string{"offers", "offer"}
	offerPriceKeys     = []string{"price", "priceString", "amount"}
	topLevelPriceKeys  = []string{"price", "regularPrice", "salePrice", "sellingPrice", "productPrice"}

	unitPriceKeys        = []string{"unitPrice", "comparisonPrice", "pricePerUnit", "pricePer", "unit"}
	topLevelUnitKeys     = []string{"unitPrice", "comparisonPrice", "pricePerUnit", "pricePer"}
	nestedUnitPriceKeys  = []string{"priceString", "price", "value"}
	quantityKeys         = []string{"packageSizing", "size", "quantity", "format", "packaging", "unitQuantity", "volumePrice"}
	purchasableFlagKeys  = []string{"canAddToCart", "showAtc", "showBuyNow", "buyable", "sellable", "isInStock", "isAvailable", "available"}
	statusKeys           = []string{"availabilityStatus", "inventoryStatus"}
	inventoryKeys        = []string{"inventory", "inventoryInfo", "inStoreAvailability"}
	inventoryCountKeys   = []string{"availableQuantity", "quantity", "stock", "available"}
	fulfillmentKeys      = []string{"fulfillment", "fulfillmentInfo", "fulfillmentOptions"}
	availabilityTextKeys = []string{"availabilityMessage", "availabilityText", "availability"}

	inStockStatuses = map[string]bool{
		"IN_STOCK": true, "INSTOCK": true, "AVAILABLE": true,
		"IN_STORE": true, "IN_STORE_ONLY": true, "IN_STOCK_ONLINE": true,
	}
	outOfStockStatuses = map[string]bool{
		"OUT_OF_STOCK": true, "SOLD_OUT": true, "UNAVAILABLE": true, "COMING_SOON": true,
	}

	positiveAvailabilityText = regexp.MustCompile(`(?i)\b(in stock|available online|available|add to cart)\b`)
	negativeAvailabilityText = regexp.MustCompile(`(?i)\b(out of stock|not available|unavailable|sold out|coming soon)\b`)

	nameQuantityPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:ML|L|kg|g|oz|lb|pack|count|piece|ct|rolls?))\b`)
)

// priceValue reads a number, a currency string or, at depth zero, an
// object carrying one of the nested price keys.
func priceValue(n *Node, depth int) (decimal.Decimal, bool) {
	if n == nil {
		return decimal.Zero, false
	}
	switch n.Kind {
	case NumberNode:
		return priceFromNumber(n)
	case StringNode:
		return ParseCurrency(n.Text)
	case MapNode:
		if depth > 0 {
			return decimal.Zero, false
		}
		for _, key := range pricingValueKeys {
			if v, ok := priceValue(n.Get(key), depth+1); ok {
				return v, true
			}
		}
	}
	return decimal.Zero, false
}

// firstOffer returns the offers object, or the first element of an offers list
func firstOffer(item *Node) *Node {
	for _, key := range offerContainerKeys {
		offers := item.Get(key)
		switch {
		case offers.IsMap():
			return offers
		case offers.IsList() && len(offers.Items) > 0:
			if offers.Items[0].IsMap() {
				return offers.Items[0]
			}
			return nil
		}
	}
	return nil
}

// DefaultPriceRules is the price chain used when a retailer profile supplies none
func DefaultPriceRules() []PriceRule {
	return []PriceRule{
		{
			Name: "pricing_container",
			Extract: func(item *Node) (decimal.Decimal, bool) {
				for _, containerKey := range pricingContainerKeys {
					container := item.Get(containerKey)
					if !container.IsMap() {
						continue
					}
					for _, key := range pricingValueKeys {
						if v, ok := priceValue(container.Get(key), 0); ok {
							return v, true
						}
					}
				}
				return decimal.Zero, false
			},
		},
		{
			Name: "offers",
			Extract: func(item *Node) (decimal.Decimal, bool) {
				offer := firstOffer(item)
				for _, key := range offerPriceKeys {
					if v, ok := priceValue(offer.Get(key), 0); ok {
						return v, true
					}
				}
				return decimal.Zero, false
			},
		},
		{
			Name: "top_level",
			Extract: func(item *Node) (decimal.Decimal, bool) {
				for _, key := range topLevelPriceKeys {
					if v, ok := priceValue(item.Get(key), 0); ok {
						return v, true
					}
				}
				return decimal.Zero, false
			},
		},
	}
}

// unitPriceText reads a string, or the price string of a nested unit price object
func unitPriceText(n *Node) (string, bool) {
	if s, ok := n.TextValue(); ok {
		return s, true
	}
	if n.IsMap() {
		for _, key := range nestedUnitPriceKeys {
			if s, ok := n.Get(key).TextValue(); ok {
				return s, true
			}
		}
	}
	return "", false
}

// DefaultUnitPriceRules is the chain for the retailer's own unit price text
func DefaultUnitPriceRules() []TextRule {
	return []TextRule{
		{
			Name: "pricing_container",
			Extract: func(item *Node) (string, bool) {
				for _, containerKey := range pricingContainerKeys {
					container := item.Get(containerKey)
					if !container.IsMap() {
						continue
					}
					for _, key := range unitPriceKeys {
						if s, ok := unitPriceText(container.Get(key)); ok {
							return s, true
						}
					}
				}
				return "", false
			},
		},
		{
			Name: "top_level",
			Extract: func(item *Node) (string, bool) {
				for _, key := range topLevelUnitKeys {
					if s, ok := unitPriceText(item.Get(key)); ok {
						return s, true
					}
				}
				return "", false
			},
		},
	}
}

// DefaultQuantityRules is the chain for the package size text
func DefaultQuantityRules() []TextRule {
	return []TextRule{
		{
			Name: "quantity_field",
			Extract: func(item *Node) (string, bool) {
				for _, key := range quantityKeys {
					if s, ok := item.Get(key).TextValue(); ok {
						return s, true
					}
				}
				return "", false
			},
		},
		{
			Name: "name_pattern",
			Extract: func(item *Node) (string, bool) {
				name, ok := itemName(item)
				if !ok {
					return "", false
				}
				if m := nameQuantityPattern.FindStringSubmatch(name); m != nil {
					return strings.TrimSpace(m[1]), true
				}
				return "", false
			},
		},
	}
}

func statusOf(n *Node, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := n.Get(key).TextValue(); ok {
			return strings.ToUpper(s), true
		}
	}
	return "", false
}

func positiveCount(n *Node) bool {
	switch {
	case n == nil:
		return false
	case n.Kind == NumberNode:
		f, err := n.Number.Float64()
		return err == nil && f > 0
	case n.Kind == StringNode:
		v, err := strconv.Atoi(strings.TrimSpace(n.Text))
		return err == nil && v > 0
	}
	return false
}

// DefaultAvailabilityRules is the availability chain in strict priority order
func DefaultAvailabilityRules() []AvailabilityRule {
	return []AvailabilityRule{
		{
			Name: "out_of_stock_flag",
			Decide: func(item *Node, _ bool) (bool, bool) {
				if item.Get("isOutOfStock").IsTrue() {
					return false, true
				}
				return false, false
			},
		},
		{
			Name: "purchasable_flag",
			Decide: func(item *Node, _ bool) (bool, bool) {
				for _, key := range purchasableFlagKeys {
					if item.Get(key).IsTrue() {
						return true, true
					}
				}
				return false, false
			},
		},
		{
			Name: "status",
			Decide: func(item *Node, _ bool) (bool, bool) {
				if status, ok := statusOf(item, statusKeys); ok && inStockStatuses[status] {
					return true, true
				}
				return false, false
			},
		},
		{
			Name: "inventory_count",
			Decide: func(item *Node, _ bool) (bool, bool) {
				for _, key := range inventoryKeys {
					inv := item.Get(key)
					if !inv.IsMap() {
						continue
					}
					for _, countKey := range inventoryCountKeys {
						if positiveCount(inv.Get(countKey)) {
							return true, true
						}
					}
				}
				return false, false
			},
		},
		{
			Name: "offers_fulfillment",
			Decide: func(item *Node, _ bool) (bool, bool) {
				if offer := firstOffer(item); offer != nil {
					if status, ok := statusOf(offer, []string{"availability", "availabilityStatus"}); ok && inStockStatuses[status] {
						return true, true
					}
					if offer.Get("isAvailable").IsTrue() {
						return true, true
					}
				}
				for _, key := range fulfillmentKeys {
					f := item.Get(key)
					if f.Get("isAvailable").IsTrue() || f.Get("isFulfillable").IsTrue() {
						return true, true
					}
				}
				return false, false
			},
		},
		{
			Name: "availability_text",
			Decide: func(item *Node, _ bool) (bool, bool) {
				for _, key := range availabilityTextKeys {
					msg, ok := item.Get(key).TextValue()
					if !ok {
						continue
					}
					if positiveAvailabilityText.MatchString(msg) && !negativeAvailabilityText.MatchString(msg) {
						return true, true
					}
					return false, false
				}
				return false, false
			},
		},
		{
			Name: "priced_default",
			Decide: func(item *Node, priced bool) (bool, bool) {
				if !priced {
					return false, false
				}
				if status, ok := statusOf(item, statusKeys); ok && outOfStockStatuses[status] {
					return false, false
				}
				return true, true
			},
		},
	}
}

func decideAvailability(rules []AvailabilityRule, item *Node, priced bool) (bool, string) {
	for _, rule := range rules {
		if available, fired := rule.Decide(item, priced); fired {
			return available, rule.Name
		}
	}
	return false, "default_unavailable"
}

// isProductLike reports whether a map node describes a product listing
func isProductLike(n *Node) bool {
	if !n.IsMap() {
		return false
	}
	if typename, ok := n.Get("__typename").TextValue(); ok {
		for _, name := range productTypeNames {
			if typename == name {
				return true
			}
		}
	}
	if _, ok := itemName(n); !ok {
		return false
	}
	for _, key := range priceShapedKeys {
		if n.Has(key) {
			return true
		}
	}
	return false
}

func itemName(n *Node) (string, bool) {
	if name, ok := n.Get("name").TextValue(); ok {
		return name, true
	}
	return n.Get("title").TextValue()
}

// itemIdentifier returns the dedup key of a product-like node
func itemIdentifier(n *Node) (string, bool) {
	for _, key := range identifierKeys {
		v := n.Get(key)
		if !v.Present() {
			continue
		}
		switch v.Kind {
		case StringNode:
			return strings.TrimSpace(v.Text), true
		case NumberNode:
			return v.Number.String(), true
		}
	}
	if name, ok := itemName(n); ok {
		return name, true
	}
	return "", false
}
