package scraper

import (
	"smartcart/models"

	"go.uber.org/zap"
)

// FieldExtractor turns an embedded data document into product records
type FieldExtractor struct {
	retailer          string
	priceRules        []PriceRule
	unitPriceRules    []TextRule
	quantityRules     []TextRule
	availabilityRules []AvailabilityRule
	logger            *zap.Logger
}

// ItemDiagnostics names the rules that produced each field of one record
type ItemDiagnostics struct {
	Identifier       string
	PriceRule        string
	UnitPriceRule    string
	QuantityRule     string
	AvailabilityRule string
}

// NewFieldExtractor creates an extractor with the default rule chains
func NewFieldExtractor(retailer string, logger *zap.Logger) *FieldExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldExtractor{
		retailer:          retailer,
		priceRules:        DefaultPriceRules(),
		unitPriceRules:    DefaultUnitPriceRules(),
		quantityRules:     DefaultQuantityRules(),
		availabilityRules: DefaultAvailabilityRules(),
		logger:            logger,
	}
}

// WithPriceRules replaces the price chain. A nil or empty chain keeps the current one.
func (fe *FieldExtractor) WithPriceRules(rules []PriceRule) *FieldExtractor {
	if len(rules) > 0 {
		fe.priceRules = rules
	}
	return fe
}

// WithAvailabilityRules replaces the availability chain
func (fe *FieldExtractor) WithAvailabilityRules(rules []AvailabilityRule) *FieldExtractor {
	if len(rules) > 0 {
		fe.availabilityRules = rules
	}
	return fe
}

// CollectProducts returns every named product-like node under root in
// traversal order, keeping the first node seen for each identifier.
// Nameless reference stubs never claim an identifier.
func CollectProducts(root *Node) []*Node {
	var items []*Node
	seen := make(map[string]bool)

	root.Walk(func(n *Node) bool {
		if !isProductLike(n) {
			return true
		}
		if _, named := itemName(n); !named {
			return true
		}
		id, ok := itemIdentifier(n)
		if !ok || seen[id] {
			return true
		}
		seen[id] = true
		items = append(items, n)
		return true
	})

	return items
}

// Extract returns one record per distinct product-like node
func (fe *FieldExtractor) Extract(root *Node) []models.ProductRecord {
	items := CollectProducts(root)
	records := make([]models.ProductRecord, 0, len(items))

	for _, item := range items {
		record, diag, ok := fe.ExtractItem(item)
		if !ok {
			continue
		}
		fe.logger.Debug("Extracted product",
			zap.String("retailer", fe.retailer),
			zap.String("id", diag.Identifier),
			zap.String("name", record.Name),
			zap.String("price", record.Price.Decimal.String()),
			zap.Bool("priced", record.Price.Valid),
			zap.String("price_rule", diag.PriceRule),
			zap.String("availability_rule", diag.AvailabilityRule),
			zap.Bool("available", record.Available),
			zap.String("quantity", record.QuantityText),
		)
		records = append(records, record)
	}

	fe.logger.Debug("Extraction finished",
		zap.String("retailer", fe.retailer),
		zap.Int("candidates", len(items)),
		zap.Int("records", len(records)),
	)
	return records
}

// ExtractItem builds a record from a single product-like node. It returns
// false when the node has no usable name.
func (fe *FieldExtractor) ExtractItem(item *Node) (models.ProductRecord, ItemDiagnostics, bool) {
	var diag ItemDiagnostics

	name, ok := itemName(item)
	if !ok {
		return models.ProductRecord{}, diag, false
	}
	diag.Identifier, _ = itemIdentifier(item)

	record := models.ProductRecord{
		Name:           name,
		SourceRetailer: fe.retailer,
	}

	if price, rule, ok := firstMatch(fe.priceRules, item); ok {
		record.Price = models.NewPrice(price)
		diag.PriceRule = rule
	}
	if text, rule, ok := firstMatch(fe.unitPriceRules, item); ok {
		record.UnitPriceText = text
		diag.UnitPriceRule = rule
	}
	if text, rule, ok := firstMatch(fe.quantityRules, item); ok {
		record.QuantityText = text
		diag.QuantityRule = rule
	}
	record.Available, diag.AvailabilityRule = decideAvailability(fe.availabilityRules, item, record.Price.Valid)

	return record, diag, true
}
