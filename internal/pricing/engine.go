package pricing

import (
	"github.com/shopspring/decimal"
)

// CatalogItem is the read-only product data a sale line is priced from.
type CatalogItem struct {
	UnitPrice   Money       `json:"unitPrice"`
	TaxCategory TaxCategory `json:"taxCategory"`
	Stock       int         `json:"stock"`
}

// LineItem is the priced projection of (item, quantity, discount). It is
// rebuilt, never mutated, whenever quantity or discount change.
type LineItem struct {
	Item            CatalogItem `json:"item"`
	Quantity        int         `json:"quantity"`
	DiscountPercent Money       `json:"discountPercent"`
	Subtotal        Money       `json:"subtotal"`
	DiscountAmount  Money       `json:"discountAmount"`
	TaxAmount       Money       `json:"taxAmount"`
	LineTotal       Money       `json:"lineTotal"`
}

// NetOfDiscount returns the taxable base of the line.
func (l LineItem) NetOfDiscount() Money {
	return l.Subtotal.Sub(l.DiscountAmount)
}

// CartTotals aggregates a list of priced lines.
type CartTotals struct {
	Subtotal         Money `json:"subtotal"`
	Discount         Money `json:"discount"`
	Tax              Money `json:"tax"`
	Total            Money `json:"total"`
	Advance          Money `json:"advance"`
	RemainingBalance Money `json:"remainingBalance"`
}

// Bases splits the net-of-discount amounts by tax category, as reported on
// fiscal documents (gravada / exonerada / inafecta / exportación).
type Bases struct {
	Taxed      Money `json:"taxed"`
	Exempt     Money `json:"exempt"`
	Unaffected Money `json:"unaffected"`
	Export     Money `json:"export"`
}

// Pricer computes line and cart amounts for a fixed IGV rate.
type Pricer struct {
	rate Money
}

// New constructs a Pricer applying rate (0.18 for 18%) to taxed lines.
func New(rate Money) (*Pricer, error) {
	if err := CheckAmount("igvRate", rate); err != nil {
		return nil, err
	}
	if rate.IsNegative() {
		return nil, invalid("igvRate", "must not be negative, got %s", rate)
	}
	return &Pricer{rate: rate}, nil
}

// Default returns a Pricer using DefaultIGVRate.
func Default() *Pricer {
	return &Pricer{rate: DefaultIGVRate}
}

// Rate returns the IGV rate applied by p.
func (p *Pricer) Rate() Money {
	if p == nil {
		return DefaultIGVRate
	}
	return p.rate
}

// ComputeLine prices quantity units of item with a percentage discount in [0, 100].
// Out-of-contract input is rejected with a *ValidationError; nothing is clamped.
func (p *Pricer) ComputeLine(item CatalogItem, quantity int, discountPercent Money) (LineItem, error) {
	if quantity < 1 {
		return LineItem{}, invalid("quantity", "must be a positive integer, got %d", quantity)
	}
	if err := CheckAmount("discountPercent", discountPercent); err != nil {
		return LineItem{}, err
	}
	if err := CheckAmount("unitPrice", item.UnitPrice); err != nil {
		return LineItem{}, err
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return LineItem{}, invalid("discountPercent", "must be between 0 and 100, got %s", discountPercent)
	}
	if item.UnitPrice.IsNegative() {
		return LineItem{}, invalid("unitPrice", "must not be negative, got %s", item.UnitPrice)
	}
	if !item.TaxCategory.Valid() {
		return LineItem{}, invalid("taxCategory", "unknown category %q", string(item.TaxCategory))
	}

	subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	// Shift is exact; Div would truncate at DivisionPrecision.
	discount := subtotal.Mul(discountPercent.Shift(-2))
	net := subtotal.Sub(discount)
	tax := decimal.Zero
	if item.TaxCategory == Taxed {
		tax = net.Mul(p.Rate())
	}
	return LineItem{
		Item:            item,
		Quantity:        quantity,
		DiscountPercent: discountPercent,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		TaxAmount:       tax,
		LineTotal:       net.Add(tax),
	}, nil
}

// Aggregate sums lines into cart totals. The remaining balance is the plain
// difference total - advancePaid and may be negative when the caller skipped
// CheckAdvance.
func Aggregate(lines []LineItem, advancePaid Money) CartTotals {
	totals := CartTotals{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
		Total:    decimal.Zero,
		Advance:  advancePaid,
	}
	for _, line := range lines {
		totals.Subtotal = totals.Subtotal.Add(line.Subtotal)
		totals.Discount = totals.Discount.Add(line.DiscountAmount)
		totals.Tax = totals.Tax.Add(line.TaxAmount)
		totals.Total = totals.Total.Add(line.LineTotal)
	}
	totals.RemainingBalance = totals.Total.Sub(advancePaid)
	return totals
}

// ByCategory accumulates each line's net-of-discount amount under its tax category.
func ByCategory(lines []LineItem) Bases {
	bases := Bases{
		Taxed:      decimal.Zero,
		Exempt:     decimal.Zero,
		Unaffected: decimal.Zero,
		Export:     decimal.Zero,
	}
	for _, line := range lines {
		net := line.NetOfDiscount()
		switch line.Item.TaxCategory {
		case Taxed:
			bases.Taxed = bases.Taxed.Add(net)
		case Exempt:
			bases.Exempt = bases.Exempt.Add(net)
		case Unaffected:
			bases.Unaffected = bases.Unaffected.Add(net)
		case Export:
			bases.Export = bases.Export.Add(net)
		}
	}
	return bases
}

// CheckQuantity enforces the cart adjustment contract 1 <= quantity <= stock.
func CheckQuantity(quantity, stock int) error {
	if quantity < 1 {
		return invalid("quantity", "must be at least 1, got %d", quantity)
	}
	if quantity > stock {
		return invalid("quantity", "exceeds available stock %d, got %d", stock, quantity)
	}
	return nil
}

// CheckAdvance enforces 0 <= advance <= total before Aggregate is trusted for a balance.
func CheckAdvance(advance, total Money) error {
	if err := CheckAmount("advance", advance); err != nil {
		return err
	}
	if advance.IsNegative() {
		return invalid("advance", "must not be negative, got %s", advance)
	}
	if advance.GreaterThan(total) {
		return invalid("advance", "exceeds sale total %s, got %s", Display(total), advance)
	}
	return nil
}
