package pricing_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/optica-pos/internal/pricing"
)

func money(s string) pricing.Money { return pricing.MustMoney(s) }

func requireMoney(t *testing.T, want string, got pricing.Money) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeLineTaxedWithDiscount(t *testing.T) {
	p := pricing.Default()
	line, err := p.ComputeLine(pricing.CatalogItem{UnitPrice: money("100.00"), TaxCategory: pricing.Taxed}, 2, money("10"))
	require.NoError(t, err)

	requireMoney(t, "200.00", line.Subtotal)
	requireMoney(t, "20.00", line.DiscountAmount)
	requireMoney(t, "180.00", line.NetOfDiscount())
	requireMoney(t, "32.40", line.TaxAmount)
	requireMoney(t, "212.40", line.LineTotal)
	require.Equal(t, "212.40", pricing.Display(line.LineTotal))
}

func TestComputeLineExempt(t *testing.T) {
	p := pricing.Default()
	line, err := p.ComputeLine(pricing.CatalogItem{UnitPrice: money("50.00"), TaxCategory: pricing.Exempt}, 3, pricing.Zero())
	require.NoError(t, err)

	requireMoney(t, "150.00", line.Subtotal)
	requireMoney(t, "0", line.TaxAmount)
	requireMoney(t, "150.00", line.LineTotal)
}

func TestComputeLineRejectsOutOfContractInput(t *testing.T) {
	p := pricing.Default()
	item := pricing.CatalogItem{UnitPrice: money("10"), TaxCategory: pricing.Taxed}

	cases := []struct {
		name     string
		item     pricing.CatalogItem
		qty      int
		discount string
		field    string
	}{
		{"zero quantity", item, 0, "0", "quantity"},
		{"negative quantity", item, -1, "0", "quantity"},
		{"negative discount", item, 1, "-0.01", "discountPercent"},
		{"discount above 100", item, 1, "100.5", "discountPercent"},
		{"negative price", pricing.CatalogItem{UnitPrice: money("-1"), TaxCategory: pricing.Taxed}, 1, "0", "unitPrice"},
		{"unknown category", pricing.CatalogItem{UnitPrice: money("1"), TaxCategory: "LUXURY"}, 1, "0", "taxCategory"},
		{"price exponent underflow", pricing.CatalogItem{UnitPrice: money("1e-2000000000"), TaxCategory: pricing.Taxed}, 1, "0", "unitPrice"},
		{"discount exponent underflow", item, 1, "1e-200000000", "discountPercent"},
		{"huge price", pricing.CatalogItem{UnitPrice: money("1e3000000"), TaxCategory: pricing.Taxed}, 1, "0", "unitPrice"},
		{"price at limit", pricing.CatalogItem{UnitPrice: money("1000000000000"), TaxCategory: pricing.Taxed}, 1, "0", "unitPrice"},
		{"price too precise", pricing.CatalogItem{UnitPrice: money("0.0000001"), TaxCategory: pricing.Taxed}, 1, "0", "unitPrice"},
		{"discount too precise", item, 1, "12.1234567", "discountPercent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = p.ComputeLine(tc.item, tc.qty, money(tc.discount))
			})
			require.ErrorIs(t, err, pricing.ErrInvalidInput)
			var ve *pricing.ValidationError
			require.True(t, errors.As(err, &ve))
			require.Equal(t, tc.field, ve.FieldName())
		})
	}
}

func TestCheckAmount(t *testing.T) {
	for _, ok := range []string{"0", "999999999999.999999", "12.500000000", "-3.25", "0.000001"} {
		require.NoError(t, pricing.CheckAmount("amount", money(ok)), ok)
	}
	for _, bad := range []string{"1e13", "-1000000000000", "0.0000001", "1e-19", "0e40"} {
		require.ErrorIs(t, pricing.CheckAmount("amount", money(bad)), pricing.ErrInvalidInput, bad)
	}

	err := pricing.CheckAdvance(money("1e-2000000000"), money("10"))
	var ve *pricing.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "advance", ve.Field)

	_, err = pricing.New(money("1e-40"))
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestComputeLineBoundaryDiscounts(t *testing.T) {
	p := pricing.Default()
	item := pricing.CatalogItem{UnitPrice: money("80"), TaxCategory: pricing.Taxed}

	full, err := p.ComputeLine(item, 1, money("100"))
	require.NoError(t, err)
	requireMoney(t, "0", full.LineTotal)

	none, err := p.ComputeLine(item, 1, pricing.Zero())
	require.NoError(t, err)
	requireMoney(t, "94.40", none.LineTotal)
}

func TestNewRejectsNegativeRate(t *testing.T) {
	_, err := pricing.New(money("-0.01"))
	require.ErrorIs(t, err, pricing.ErrInvalidInput)

	p, err := pricing.New(money("0.10"))
	require.NoError(t, err)
	line, err := p.ComputeLine(pricing.CatalogItem{UnitPrice: money("10"), TaxCategory: pricing.Taxed}, 1, pricing.Zero())
	require.NoError(t, err)
	requireMoney(t, "1", line.TaxAmount)
}

func randomLine(t *testing.T, p *pricing.Pricer, rng *rand.Rand) pricing.LineItem {
	t.Helper()
	categories := []pricing.TaxCategory{pricing.Taxed, pricing.Exempt, pricing.Unaffected, pricing.Export}
	item := pricing.CatalogItem{
		UnitPrice:   decimal.New(rng.Int64N(1_000_000), -2),
		TaxCategory: categories[rng.IntN(len(categories))],
	}
	discount := decimal.New(rng.Int64N(10001), -2)
	line, err := p.ComputeLine(item, 1+rng.IntN(20), discount)
	require.NoError(t, err)
	return line
}

func TestLineProperties(t *testing.T) {
	p := pricing.Default()
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 2000; i++ {
		line := randomLine(t, p, rng)

		if line.Item.TaxCategory != pricing.Taxed {
			require.True(t, line.TaxAmount.IsZero())
		}
		expected := line.Subtotal.Sub(line.Subtotal.Mul(line.DiscountPercent).Div(decimal.NewFromInt(100))).Add(line.TaxAmount)
		require.True(t, expected.Sub(line.LineTotal).Abs().LessThan(decimal.New(1, -9)), "line %d", i)

		if line.DiscountPercent.IsZero() {
			require.True(t, line.Subtotal.Equal(line.LineTotal.Sub(line.TaxAmount)))
		}
	}
}

func TestAggregateAdditive(t *testing.T) {
	p := pricing.Default()
	rng := rand.New(rand.NewPCG(3, 5))
	lines := make([]pricing.LineItem, 0, 50)
	sum := decimal.Zero
	for i := 0; i < 50; i++ {
		l := randomLine(t, p, rng)
		lines = append(lines, l)
		sum = sum.Add(l.LineTotal)
	}
	totals := pricing.Aggregate(lines, pricing.Zero())
	require.True(t, sum.Equal(totals.Total))
	require.True(t, totals.RemainingBalance.Equal(totals.Total))
}

func TestAggregateScenario(t *testing.T) {
	p := pricing.Default()
	a, err := p.ComputeLine(pricing.CatalogItem{UnitPrice: money("100.00"), TaxCategory: pricing.Taxed}, 2, money("10"))
	require.NoError(t, err)
	b, err := p.ComputeLine(pricing.CatalogItem{UnitPrice: money("50.00"), TaxCategory: pricing.Exempt}, 3, pricing.Zero())
	require.NoError(t, err)

	totals := pricing.Aggregate([]pricing.LineItem{a, b}, money("100"))
	requireMoney(t, "350", totals.Subtotal)
	requireMoney(t, "20", totals.Discount)
	requireMoney(t, "32.40", totals.Tax)
	requireMoney(t, "362.40", totals.Total)
	requireMoney(t, "262.40", totals.RemainingBalance)

	empty := pricing.Aggregate(nil, pricing.Zero())
	require.True(t, empty.Total.IsZero())

	over := pricing.Aggregate([]pricing.LineItem{b}, money("200"))
	requireMoney(t, "-50", over.RemainingBalance)
	require.ErrorIs(t, pricing.CheckAdvance(money("200"), over.Total), pricing.ErrInvalidInput)

	bases := pricing.ByCategory([]pricing.LineItem{a, b})
	requireMoney(t, "180", bases.Taxed)
	requireMoney(t, "150", bases.Exempt)
	require.True(t, bases.Unaffected.IsZero())
	require.True(t, bases.Export.IsZero())
}

func TestRoundingOnlyAtDisplay(t *testing.T) {
	p := pricing.Default()
	line, err := p.ComputeLine(pricing.CatalogItem{UnitPrice: money("0.333"), TaxCategory: pricing.Taxed}, 3, money("12.5"))
	require.NoError(t, err)
	// 0.999 * 0.875 = 0.874125 net, * 0.18 = 0.1573425 tax.
	requireMoney(t, "0.1573425", line.TaxAmount)
	requireMoney(t, "1.0314675", line.LineTotal)
	require.Equal(t, "1.03", pricing.Display(line.LineTotal))
	requireMoney(t, "1.03", pricing.Round(line.LineTotal))
}

func TestCheckQuantity(t *testing.T) {
	require.NoError(t, pricing.CheckQuantity(1, 1))
	require.ErrorIs(t, pricing.CheckQuantity(0, 5), pricing.ErrInvalidInput)
	require.ErrorIs(t, pricing.CheckQuantity(6, 5), pricing.ErrInvalidInput)
}

func TestParseTaxCategory(t *testing.T) {
	c, err := pricing.ParseTaxCategory("taxed")
	require.NoError(t, err)
	require.Equal(t, pricing.Taxed, c)

	c, err = pricing.ParseTaxCategory("30")
	require.NoError(t, err)
	require.Equal(t, pricing.Unaffected, c)
	require.Equal(t, "30", c.SUNATCode())

	_, err = pricing.ParseTaxCategory("99")
	require.Error(t, err)
}
