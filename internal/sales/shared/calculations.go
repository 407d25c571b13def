package shared

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineAmounts holds the cent-rounded amounts of one invoice line.
type LineAmounts struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// CalculateLineTotals applies the discount to quantity x price, then tax to the
// discounted amount. Every intermediate is rounded half away from zero to cents.
func CalculateLineTotals(quantity, unitPrice, discountPercent, taxPercent decimal.Decimal) LineAmounts {
	gross := quantity.Mul(unitPrice).Round(2)
	discount := gross.Mul(discountPercent).Div(hundred).Round(2)
	net := gross.Sub(discount)
	tax := net.Mul(taxPercent).Div(hundred).Round(2)
	return LineAmounts{
		Gross:    gross,
		Discount: discount,
		Tax:      tax,
		Total:    net.Add(tax),
	}
}
