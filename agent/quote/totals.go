package quote

import "github.com/tanpawarit/quote-assistant/pkg/money"

// DefaultTaxRate is the Dutch high VAT rate; prices are quoted tax-inclusive.
const DefaultTaxRate = 0.21

type Totals struct {
	SubtotalInclTax float64 `json:"subtotal_incl_tax"`
	DiscountAmount  float64 `json:"discount_amount"`
	AfterDiscount   float64 `json:"after_discount"`
	ExclTax         float64 `json:"excl_tax"`
	TaxAmount       float64 `json:"tax_amount"`
	Total           float64 `json:"total"`
}

// ComputeTotals derives every aggregate from the line list and discount.
// TaxAmount is the residual of AfterDiscount − ExclTax, so the two always add
// up to AfterDiscount to the cent.
func ComputeTotals(lines []LineItem, discount Discount, taxRate float64) Totals {
	totals := make([]float64, 0, len(lines))
	for _, l := range lines {
		totals = append(totals, l.LineTotal)
	}
	subtotal := money.Sum(totals...)

	discountAmount := DiscountAmount(subtotal, discount)
	afterDiscount := money.Sub(subtotal, discountAmount)
	exclTax := money.Div(afterDiscount, 1+taxRate)
	taxAmount := money.Sub(afterDiscount, exclTax)

	return Totals{
		SubtotalInclTax: subtotal,
		DiscountAmount:  discountAmount,
		AfterDiscount:   afterDiscount,
		ExclTax:         exclTax,
		TaxAmount:       taxAmount,
		Total:           afterDiscount,
	}
}

// DiscountAmount clamps at read time: percentages to [0,100], fixed amounts to
// [0,subtotal].
func DiscountAmount(subtotal float64, d Discount) float64 {
	if d.Value <= 0 || subtotal <= 0 {
		return 0
	}
	switch d.Type {
	case DiscountPercentage:
		pct := d.Value
		if pct > 100 {
			pct = 100
		}
		return money.Percent(subtotal, pct)
	case DiscountFixed:
		if d.Value > subtotal {
			return subtotal
		}
		return money.Round2(d.Value)
	default:
		return 0
	}
}
