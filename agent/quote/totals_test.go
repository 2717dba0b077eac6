package quote

import (
	"errors"
	"testing"

	"github.com/tanpawarit/quote-assistant/pkg/money"
)

func bundleLines() []LineItem {
	return []LineItem{
		{Description: "Waterdichte mortel", Unit: UnitArea, UnitPrice: 70, Quantity: 12, LineTotal: 840},
		{Description: "Afdichtingscoating", Unit: UnitArea, UnitPrice: 45, Quantity: 12, LineTotal: 540},
		{Description: "Uitbreken pleisterwerk", Unit: UnitArea, UnitPrice: 38, Quantity: 12, LineTotal: 456},
		{Description: "Afwerkpleister", Unit: UnitArea, UnitPrice: 40, Quantity: 12, LineTotal: 480},
	}
}

func TestComputeTotalsPercentageDiscount(t *testing.T) {
	t.Parallel()

	got := ComputeTotals(bundleLines(), Discount{Type: DiscountPercentage, Value: 10}, DefaultTaxRate)
	if got.SubtotalInclTax != 2316 {
		t.Fatalf("subtotal = %v, want 2316", got.SubtotalInclTax)
	}
	if got.DiscountAmount != 231.6 {
		t.Fatalf("discount = %v, want 231.6", got.DiscountAmount)
	}
	if got.AfterDiscount != 2084.4 {
		t.Fatalf("after discount = %v, want 2084.4", got.AfterDiscount)
	}
	if got.ExclTax != 1722.64 {
		t.Fatalf("excl tax = %v, want 1722.64", got.ExclTax)
	}
	if got.TaxAmount != 361.76 {
		t.Fatalf("tax = %v, want 361.76", got.TaxAmount)
	}
	if money.Sum(got.ExclTax, got.TaxAmount) != got.AfterDiscount {
		t.Fatalf("excl %v + tax %v != after discount %v", got.ExclTax, got.TaxAmount, got.AfterDiscount)
	}
}

func TestComputeTotalsTaxInvariant(t *testing.T) {
	t.Parallel()

	for _, cents := range []float64{0.01, 0.99, 1, 12.34, 99.99, 100.01, 1234.56, 7777.77} {
		lines := []LineItem{{LineTotal: cents}}
		got := ComputeTotals(lines, Discount{}, DefaultTaxRate)
		if money.Sum(got.ExclTax, got.TaxAmount) != got.AfterDiscount {
			t.Fatalf("subtotal %v: excl %v + tax %v != %v", cents, got.ExclTax, got.TaxAmount, got.AfterDiscount)
		}
	}
}

func TestDiscountAmountClamping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		discount Discount
		want     float64
	}{
		{name: "percentage over 100", discount: Discount{Type: DiscountPercentage, Value: 150}, want: 500},
		{name: "fixed over subtotal", discount: Discount{Type: DiscountFixed, Value: 900}, want: 500},
		{name: "fixed within subtotal", discount: Discount{Type: DiscountFixed, Value: 99.99}, want: 99.99},
		{name: "negative value", discount: Discount{Type: DiscountFixed, Value: -5}, want: 0},
		{name: "no type", discount: Discount{Value: 10}, want: 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DiscountAmount(500, tc.discount); got != tc.want {
				t.Fatalf("DiscountAmount() = %v, want %v", got, tc.want)
			}
		})
	}

	got := ComputeTotals([]LineItem{{LineTotal: 500}}, Discount{Type: DiscountFixed, Value: 900}, DefaultTaxRate)
	if got.AfterDiscount != 0 || got.ExclTax != 0 || got.TaxAmount != 0 {
		t.Fatalf("over-capped fixed discount must bring totals to zero, got %+v", got)
	}
}

func TestParseUnitAliases(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]Unit{"m²": UnitArea, "M2": UnitArea, "m": UnitLinear, "st": UnitCount} {
		got, err := ParseUnit(raw)
		if err != nil || got != want {
			t.Fatalf("ParseUnit(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := ParseUnit("liter"); !errors.Is(err, ErrInvalidUnit) {
		t.Fatalf("expected ErrInvalidUnit, got %v", err)
	}
}

func TestMergeOnlyTouchesProvidedFields(t *testing.T) {
	t.Parallel()

	city := "Utrecht"
	c := Customer{Name: "Jansen", Email: "j@example.nl"}.Merge(CustomerPatch{City: &city})
	if c.Name != "Jansen" || c.Email != "j@example.nl" || c.City != "Utrecht" {
		t.Fatalf("unexpected merge result: %+v", c)
	}

	warranty := 10
	d := Details{Duration: "2 dagen", ValidityDays: 30}.Merge(DetailsPatch{WarrantyYears: &warranty})
	if d.Duration != "2 dagen" || d.ValidityDays != 30 || d.WarrantyYears != 10 {
		t.Fatalf("unexpected details merge: %+v", d)
	}
}
