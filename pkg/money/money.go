package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Round1 rounds to one decimal, used for areas and lengths.
func Round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// Mul returns round2(a × b).
func Mul(a, b float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Div returns round2(a / b). Division by zero yields 0.
func Div(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return decimal.NewFromFloat(a).DivRound(decimal.NewFromFloat(b), 2).InexactFloat64()
}

// Sum adds values exactly and rounds the result once.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}

// Sub returns round2(a − b) computed without float drift.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Percent returns round2(base × pct / 100).
func Percent(base, pct float64) float64 {
	return decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
