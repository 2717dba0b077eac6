package money

import (
	"math"
	"testing"
)

func TestRound2HalfAwayFromZero(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want float64
	}{
		{in: 1.005, want: 1.01},
		{in: 2.675, want: 2.68},
		{in: 10, want: 10},
		{in: -1.005, want: -1.01},
		{in: 0.1 + 0.2, want: 0.3},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Fatalf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMulAndSum(t *testing.T) {
	t.Parallel()

	if got := Mul(70, 12); got != 840 {
		t.Fatalf("Mul(70, 12) = %v, want 840", got)
	}
	if got := Mul(19.99, 3.3); got != 65.97 {
		t.Fatalf("Mul(19.99, 3.3) = %v, want 65.97", got)
	}
	if got := Sum(840, 540, 456, 480); got != 2316 {
		t.Fatalf("Sum() = %v, want 2316", got)
	}
	if got := Sum(); got != 0 {
		t.Fatalf("Sum() of nothing = %v, want 0", got)
	}
}

func TestDivPercentSub(t *testing.T) {
	t.Parallel()

	if got := Div(2084.40, 1.21); got != 1722.64 {
		t.Fatalf("Div() = %v, want 1722.64", got)
	}
	if got := Div(10, 0); got != 0 {
		t.Fatalf("Div by zero = %v, want 0", got)
	}
	if got := Percent(2316, 10); got != 231.6 {
		t.Fatalf("Percent() = %v, want 231.6", got)
	}
	if got := Sub(2084.40, 1722.64); got != 361.76 {
		t.Fatalf("Sub() = %v, want 361.76", got)
	}
}

func TestIsFinite(t *testing.T) {
	t.Parallel()

	if !IsFinite(1.5) {
		t.Fatal("1.5 must be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Fatal("NaN and Inf must not be finite")
	}
}
