package tool

import "testing"

func TestEvaluateQuantityExpression(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "12", want: 12},
		{in: "2 + 3 * (4 - 1)", want: 11},
		{in: "2*(4+5)", want: 18},
		{in: "3,5 + 2", want: 5.5},
		{in: "-(2)+5", want: 3},
		{in: "10 / 4", want: 2.5},
		{in: "8 - 2 - 1", want: 5},
		{in: "4 x 5", want: 20},
		{in: "2×3,5", want: 7},
		{in: "--3", want: 3},
		{in: "", wantErr: true},
		{in: "2 + abc", wantErr: true},
		{in: "1/0", wantErr: true},
		{in: "(1+2", wantErr: true},
		{in: "1 2", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "4 *", wantErr: true},
		{in: ")", wantErr: true},
	}
	for _, tc := range cases {
		got, err := evaluateQuantityExpression(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}
