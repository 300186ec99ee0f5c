package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundCents(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2.005", "2.01"},
		{"2.004", "2.00"},
		{"2.0049999", "2.00"},
		{"-2.005", "-2.00"},
		{"-2.006", "-2.01"},
		{"0", "0.00"},
		{"24.876", "24.88"},
		{"145.124", "145.12"},
	}
	for _, c := range cases {
		got := RoundCents(decimal.RequireFromString(c.in))
		if got.StringFixed(2) != c.want {
			t.Fatalf("RoundCents(%s)=%s want=%s", c.in, got.StringFixed(2), c.want)
		}
	}
}

func TestCentsNormalizesFloats(t *testing.T) {
	if got := Cents(3.00); got.StringFixed(2) != "3.00" {
		t.Fatalf("Cents(3.00)=%s want=3.00", got.StringFixed(2))
	}
	if got := Cents(0.40); got.StringFixed(2) != "0.40" {
		t.Fatalf("Cents(0.40)=%s want=0.40", got.StringFixed(2))
	}
}
