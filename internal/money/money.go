package money

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// RoundCents rounds to the cent using round-half-up (2.005 -> 2.01,
// -2.005 -> -2.00). Money computations round only their final result so
// chained arithmetic never compounds rounding error.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Add(half).Floor().Div(hundred)
}

// Rate converts a configured float ratio (fee percentages, tax rates) into a
// decimal for exact multiplication.
func Rate(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Cents converts a configured float dollar amount into a decimal already
// normalized to cents.
func Cents(v float64) decimal.Decimal {
	return RoundCents(decimal.NewFromFloat(v))
}
