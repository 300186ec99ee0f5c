package costs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"flipradar/internal/config"
	"flipradar/internal/money"
)

// ErrInvalidListingState means the listing's bid state cannot support a cost
// computation (non-positive bid, corrupt negative money). Data quality issue:
// skip the listing and log, never crash a batch.
var ErrInvalidListingState = errors.New("costs: invalid listing state")

// Params is the acquisition cost schedule for the source auction house.
type Params struct {
	BuyerPremiumRate decimal.Decimal
	LotFee           decimal.Decimal
	TaxRate          decimal.Decimal
}

func ParamsFromConfig(cfg config.CostsConfig) Params {
	return Params{
		BuyerPremiumRate: money.Rate(cfg.BuyerPremiumRate),
		LotFee:           money.Cents(cfg.LotFee),
		TaxRate:          money.Rate(cfg.TaxRate),
	}
}

// Breakdown itemizes the full cost of winning a lot.
type Breakdown struct {
	Bid          decimal.Decimal
	BuyerPremium decimal.Decimal
	LotFee       decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// TotalCost computes acquisition cost:
// bid + bid*premium_rate + lot_fee + tax on (bid + premium).
// Components are rounded half-up to the cent individually; Total is rounded
// once from the exact sum.
func TotalCost(bid decimal.Decimal, p Params) (Breakdown, error) {
	if bid.LessThanOrEqual(decimal.Zero) {
		return Breakdown{}, fmt.Errorf("%w: current bid %s", ErrInvalidListingState, bid)
	}
	premium := bid.Mul(p.BuyerPremiumRate)
	taxable := bid.Add(premium)
	tax := taxable.Mul(p.TaxRate)
	total := money.RoundCents(bid.Add(premium).Add(p.LotFee).Add(tax))
	if total.LessThanOrEqual(decimal.Zero) {
		// Corrupt configuration (negative rates/fees) must not produce a
		// zero-or-negative buy cost downstream.
		return Breakdown{}, fmt.Errorf("%w: computed total %s", ErrInvalidListingState, total)
	}
	return Breakdown{
		Bid:          bid,
		BuyerPremium: money.RoundCents(premium),
		LotFee:       p.LotFee,
		Tax:          money.RoundCents(tax),
		Total:        total,
	}, nil
}
