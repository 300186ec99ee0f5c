package fees

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"flipradar/internal/config"
	"flipradar/internal/money"
)

// ErrUnknownPlatform means a sell price was observed for a platform that has
// no fee schedule. That is a configuration defect: the evaluation it occurs in
// fails, nothing else does.
var ErrUnknownPlatform = errors.New("fees: unknown platform")

// Schedule is one platform's fee rule. It is data, not branching logic:
// supporting a new platform means adding a schedule entry.
type Schedule struct {
	// PercentFee is the percentage-of-sale fee (eBay FVF, Amazon referral).
	PercentFee decimal.Decimal
	// PerOrderFee is a flat per-order charge.
	PerOrderFee decimal.Decimal
	// FulfillmentFee is a flat fulfillment charge (e.g. FBA), zero when the
	// seller ships directly.
	FulfillmentFee decimal.Decimal
	// CategoryRates overrides PercentFee for specific product categories.
	CategoryRates map[string]decimal.Decimal
}

// Assessment is the revenue breakdown for one hypothetical sale.
type Assessment struct {
	SellPrice    decimal.Decimal
	PlatformFees decimal.Decimal
	ShippingCost decimal.Decimal
	NetRevenue   decimal.Decimal
}

// Table maps platform name to its fee schedule.
type Table struct {
	schedules map[string]Schedule
}

// NewTable builds the schedule table from configuration. Platform names are
// matched case-insensitively.
func NewTable(cfg config.FeesConfig) *Table {
	schedules := make(map[string]Schedule, len(cfg.Platforms))
	for name, pc := range cfg.Platforms {
		sched := Schedule{
			PercentFee:     money.Rate(pc.PercentFee),
			PerOrderFee:    money.Cents(pc.PerOrderFee),
			FulfillmentFee: money.Cents(pc.FulfillmentFee),
		}
		if len(pc.CategoryRates) > 0 {
			sched.CategoryRates = make(map[string]decimal.Decimal, len(pc.CategoryRates))
			for cat, rate := range pc.CategoryRates {
				sched.CategoryRates[cat] = money.Rate(rate)
			}
		}
		schedules[strings.ToLower(strings.TrimSpace(name))] = sched
	}
	return &Table{schedules: schedules}
}

// Platforms lists the supported platform names, sorted for stable iteration.
func (t *Table) Platforms() []string {
	out := make([]string, 0, len(t.schedules))
	for name := range t.schedules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Assess computes the fee breakdown for selling at sellPrice on platform.
// Fees and net revenue are each rounded half-up to the cent once, from exact
// intermediate values.
func (t *Table) Assess(platform, category string, sellPrice, shipping decimal.Decimal) (Assessment, error) {
	sched, ok := t.schedules[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return Assessment{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	rate := sched.PercentFee
	if category != "" {
		if override, ok := sched.CategoryRates[category]; ok {
			rate = override
		}
	}
	feesExact := sellPrice.Mul(rate).Add(sched.PerOrderFee).Add(sched.FulfillmentFee)
	netExact := sellPrice.Sub(feesExact).Sub(shipping)
	return Assessment{
		SellPrice:    sellPrice,
		PlatformFees: money.RoundCents(feesExact),
		ShippingCost: shipping,
		NetRevenue:   money.RoundCents(netExact),
	}, nil
}

// NetRevenue is the category-agnostic shorthand for Assess.
func (t *Table) NetRevenue(platform string, sellPrice, shipping decimal.Decimal) (decimal.Decimal, error) {
	a, err := t.Assess(platform, "", sellPrice, shipping)
	if err != nil {
		return decimal.Zero, err
	}
	return a.NetRevenue, nil
}
