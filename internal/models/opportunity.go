package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OpportunityStatusActive   = "active"
	OpportunityStatusInactive = "inactive"
)

// Opportunity links one listing to one sell platform with derived economics.
// The engine exclusively owns the write path; the unique index on
// (listing_id, sell_platform) is the database backstop for the
// at-most-one-live-row invariant.
//
// Invariant: Profit = EstimatedSellPrice - PlatformFees - ShippingCost - BuyCost,
// ROIPct = 100 * Profit / BuyCost, BuyCost > 0.
type Opportunity struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ProductID uuid.UUID `gorm:"type:uuid;index;not null"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_opp_listing_platform,priority:1"`

	SellPlatform string `gorm:"type:varchar(20);not null;uniqueIndex:uniq_opp_listing_platform,priority:2"`

	// Money values are numeric columns to avoid float error.
	BuyCost            decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	EstimatedSellPrice decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	PlatformFees       decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	ShippingCost       decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	Profit             decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	ROIPct             decimal.Decimal `gorm:"type:numeric(8,2);not null"`

	ConfidenceScore int `gorm:"not null;default:0"`

	// Status flips to inactive (soft retract) when a recomputation no longer
	// clears the profitability bar; rows are never deleted while the listing
	// is open.
	Status string `gorm:"type:varchar(20);not null;index;default:'active'"`

	// Version increments on every field-changing update. Alert delivery dedup
	// keys on (setting, opportunity, version).
	Version int `gorm:"not null;default:1"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Opportunity) TableName() string {
	return "opportunities"
}

// SameFigures reports whether two computations of the same (listing, platform)
// pair agree on every derived field. Used for the no-op update check: a
// recomputation that changes nothing must not bump version or emit events.
func (o Opportunity) SameFigures(other Opportunity) bool {
	return o.BuyCost.Equal(other.BuyCost) &&
		o.EstimatedSellPrice.Equal(other.EstimatedSellPrice) &&
		o.PlatformFees.Equal(other.PlatformFees) &&
		o.ShippingCost.Equal(other.ShippingCost) &&
		o.Profit.Equal(other.Profit) &&
		o.ROIPct.Equal(other.ROIPct) &&
		o.ConfidenceScore == other.ConfidenceScore &&
		o.Status == other.Status
}
