package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ListingStatusActive  = "active"
	ListingStatusClosed  = "closed"
	ListingStatusUnknown = "unknown"
)

// Listing is one auction lot. Mutated only by ingestion as bid/status change;
// the engine never writes it.
type Listing struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	ProductID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Product    Product

	CurrentBid  decimal.Decimal  `gorm:"type:numeric(10,2);not null"`
	RetailPrice *decimal.Decimal `gorm:"type:numeric(10,2)"`
	Condition   string           `gorm:"type:varchar(20);not null;default:'unknown'"`

	AuctionType       *string        `gorm:"type:varchar(50)"`
	WarehouseLocation *string        `gorm:"type:varchar(100)"`
	URL               *string        `gorm:"type:text"`
	ExtraData         datatypes.JSON `gorm:"type:jsonb"`

	// ClosesAt nil means no deadline.
	ClosesAt *time.Time `gorm:"type:timestamptz;index"`
	Status   string     `gorm:"type:varchar(20);not null;index;default:'active'"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Listing) TableName() string {
	return "listings"
}

// Open reports whether the listing is still eligible for new opportunity
// evaluation: not closed and not past its deadline. Status "unknown" stays
// eligible until ingestion says otherwise.
func (l Listing) Open(now time.Time) bool {
	if l.Status == ListingStatusClosed {
		return false
	}
	if l.ClosesAt != nil && !l.ClosesAt.After(now) {
		return false
	}
	return true
}
