package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlatformPrice is one observed resale price for a product on a platform at a
// point in time. Append-only: rows are never updated or deleted, so the table
// doubles as price history.
type PlatformPrice struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ProductID uuid.UUID `gorm:"type:uuid;index;not null"`
	Platform  string    `gorm:"type:varchar(20);not null;index"`

	Price        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	ShippingCost decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	Condition    *string         `gorm:"type:varchar(50)"`
	URL          *string         `gorm:"type:text"`
	SellerInfo   *string         `gorm:"type:varchar(200)"`

	FetchedAt time.Time `gorm:"type:timestamptz;not null;index"`
}

func (PlatformPrice) TableName() string {
	return "platform_prices"
}
