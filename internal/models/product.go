package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Product is the catalog identity record. Owned by the catalog/ingestion side;
// the engine references it read-only.
type Product struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	UPC      *string   `gorm:"type:varchar(20);uniqueIndex"`
	ASIN     *string   `gorm:"type:varchar(20);index"`
	Title    string    `gorm:"type:text;not null"`
	Category *string   `gorm:"type:varchar(100);index"`
	ImageURL *string   `gorm:"type:text"`

	ExtraData datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}

// CategoryName returns the category or "" when unset.
func (p Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return *p.Category
}
