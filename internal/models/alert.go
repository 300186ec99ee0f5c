package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AlertSetting is a user's notification rule. Created and edited by the user,
// consulted read-only by the alert matcher.
type AlertSetting struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email string    `gorm:"type:varchar(255);not null"`

	MinProfit decimal.Decimal `gorm:"type:numeric(10,2);not null;default:10"`
	MinROI    decimal.Decimal `gorm:"type:numeric(8,2);not null;default:20"`

	// WatchedCategories is a JSON array of category names; null means all
	// categories.
	WatchedCategories datatypes.JSON `gorm:"type:jsonb"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AlertSetting) TableName() string {
	return "alert_settings"
}

// Categories decodes the watched-category set. nil means the setting watches
// every category (an unparsable value degrades to watch-all rather than
// silencing the alert).
func (s AlertSetting) Categories() []string {
	if len(s.WatchedCategories) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(s.WatchedCategories, &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// AlertDelivery records one notification handed to the delivery collaborator.
// The unique index implements the delivery-dedup key
// (setting, opportunity, opportunity version).
type AlertDelivery struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	AlertSettingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_alert_delivery,priority:1"`
	OpportunityID  uint64    `gorm:"not null;uniqueIndex:uniq_alert_delivery,priority:2"`
	Version        int       `gorm:"not null;uniqueIndex:uniq_alert_delivery,priority:3"`

	Email   string `gorm:"type:varchar(255);not null"`
	Subject string `gorm:"type:text;not null"`

	SentAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (AlertDelivery) TableName() string {
	return "alert_deliveries"
}
