package db

import (
	"flipradar/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Product{},
		&models.Listing{},
		&models.PlatformPrice{},
		&models.Opportunity{},
		&models.AlertSetting{},
		&models.AlertDelivery{},
	)
}
