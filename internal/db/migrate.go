package db

import (
	"fmt"

	"github.com/oHaruki/SmurfMGT/internal/flairs"
	"github.com/oHaruki/SmurfMGT/internal/models"
	"gorm.io/gorm"
)

// Migrate provisions the full modern schema and seeds the flair catalog.
// Callers treat failure as non-fatal: the store layer is built to run
// against databases this function never touched.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Flair{},
		&models.AccountFlair{},
		&models.SummonerSnapshot{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return ensureDefaultFlairs(conn)
}

// ensureDefaultFlairs seeds the flair catalog when it is empty.
func ensureDefaultFlairs(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Flair{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: check flair catalog: %w", errCount)
	}
	if count > 0 {
		return nil
	}
	seed := flairs.Defaults()
	if errCreate := conn.Create(&seed).Error; errCreate != nil {
		return fmt.Errorf("db: seed flair catalog: %w", errCreate)
	}
	return nil
}
