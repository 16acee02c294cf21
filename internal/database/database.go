package database

import (
	"fmt"
	"time"

	"wb-parser/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("Database initialized successfully")
	return db, nil
}

// Migrate ensures the product and raw search result tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Product{}, &models.SearchResult{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
