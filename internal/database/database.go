package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/settlement"
	"github.com/calder-fi/optio-api/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.Offer{},
		&types.FilledAmount{},
		&types.ActiveOption{},
		&settlement.Settlement{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
