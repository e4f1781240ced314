package settlement

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateSettlement(settlement *Settlement) error {
	return d.db.Create(settlement).Error
}

func (d *Database) UpdateSettlement(settlement *Settlement) error {
	return d.db.Save(settlement).Error
}

func (d *Database) GetByTokenID(tokenID string) (*Settlement, error) {
	var settlement Settlement
	if err := d.db.Where("token_id = ?", tokenID).First(&settlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}

// GetSubmitted lists settlements awaiting a venue outcome.
func (d *Database) GetSubmitted() ([]Settlement, error) {
	var settlements []Settlement
	if err := d.db.Where("status = ?", StatusSubmitted).Find(&settlements).Error; err != nil {
		return nil, err
	}
	return settlements, nil
}
