package repository

import (
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
)

// surebetRepository implements the SurebetRepository interface
type surebetRepository struct {
	db *gorm.DB
}

// NewSurebetRepository creates a new surebet repository instance
func NewSurebetRepository(db *gorm.DB) SurebetRepository {
	return &surebetRepository{db: db}
}

func (r *surebetRepository) Create(bet *models.Surebet) error {
	return r.db.Create(bet).Error
}

func (r *surebetRepository) GetByUUID(uuid string) (*models.Surebet, error) {
	var bet models.Surebet
	err := r.db.Where("uuid = ?", uuid).First(&bet).Error
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

func (r *surebetRepository) GetByUserID(userID uint, offset, limit int) ([]models.Surebet, error) {
	var bets []models.Surebet
	err := r.db.Where("user_id = ?", userID).
		Order("event_date DESC").
		Offset(offset).Limit(limit).
		Find(&bets).Error
	return bets, err
}

func (r *surebetRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Surebet{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *surebetRepository) Update(bet *models.Surebet) error {
	return r.db.Save(bet).Error
}

func (r *surebetRepository) Delete(id uint) error {
	return r.db.Delete(&models.Surebet{}, id).Error
}
