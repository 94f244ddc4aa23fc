package repository

import (
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
)

// spreadsheetRepository implements the SpreadsheetRepository interface
type spreadsheetRepository struct {
	db *gorm.DB
}

// NewSpreadsheetRepository creates a new spreadsheet repository instance
func NewSpreadsheetRepository(db *gorm.DB) SpreadsheetRepository {
	return &spreadsheetRepository{db: db}
}

func (r *spreadsheetRepository) Create(sheet *models.Spreadsheet) error {
	return r.db.Create(sheet).Error
}

func (r *spreadsheetRepository) GetByID(id uint) (*models.Spreadsheet, error) {
	var sheet models.Spreadsheet
	err := r.db.First(&sheet, id).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *spreadsheetRepository) GetByUserID(userID uint) ([]models.Spreadsheet, error) {
	var sheets []models.Spreadsheet
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&sheets).Error
	return sheets, err
}

func (r *spreadsheetRepository) GetByUserIDAndKind(userID uint, kind string) ([]models.Spreadsheet, error) {
	var sheets []models.Spreadsheet
	err := r.db.Where("user_id = ? AND kind = ?", userID, kind).Order("updated_at DESC").Find(&sheets).Error
	return sheets, err
}

func (r *spreadsheetRepository) Update(sheet *models.Spreadsheet) error {
	return r.db.Save(sheet).Error
}

func (r *spreadsheetRepository) Delete(id uint) error {
	return r.db.Delete(&models.Spreadsheet{}, id).Error
}
