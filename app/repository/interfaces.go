package repository

import (
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByProvider(provider, providerID string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// SurebetRepository defines the interface for surebet database operations
type SurebetRepository interface {
	Create(bet *models.Surebet) error
	GetByUUID(uuid string) (*models.Surebet, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Surebet, error)
	CountByUserID(userID uint) (int64, error)
	Update(bet *models.Surebet) error
	Delete(id uint) error
}

// SpreadsheetRepository defines the interface for spreadsheet database operations
type SpreadsheetRepository interface {
	Create(sheet *models.Spreadsheet) error
	GetByID(id uint) (*models.Spreadsheet, error)
	GetByUserID(userID uint) ([]models.Spreadsheet, error)
	GetByUserIDAndKind(userID uint, kind string) ([]models.Spreadsheet, error)
	Update(sheet *models.Spreadsheet) error
	Delete(id uint) error
}

// Repositories bundles all repository instances
type Repositories struct {
	User        UserRepository
	Surebet     SurebetRepository
	Spreadsheet SpreadsheetRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Surebet:     NewSurebetRepository(db),
		Spreadsheet: NewSpreadsheetRepository(db),
	}
}
