package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zmurilzx/treon/app/models"
)

// Repository provides the DB operations used by the webhook pipeline and the
// entitlement checks.
type Repository interface {
	CreatePaymentEventIfNew(event *models.PaymentEvent) (bool, *models.PaymentEvent, error)
	MarkEventProcessed(id uint) error
	MarkEventFailed(id uint, processingError string) error

	GetTransactionByProviderID(abacatePayTxID string) (*models.Transaction, error)
	UpsertCompletedTransaction(tx *models.Transaction) error
	MarkTransactionFailed(abacatePayTxID string) (*models.Transaction, error)

	UpsertSubscription(sub *models.Subscription) error
	GetSubscriptionByProviderID(abacatePaySubID string) (*models.Subscription, error)
	SetSubscriptionStatus(abacatePaySubID, status string) error
	GetSubscriptionsByUser(userID uint) ([]models.Subscription, error)

	UpsertUserAccess(access *models.UserAccess) error
	GetUserAccess(userID uint, contentType, contentID string) (*models.UserAccess, error)

	// InTransaction runs fn against a repository bound to a single database
	// transaction. The grant sequence (transaction row, entitlement row,
	// processed mark) must go through this so a crash cannot leave a
	// COMPLETED transaction without its entitlement.
	InTransaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePaymentEventIfNew(event *models.PaymentEvent) (bool, *models.PaymentEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkEventProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.PaymentEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":        true,
		"processed_at":     &now,
		"processing_error": "",
	}).Error
}

func (r *gormRepository) MarkEventFailed(id uint, processingError string) error {
	return r.db.Model(&models.PaymentEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processing_error": processingError,
		"retry_count":      gorm.Expr("retry_count + 1"),
	}).Error
}

func (r *gormRepository) GetTransactionByProviderID(abacatePayTxID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("abacate_pay_tx_id = ?", abacatePayTxID).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) UpsertCompletedTransaction(tx *models.Transaction) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "abacate_pay_tx_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"amount_cents",
			"metadata_json",
			"updated_at",
		}),
	}).Create(tx).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("abacate_pay_tx_id = ?", tx.AbacatePayTxID).First(tx).Error
}

func (r *gormRepository) MarkTransactionFailed(abacatePayTxID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("abacate_pay_tx_id = ?", abacatePayTxID).First(&tx).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&tx).Update("status", models.TransactionStatusFailed).Error; err != nil {
		return nil, err
	}
	tx.Status = models.TransactionStatusFailed
	return &tx, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "abacate_pay_sub_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan_type",
			"status",
			"ends_at",
			"discord_link",
			"metadata_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	return r.db.Where("abacate_pay_sub_id = ?", sub.AbacatePaySubID).First(sub).Error
}

func (r *gormRepository) GetSubscriptionByProviderID(abacatePaySubID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("abacate_pay_sub_id = ?", abacatePaySubID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SetSubscriptionStatus(abacatePaySubID, status string) error {
	// Status only: a dunning transition must not move ends_at.
	return r.db.Model(&models.Subscription{}).
		Where("abacate_pay_sub_id = ?", abacatePaySubID).
		Update("status", status).Error
}

func (r *gormRepository) GetSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) UpsertUserAccess(access *models.UserAccess) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "content_type"},
			{Name: "content_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"spreadsheet_id",
			"expires_at",
			"source",
			"updated_at",
		}),
	}).Create(access).Error; err != nil {
		return err
	}

	return r.db.Where("user_id = ? AND content_type = ? AND content_id = ?",
		access.UserID, access.ContentType, access.ContentID).First(access).Error
}

func (r *gormRepository) GetUserAccess(userID uint, contentType, contentID string) (*models.UserAccess, error) {
	var access models.UserAccess
	err := r.db.Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, contentID).
		First(&access).Error
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *gormRepository) InTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
