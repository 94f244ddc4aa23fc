package models

import "time"

const (
	TransactionTypePurchase     = "PURCHASE"
	TransactionTypeSubscription = "SUBSCRIPTION"
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// Transaction records a monetary movement at AbacatePay. AmountCents is in
// centavos. AbacatePayTxID is the provider's billing id and is the upsert key
// used by the webhook pipeline.
type Transaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	Type           string    `gorm:"type:varchar(20);not null" json:"type" validate:"oneof=PURCHASE SUBSCRIPTION"`
	Status         string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status" validate:"oneof=PENDING COMPLETED FAILED"`
	AbacatePayTxID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"abacatepay_tx_id"`
	IdempotencyKey string    `gorm:"type:varchar(64);not null" json:"idempotency_key"`
	MetadataJSON   string    `gorm:"type:longtext" json:"metadata_json"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
