package models

import "time"

const (
	SurebetStatusOpen    = "OPEN"
	SurebetStatusSettled = "SETTLED"
	SurebetStatusVoid    = "VOID"
)

// Surebet is a recorded two-outcome arbitrage wager. Monetary fields are in
// centavos; the per-leg stakes and the guaranteed profit are computed by the
// surebet package when the row is created or updated.
type Surebet struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	EventName   string    `gorm:"type:varchar(255);not null" json:"event_name" validate:"required,max=255"`
	Bookmaker1  string    `gorm:"type:varchar(100);not null" json:"bookmaker1" validate:"required,max=100"`
	Bookmaker2  string    `gorm:"type:varchar(100);not null" json:"bookmaker2" validate:"required,max=100"`
	Odds1       float64   `gorm:"not null" json:"odds1" validate:"gt=1"`
	Odds2       float64   `gorm:"not null" json:"odds2" validate:"gt=1"`
	TotalStake  int64     `gorm:"not null" json:"total_stake" validate:"gt=0"`
	Stake1      int64     `gorm:"not null" json:"stake1"`
	Stake2      int64     `gorm:"not null" json:"stake2"`
	ProfitCents int64     `gorm:"not null" json:"profit_cents"`
	ROI         float64   `gorm:"not null" json:"roi"`
	Status      string    `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status" validate:"oneof=OPEN SETTLED VOID"`
	EventDate   time.Time `gorm:"type:timestamp;not null" json:"event_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
