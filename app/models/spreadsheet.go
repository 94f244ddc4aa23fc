package models

import "time"

const (
	SpreadsheetKindBankroll   = "BANKROLL"
	SpreadsheetKindProcedures = "PROCEDURES"
	SpreadsheetKindEarnings   = "EARNINGS"
	SpreadsheetKindAccounts   = "ACCOUNTS"
)

// Spreadsheet is a user-owned sheet (bankroll, procedures, earnings or
// bookmaker accounts). The cell data is an opaque JSON document owned by the
// frontend; the backend only stores and scopes it.
type Spreadsheet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Kind      string    `gorm:"type:varchar(20);not null;index" json:"kind" validate:"oneof=BANKROLL PROCEDURES EARNINGS ACCOUNTS"`
	DataJSON  string    `gorm:"type:longtext" json:"data_json"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
