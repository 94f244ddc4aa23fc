package models

import "time"

const (
	AccessSourcePurchase = "PURCHASE"
	AccessSourceAdmin    = "ADMIN"
)

const (
	ContentTypeMethod      = "METHOD"
	ContentTypeSpreadsheet = "SPREADSHEET"
	ContentTypeCourse      = "COURSE"
)

// UserAccess is a one-off content entitlement (non-subscription). The unique
// (user_id, content_type, content_id) index makes repeated grants an upsert.
type UserAccess struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:ux_user_accesses_user_content,unique,priority:1" json:"user_id"`
	ContentType   string    `gorm:"type:varchar(50);not null;index:ux_user_accesses_user_content,unique,priority:2" json:"content_type"`
	ContentID     string    `gorm:"type:varchar(191);not null;index:ux_user_accesses_user_content,unique,priority:3" json:"content_id"`
	SpreadsheetID *uint     `gorm:"default:null" json:"spreadsheet_id,omitempty"`
	ExpiresAt     time.Time `gorm:"type:timestamp;not null;index" json:"expires_at"`
	Source        string    `gorm:"type:varchar(20);not null;default:'PURCHASE'" json:"source"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsValid reports whether the entitlement has not expired yet.
func (a *UserAccess) IsValid(now time.Time) bool {
	return a.ExpiresAt.After(now)
}
