package models

import "time"

const (
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusDunning  = "DUNNING"
	SubscriptionStatusCanceled = "CANCELED"
	SubscriptionStatusExpired  = "EXPIRED"
)

// Subscription mirrors a paid AbacatePay subscription. Every successful
// renewal refreshes EndsAt to now+30d; a failed renewal moves the status to
// DUNNING without touching EndsAt.
type Subscription struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	PlanType        string     `gorm:"type:varchar(50);not null" json:"plan_type"`
	Status          string     `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	StartsAt        time.Time  `gorm:"type:timestamp;not null" json:"starts_at"`
	EndsAt          time.Time  `gorm:"type:timestamp;not null;index" json:"ends_at"`
	AbacatePaySubID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"abacatepay_sub_id"`
	DiscordLink     string     `gorm:"type:varchar(255)" json:"discord_link"`
	MetadataJSON    string     `gorm:"type:longtext" json:"metadata_json"`
	CanceledAt      *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the subscription still grants access.
// DUNNING keeps access until the paid period runs out.
func (s *Subscription) IsEntitling(now time.Time) bool {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusDunning {
		return false
	}
	return s.EndsAt.After(now)
}
