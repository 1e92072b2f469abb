package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusExpired  = "expired"
	SubscriptionStatusDisabled = "disabled"
)

// Subscription is a user's VPN access window. At most one row per user is
// active at a time; renewals extend ExpireAt instead of adding rows.
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	PlanID    string    `gorm:"type:varchar(64);not null" json:"plan_id"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active';index:idx_subscriptions_user_status,priority:2" json:"status"`
	ExpireAt  time.Time `gorm:"not null;index" json:"expire_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
