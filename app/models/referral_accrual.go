package models

import "time"

// ReferralAccrual accumulates points a referrer earned from one referred user.
type ReferralAccrual struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ReferrerID    uint      `gorm:"not null;index:ux_referral_accruals_pair,unique,priority:1" json:"referrer_id"`
	ReferredID    uint      `gorm:"not null;index:ux_referral_accruals_pair,unique,priority:2" json:"referred_id"`
	Points        int64     `gorm:"not null;default:0" json:"points"`
	PaymentsCount int64     `gorm:"not null;default:0" json:"payments_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
