package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PartnerEarningStatusPending = "pending"
	PartnerEarningStatusPaid    = "paid"
)

// DefaultPartnerCommissionRate is the percentage applied when a partner row
// carries no explicit rate.
var DefaultPartnerCommissionRate = decimal.NewFromInt(10)

// Partner is an affiliate account owned by a user. CommissionRate is a
// percentage of each referred payment.
type Partner struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;uniqueIndex" json:"user_id"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:10" json:"commission_rate"`
	Balance        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	TotalEarned    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_earned"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

// EffectiveRate returns the configured rate or the default when unset.
func (p *Partner) EffectiveRate() decimal.Decimal {
	if p.CommissionRate.IsPositive() {
		return p.CommissionRate
	}
	return DefaultPartnerCommissionRate
}

// PartnerEarning is one commission accrual. A partner earns at most once per
// order.
type PartnerEarning struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	PartnerID     uint            `gorm:"not null;index:ux_partner_earnings_partner_order,unique,priority:1" json:"partner_id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	OrderID       string          `gorm:"type:varchar(64);not null;index:ux_partner_earnings_partner_order,unique,priority:2" json:"order_id"`
	PaymentAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"payment_amount"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Rate          decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"rate"`
	Currency      string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
