package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	STATUS_ACTIVE   = "active"
	STATUS_DISABLED = "disabled"
)

// User is the reseller customer. The payment pipeline only mutates Balance;
// ReferredBy and PartnerID drive the referral and partner cascades.
type User struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	TelegramID int64           `gorm:"uniqueIndex" json:"telegram_id" validate:"required"`
	Username   string          `gorm:"type:varchar(150);default:null" json:"username" validate:"max=150"`
	Status     string          `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active disabled"`
	Balance    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	ReferredBy *uint           `gorm:"index;default:null" json:"referred_by,omitempty"`
	PartnerID  *uint           `gorm:"index;default:null" json:"partner_id,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}
