package models

import "time"

const (
	GatewayCryptopay     = "cryptopay"
	GatewayYooKassa      = "yookassa"
	GatewayHeleket       = "heleket"
	GatewayPal24         = "pal24"
	GatewayPlatega       = "platega"
	GatewayWata          = "wata"
	GatewayTelegramStars = "telegram_stars"
)

// PaymentGateway is the configured row for one payment provider.
type PaymentGateway struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
