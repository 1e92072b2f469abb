package models

import "time"

// PaymentWebhookEvent stores gateway webhook deliveries with deduplication
// metadata. It is an audit trail; the ledger fence stays authoritative.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Gateway         string     `gorm:"type:varchar(32);not null;index:ux_payment_webhook_events_gateway_event,unique,priority:1;index" json:"gateway"`
	EventKey        string     `gorm:"type:varchar(191);not null;default:'';index:ux_payment_webhook_events_gateway_event,unique,priority:2" json:"event_key"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
