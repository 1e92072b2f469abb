package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)

const (
	PaymentTypeSubscription = "subscription"
	PaymentTypeBalance      = "balance"
	PaymentTypeOther        = "other"
)

// PaymentTransaction is the ledger row for one payment attempt. The unique
// (gateway_id, external_id) pair is the idempotency fence for webhooks.
type PaymentTransaction struct {
	ID           string            `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID       uint              `gorm:"not null;index" json:"user_id"`
	GatewayID    uint              `gorm:"not null;index:ux_payment_transactions_gateway_external,unique,priority:1" json:"gateway_id"`
	ExternalID   *string           `gorm:"type:varchar(191);default:null;index:ux_payment_transactions_gateway_external,unique,priority:2" json:"external_id,omitempty"`
	Amount       decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency     string            `gorm:"type:varchar(10);not null" json:"currency"`
	Status       string            `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Type         string            `gorm:"type:varchar(20);not null;default:'other'" json:"type"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`
	PaidAt       *time.Time        `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt    time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transaction already left the pending state.
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status != TransactionStatusPending
}

// MetadataStrings flattens the stored JSON metadata into string values.
func (t *PaymentTransaction) MetadataStrings() map[string]string {
	out := make(map[string]string, len(t.Metadata))
	for k, v := range t.Metadata {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
