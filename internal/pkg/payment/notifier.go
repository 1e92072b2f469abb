package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentReceivedEvent describes a completed payment to the user.
type PaymentReceivedEvent struct {
	TransactionID string          `json:"transaction_id"`
	Gateway       string          `json:"gateway"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentType   string          `json:"payment_type"`
	PlanID        string          `json:"plan_id,omitempty"`
	DurationDays  int             `json:"duration_days,omitempty"`
	ExpireAt      *time.Time      `json:"expire_at,omitempty"`
}

// NotificationEmitter delivers user-facing notices. It is called after the
// transaction commits and its errors never affect the payment.
type NotificationEmitter interface {
	EmitPaymentReceived(ctx context.Context, userID uint, event PaymentReceivedEvent) error
	EmitPaymentFailed(ctx context.Context, userID uint, transactionID, reason string) error
	EmitPartnerCommission(ctx context.Context, userID uint, amount decimal.Decimal, orderID, currency string) error
}

// NopEmitter drops every notification.
type NopEmitter struct{}

func (NopEmitter) EmitPaymentReceived(context.Context, uint, PaymentReceivedEvent) error {
	return nil
}

func (NopEmitter) EmitPaymentFailed(context.Context, uint, string, string) error {
	return nil
}

func (NopEmitter) EmitPartnerCommission(context.Context, uint, decimal.Decimal, string, string) error {
	return nil
}
