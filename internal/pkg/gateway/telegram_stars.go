package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/payment"
	"github.com/shopspring/decimal"
)

// TelegramStars handles bot updates carrying Stars payments. total_amount
// arrives in hundredths and is converted to major units.
type TelegramStars struct{}

type telegramUpdate struct {
	UpdateID json.Number      `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	Date int64 `json:"date"`
	From *struct {
		ID int64 `json:"id"`
	} `json:"from"`
	SuccessfulPayment *telegramPayment `json:"successful_payment"`
	RefundedPayment   *telegramPayment `json:"refunded_payment"`
}

type telegramPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int64  `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
}

var starsDivisor = decimal.NewFromInt(100)

func (TelegramStars) Name() string { return models.GatewayTelegramStars }

func (TelegramStars) SignatureHeader() string { return "X-Telegram-Bot-Api-Secret-Token" }

func (TelegramStars) ValidateSignature(_ []byte, signature, secret string) bool {
	return secretEqual(signature, secret)
}

func (s TelegramStars) ParsePayload(rawBody []byte) (*payment.WebhookPayload, error) {
	var u telegramUpdate
	if err := decodeJSON(s.Name(), rawBody, &u); err != nil {
		return nil, err
	}
	if u.Message == nil {
		return nil, payment.Unsupported("telegram update %s without message", numberString(u.UpdateID))
	}

	var (
		tp     *telegramPayment
		status payment.Status
	)
	switch {
	case u.Message.SuccessfulPayment != nil:
		tp, status = u.Message.SuccessfulPayment, payment.StatusSuccess
	case u.Message.RefundedPayment != nil:
		tp, status = u.Message.RefundedPayment, payment.StatusRefunded
	default:
		return nil, payment.Unsupported("telegram message without payment")
	}

	if strings.TrimSpace(tp.TelegramPaymentChargeID) == "" {
		return nil, payment.Malformed("telegram_stars: telegram_payment_charge_id is missing")
	}
	if tp.TotalAmount < 0 {
		return nil, payment.Malformed("telegram_stars: negative total_amount %d", tp.TotalAmount)
	}

	out := &payment.WebhookPayload{
		Gateway:     s.Name(),
		ExternalID:  tp.TelegramPaymentChargeID,
		Status:      status,
		Amount:      StarsToMajor(tp.TotalAmount),
		Currency:    tp.Currency,
		RawMetadata: metadataFromCarrier(tp.InvoicePayload),
	}
	if u.Message.Date > 0 {
		out.Timestamp = time.Unix(u.Message.Date, 0).UTC()
	}
	return out.Finalize()
}

// StarsToMajor converts a Stars total_amount into major units (500 -> 5.00).
func StarsToMajor(totalAmount int64) decimal.Decimal {
	return decimal.NewFromInt(totalAmount).Div(starsDivisor)
}
