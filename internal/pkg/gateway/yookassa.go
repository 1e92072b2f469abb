package gateway

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"strings"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/payment"
)

// YooKassa handles HTTP notifications for payments and refunds.
type YooKassa struct{}

type yookassaNotification struct {
	Type   string          `json:"type"`
	Event  string          `json:"event"`
	Object json.RawMessage `json:"object"`
}

type yookassaObject struct {
	ID           string                 `json:"id"`
	PaymentID    string                 `json:"payment_id"`
	Status       string                 `json:"status"`
	Paid         bool                   `json:"paid"`
	Amount       yookassaAmount         `json:"amount"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    string                 `json:"created_at"`
	CapturedAt   string                 `json:"captured_at"`
	Cancellation *struct {
		Party  string `json:"party"`
		Reason string `json:"reason"`
	} `json:"cancellation_details"`
}

type yookassaAmount struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

func (YooKassa) Name() string { return models.GatewayYooKassa }

func (YooKassa) SignatureHeader() string { return "X-Yookassa-Signature" }

func (YooKassa) ValidateSignature(rawBody []byte, signature, secret string) bool {
	return verifyHMACHex(rawBody, signature, []byte(strings.TrimSpace(secret)), sha256.New)
}

func (y YooKassa) ParsePayload(rawBody []byte) (*payment.WebhookPayload, error) {
	var n yookassaNotification
	if err := decodeJSON(y.Name(), rawBody, &n); err != nil {
		return nil, err
	}

	objectRaw := []byte(n.Object)
	if len(bytes.TrimSpace(objectRaw)) == 0 || bytes.Equal(bytes.TrimSpace(objectRaw), []byte("null")) {
		// Bare payment object without the notification envelope.
		objectRaw = rawBody
	}

	var obj yookassaObject
	if err := decodeJSON(y.Name(), objectRaw, &obj); err != nil {
		return nil, err
	}

	refund := false
	switch n.Event {
	case "", "payment.succeeded", "payment.canceled", "payment.waiting_for_capture":
	case "refund.succeeded":
		refund = true
	default:
		return nil, payment.Unsupported("yookassa event %q", n.Event)
	}

	status, err := YooKassaStatus(obj.Status, obj.Paid)
	if err != nil {
		return nil, err
	}
	externalID := obj.ID
	if refund {
		if obj.Status != "succeeded" {
			return nil, payment.Unsupported("yookassa refund in status %q", obj.Status)
		}
		status = payment.StatusRefunded
		externalID = obj.PaymentID
		if strings.TrimSpace(externalID) == "" {
			return nil, payment.Malformed("yookassa: refund payment_id is missing")
		}
	}

	amount, err := parseAmount(y.Name(), numberString(obj.Amount.Value))
	if err != nil {
		return nil, err
	}

	p := &payment.WebhookPayload{
		Gateway:     y.Name(),
		ExternalID:  externalID,
		Status:      status,
		Amount:      amount,
		Currency:    obj.Amount.Currency,
		RawMetadata: flatten(obj.Metadata),
		Timestamp:   parseTime(firstNonEmpty(obj.CapturedAt, obj.CreatedAt)),
	}
	if status == payment.StatusFailed && obj.Cancellation != nil {
		p.ErrorMessage = strings.Trim(obj.Cancellation.Party+": "+obj.Cancellation.Reason, ": ")
	}
	return p.Finalize()
}

// YooKassaStatus maps a payment status and its paid flag. A canceled
// payment that was already paid counts as a success.
func YooKassaStatus(status string, paid bool) (payment.Status, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return payment.StatusSuccess, nil
	case "canceled":
		if paid {
			return payment.StatusSuccess, nil
		}
		return payment.StatusFailed, nil
	case "pending", "waiting_for_capture":
		return payment.StatusPending, nil
	default:
		return "", payment.Malformed("yookassa: unknown status %q", status)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
