package gateway

import (
	"crypto/sha256"
	"encoding/json"
	"strings"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/payment"
)

// Cryptopay handles Crypto Pay API invoice updates.
type Cryptopay struct{}

type cryptopayUpdate struct {
	UpdateID    json.Number       `json:"update_id"`
	UpdateType  string            `json:"update_type"`
	RequestDate string            `json:"request_date"`
	Payload     *cryptopayInvoice `json:"payload"`
}

type cryptopayInvoice struct {
	InvoiceID    json.Number `json:"invoice_id"`
	Status       string      `json:"status"`
	CurrencyType string      `json:"currency_type"`
	Asset        string      `json:"asset"`
	Fiat         string      `json:"fiat"`
	Amount       json.Number `json:"amount"`
	Payload      string      `json:"payload"`
	PaidAt       string      `json:"paid_at"`
}

func (Cryptopay) Name() string { return models.GatewayCryptopay }

func (Cryptopay) SignatureHeader() string { return "Crypto-Pay-Api-Signature" }

// ValidateSignature checks the HMAC-SHA256 of the body keyed with the
// SHA256 digest of the API token.
func (Cryptopay) ValidateSignature(rawBody []byte, signature, secret string) bool {
	token := strings.TrimSpace(secret)
	if token == "" {
		return false
	}
	key := sha256.Sum256([]byte(token))
	return verifyHMACHex(rawBody, signature, key[:], sha256.New)
}

func (c Cryptopay) ParsePayload(rawBody []byte) (*payment.WebhookPayload, error) {
	var u cryptopayUpdate
	if err := decodeJSON(c.Name(), rawBody, &u); err != nil {
		return nil, err
	}
	if u.UpdateType != "invoice_paid" {
		return nil, payment.Unsupported("cryptopay update %q", u.UpdateType)
	}
	if u.Payload == nil {
		return nil, payment.Malformed("cryptopay: invoice payload is missing")
	}
	inv := u.Payload

	externalID := numberString(inv.InvoiceID)
	if externalID == "" {
		return nil, payment.Malformed("cryptopay: invoice_id is missing")
	}
	status, err := CryptopayStatus(inv.Status)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(c.Name(), numberString(inv.Amount))
	if err != nil {
		return nil, err
	}
	currency := inv.Asset
	if inv.CurrencyType == "fiat" {
		currency = inv.Fiat
	}

	p := &payment.WebhookPayload{
		Gateway:     c.Name(),
		ExternalID:  externalID,
		Status:      status,
		Amount:      amount,
		Currency:    currency,
		RawMetadata: metadataFromCarrier(inv.Payload),
		Timestamp:   parseTime(firstNonEmpty(inv.PaidAt, u.RequestDate)),
	}
	if status == payment.StatusFailed {
		p.ErrorMessage = "invoice " + inv.Status
	}
	return p.Finalize()
}

func CryptopayStatus(status string) (payment.Status, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return payment.StatusSuccess, nil
	case "expired":
		return payment.StatusFailed, nil
	case "active":
		return payment.StatusPending, nil
	default:
		return "", payment.Malformed("cryptopay: unknown invoice status %q", status)
	}
}
