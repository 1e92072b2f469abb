package gateway

import (
	"encoding/json"
	"strings"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/payment"
)

// Platega authenticates callbacks with the merchant secret echoed in a header.
type Platega struct{}

type plategaCallback struct {
	ID       string          `json:"id"`
	Amount   json.Number     `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Payload  json.RawMessage `json:"payload"`
}

func (Platega) Name() string { return models.GatewayPlatega }

func (Platega) SignatureHeader() string { return "X-Secret" }

func (Platega) ValidateSignature(_ []byte, signature, secret string) bool {
	return secretEqual(signature, secret)
}

func (p Platega) ParsePayload(rawBody []byte) (*payment.WebhookPayload, error) {
	var cb plategaCallback
	if err := decodeJSON(p.Name(), rawBody, &cb); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cb.ID) == "" {
		return nil, payment.Malformed("platega: id is missing")
	}
	status, err := PlategaStatus(cb.Status)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(p.Name(), numberString(cb.Amount))
	if err != nil {
		return nil, err
	}

	out := &payment.WebhookPayload{
		Gateway:     p.Name(),
		ExternalID:  cb.ID,
		Status:      status,
		Amount:      amount,
		Currency:    cb.Currency,
		RawMetadata: metadataFromCarrier(carrierString(cb.Payload)),
	}
	if status == payment.StatusFailed {
		out.ErrorMessage = "transaction canceled"
	}
	return out.Finalize()
}

func PlategaStatus(status string) (payment.Status, error) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "CONFIRMED":
		return payment.StatusSuccess, nil
	case "CANCELED":
		return payment.StatusFailed, nil
	case "CHARGEBACKED":
		return payment.StatusRefunded, nil
	case "PENDING":
		return payment.StatusPending, nil
	default:
		return "", payment.Malformed("platega: unknown status %q", status)
	}
}
