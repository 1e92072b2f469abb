package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/payment"
)

// Heleket handles crypto payment callbacks. The signature travels in the
// body's "sign" field.
type Heleket struct{}

type heleketCallback struct {
	Type           string          `json:"type"`
	UUID           string          `json:"uuid"`
	OrderID        string          `json:"order_id"`
	Amount         json.Number     `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	AdditionalData json.RawMessage `json:"additional_data"`
	UpdatedAt      string          `json:"updated_at"`
	Sign           string          `json:"sign"`
}

func (Heleket) Name() string { return models.GatewayHeleket }

func (Heleket) SignatureHeader() string { return "" }

// ValidateSignature recomputes md5(base64(body without sign) + apiKey). The
// body is re-serialized compactly with escaped slashes, as the gateway signs it.
func (Heleket) ValidateSignature(rawBody []byte, _, secret string) bool {
	apiKey := strings.TrimSpace(secret)
	if apiKey == "" {
		return false
	}
	unsigned, sign, err := heleketUnsignedBody(rawBody)
	if err != nil || sign == "" {
		return false
	}
	expected := md5Hex(base64.StdEncoding.EncodeToString(unsigned) + apiKey)
	return digestEqual(sign, expected)
}

// heleketUnsignedBody rebuilds the top-level object without "sign",
// keeping the original key order.
func heleketUnsignedBody(rawBody []byte) ([]byte, string, error) {
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	tok, err := dec.Token()
	if err != nil {
		return nil, "", err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, "", payment.Malformed("heleket: body is not an object")
	}

	var (
		buf   bytes.Buffer
		sign  string
		first = true
	)
	buf.WriteByte('{')
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, "", err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, "", err
		}
		if key == "sign" {
			if err := json.Unmarshal(raw, &sign); err != nil {
				return nil, "", err
			}
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, "", err
		}
		keyJSON, _ := json.Marshal(key)
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(compact.Bytes())
	}
	buf.WriteByte('}')

	escaped := bytes.ReplaceAll(buf.Bytes(), []byte(`\/`), []byte(`/`))
	escaped = bytes.ReplaceAll(escaped, []byte(`/`), []byte(`\/`))
	return escaped, sign, nil
}

func (h Heleket) ParsePayload(rawBody []byte) (*payment.WebhookPayload, error) {
	var cb heleketCallback
	if err := decodeJSON(h.Name(), rawBody, &cb); err != nil {
		return nil, err
	}
	if cb.Type != "" && cb.Type != "payment" {
		return nil, payment.Unsupported("heleket callback type %q", cb.Type)
	}
	if strings.TrimSpace(cb.UUID) == "" {
		return nil, payment.Malformed("heleket: uuid is missing")
	}
	status, err := HeleketStatus(cb.Status)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(h.Name(), numberString(cb.Amount))
	if err != nil {
		return nil, err
	}

	meta := metadataFromCarrier(carrierString(cb.AdditionalData))
	p := &payment.WebhookPayload{
		Gateway:     h.Name(),
		PaymentID:   firstNonEmpty(cb.OrderID, meta["paymentId"]),
		ExternalID:  cb.UUID,
		Status:      status,
		Amount:      amount,
		Currency:    cb.Currency,
		RawMetadata: meta,
		Timestamp:   parseTime(cb.UpdatedAt),
	}
	if status == payment.StatusFailed {
		p.ErrorMessage = "payment " + cb.Status
	}
	return p.Finalize()
}

func HeleketStatus(status string) (payment.Status, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "paid_over":
		return payment.StatusSuccess, nil
	case "fail", "cancel", "system_fail", "wrong_amount":
		return payment.StatusFailed, nil
	case "process", "check", "confirm_check", "wrong_amount_waiting", "locked", "refund_process":
		return payment.StatusPending, nil
	case "refund_paid":
		return payment.StatusRefunded, nil
	default:
		return "", payment.Malformed("heleket: unknown status %q", status)
	}
}
