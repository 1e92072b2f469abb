package gateway

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/payment"
)

// Pal24 handles PayPalych postbacks, sent as JSON or as a form.
type Pal24 struct{}

type pal24Postback struct {
	InvID          string
	OutSum         string
	CurrencyIn     string
	Status         string
	TrsID          string
	Custom         string
	SignatureValue string
	ErrorMessage   string
}

func (Pal24) Name() string { return models.GatewayPal24 }

func (Pal24) SignatureHeader() string { return "" }

// ValidateSignature checks SignatureValue = upper(md5(OutSum:InvId:token)).
func (p Pal24) ValidateSignature(rawBody []byte, _, secret string) bool {
	token := strings.TrimSpace(secret)
	if token == "" {
		return false
	}
	pb, err := parsePal24(rawBody)
	if err != nil || pb.SignatureValue == "" {
		return false
	}
	expected := md5Hex(pb.OutSum + ":" + pb.InvID + ":" + token)
	return digestEqual(pb.SignatureValue, expected)
}

func parsePal24(rawBody []byte) (*pal24Postback, error) {
	trimmed := bytes.TrimSpace(rawBody)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]interface{}
		if err := decodeJSON(models.GatewayPal24, trimmed, &obj); err != nil {
			return nil, err
		}
		return pal24FromFields(flatten(obj)), nil
	}
	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return nil, payment.Malformed("pal24: invalid form body: %v", err)
	}
	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	return pal24FromFields(fields), nil
}

func pal24FromFields(f map[string]string) *pal24Postback {
	return &pal24Postback{
		InvID:          strings.TrimSpace(f["InvId"]),
		OutSum:         strings.TrimSpace(f["OutSum"]),
		CurrencyIn:     strings.TrimSpace(f["CurrencyIn"]),
		Status:         strings.TrimSpace(f["Status"]),
		TrsID:          strings.TrimSpace(f["TrsId"]),
		Custom:         f["custom"],
		SignatureValue: strings.TrimSpace(f["SignatureValue"]),
		ErrorMessage:   strings.TrimSpace(firstNonEmpty(f["ErrorMessage"], f["ErrorCode"])),
	}
}

func (p Pal24) ParsePayload(rawBody []byte) (*payment.WebhookPayload, error) {
	pb, err := parsePal24(rawBody)
	if err != nil {
		return nil, err
	}
	if pb.InvID == "" && pb.TrsID == "" {
		return nil, payment.Malformed("pal24: InvId and TrsId are missing")
	}
	status, err := Pal24Status(pb.Status)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(p.Name(), pb.OutSum)
	if err != nil {
		return nil, err
	}

	meta := metadataFromCarrier(pb.Custom)
	out := &payment.WebhookPayload{
		Gateway:     p.Name(),
		PaymentID:   firstNonEmpty(pb.InvID, meta["paymentId"]),
		ExternalID:  pb.TrsID,
		Status:      status,
		Amount:      amount,
		Currency:    firstNonEmpty(pb.CurrencyIn, "RUB"),
		RawMetadata: meta,
	}
	if status == payment.StatusFailed {
		out.ErrorMessage = firstNonEmpty(pb.ErrorMessage, "payment "+strings.ToLower(pb.Status))
	}
	return out.Finalize()
}

func Pal24Status(status string) (payment.Status, error) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS", "OVERPAID":
		return payment.StatusSuccess, nil
	case "FAIL", "UNDERPAID":
		return payment.StatusFailed, nil
	default:
		return "", payment.Malformed("pal24: unknown status %q", status)
	}
}

