package gateway

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"strings"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/payment"
)

// Wata verifies RSA signatures made with the gateway's private key. The
// configured secret is the PEM encoded public key.
type Wata struct{}

type wataCallback struct {
	TransactionID     string          `json:"transactionId"`
	TransactionStatus string          `json:"transactionStatus"`
	Amount            json.Number     `json:"amount"`
	Currency          string          `json:"currency"`
	OrderID           string          `json:"orderId"`
	PaymentTime       string          `json:"paymentTime"`
	ErrorCode         json.RawMessage `json:"errorCode"`
	ErrorDescription  string          `json:"errorDescription"`
}

func (Wata) Name() string { return models.GatewayWata }

func (Wata) SignatureHeader() string { return "X-Signature" }

// ValidateSignature checks an RSA PKCS#1 v1.5 SHA-512 signature over the raw body.
func (Wata) ValidateSignature(rawBody []byte, signature, secret string) bool {
	pub, err := parseRSAPublicKey(secret)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(sig) == 0 {
		return false
	}
	digest := sha512.Sum512(rawBody)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA512, digest[:], sig) == nil
}

func parseRSAPublicKey(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemKey)))
	if block == nil {
		return nil, payment.Malformed("wata: public key is not PEM")
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if pub, ok := key.(*rsa.PublicKey); ok {
			return pub, nil
		}
		return nil, payment.Malformed("wata: public key is not RSA")
	}
	return x509.ParsePKCS1PublicKey(block.Bytes)
}

func (w Wata) ParsePayload(rawBody []byte) (*payment.WebhookPayload, error) {
	var cb wataCallback
	if err := decodeJSON(w.Name(), rawBody, &cb); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cb.TransactionID) == "" {
		return nil, payment.Malformed("wata: transactionId is missing")
	}
	status, err := WataStatus(cb.TransactionStatus)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(w.Name(), numberString(cb.Amount))
	if err != nil {
		return nil, err
	}

	out := &payment.WebhookPayload{
		Gateway:     w.Name(),
		PaymentID:   strings.TrimSpace(cb.OrderID),
		ExternalID:  cb.TransactionID,
		Status:      status,
		Amount:      amount,
		Currency:    cb.Currency,
		RawMetadata: map[string]string{},
		Timestamp:   parseTime(cb.PaymentTime),
	}
	if status == payment.StatusFailed {
		out.ErrorMessage = firstNonEmpty(cb.ErrorDescription, carrierString(cb.ErrorCode), "payment declined")
	}
	return out.Finalize()
}

func WataStatus(status string) (payment.Status, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return payment.StatusSuccess, nil
	case "declined":
		return payment.StatusFailed, nil
	case "pending", "created":
		return payment.StatusPending, nil
	default:
		return "", payment.Malformed("wata: unknown transaction status %q", status)
	}
}
