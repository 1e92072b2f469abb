package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/remnashop/backoffice/internal/pkg/payment"
	"github.com/shopspring/decimal"
)

func decodeJSON(gateway string, body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return payment.Malformed("%s: invalid json: %v", gateway, err)
	}
	return nil
}

// parseAmount reads a major-unit amount given as a JSON string or number.
func parseAmount(gateway, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, payment.Malformed("%s: amount is missing", gateway)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, payment.Malformed("%s: invalid amount %q", gateway, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, payment.Malformed("%s: negative amount %s", gateway, raw)
	}
	return d, nil
}

// metadataFromCarrier reads the free-form field gateways echo back. A JSON
// object is flattened, anything else is taken as the payment id.
func metadataFromCarrier(carrier string) map[string]string {
	carrier = strings.TrimSpace(carrier)
	if carrier == "" {
		return map[string]string{}
	}
	if strings.HasPrefix(carrier, "{") {
		var obj map[string]interface{}
		dec := json.NewDecoder(strings.NewReader(carrier))
		dec.UseNumber()
		if err := dec.Decode(&obj); err == nil {
			return flatten(obj)
		}
	}
	return map[string]string{"paymentId": carrier}
}

// carrierString unwraps a carrier field that may hold a JSON string or an
// inline object.
func carrierString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

func flatten(obj map[string]interface{}) map[string]string {
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			if b, err := json.Marshal(val); err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTime accepts the timestamp formats the gateways send. Unparseable
// values yield the zero time and the payload gets its receive time.
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func numberString(n json.Number) string {
	return strings.TrimSpace(n.String())
}
