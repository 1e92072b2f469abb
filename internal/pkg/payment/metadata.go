package payment

import (
	"strconv"
	"strings"

	"github.com/remnashop/backoffice/app/models"
)

// Metadata is the closed set of payment purposes carried by a payload.
type Metadata interface {
	PaymentType() string
}

// SubscriptionMetadata activates or extends a plan.
type SubscriptionMetadata struct {
	PlanID       string `validate:"required,max=64"`
	DurationDays int    `validate:"required,gt=0,lte=3650"`
}

func (SubscriptionMetadata) PaymentType() string { return models.PaymentTypeSubscription }

// BalanceMetadata tops up the user's balance by the paid amount.
type BalanceMetadata struct{}

func (BalanceMetadata) PaymentType() string { return models.PaymentTypeBalance }

// OtherMetadata carries no side effect beyond the ledger update.
type OtherMetadata struct {
	Type string
}

func (OtherMetadata) PaymentType() string { return models.PaymentTypeOther }

// IncompleteMetadata is a subscription payment that cannot be activated.
type IncompleteMetadata struct {
	Reason string
}

func (IncompleteMetadata) PaymentType() string { return models.PaymentTypeSubscription }

// ParseMetadata maps gateway metadata onto a variant. It returns nil when no
// payment type is present so the stored transaction metadata can be used.
func ParseMetadata(raw map[string]string) Metadata {
	switch t := strings.ToLower(lookup(raw, "type", "paymentType", "payment_type")); t {
	case "":
		return nil
	case models.PaymentTypeSubscription:
		return parseSubscription(raw)
	case models.PaymentTypeBalance:
		return BalanceMetadata{}
	default:
		return OtherMetadata{Type: t}
	}
}

func parseSubscription(raw map[string]string) Metadata {
	planRaw := lookup(raw, "planId", "plan_id")
	daysRaw := lookup(raw, "durationDays", "duration_days", "duration")
	if planRaw == "" || daysRaw == "" {
		return IncompleteMetadata{Reason: "planId and durationDays are required"}
	}
	days, err := strconv.Atoi(daysRaw)
	if err != nil {
		return IncompleteMetadata{Reason: "invalid durationDays " + strconv.Quote(daysRaw)}
	}
	meta := SubscriptionMetadata{PlanID: planRaw, DurationDays: days}
	if err := validate.Struct(meta); err != nil {
		return IncompleteMetadata{Reason: err.Error()}
	}
	return meta
}

func lookup(raw map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func parseGatewayID(s string) *uint {
	if s == "" {
		return nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return nil
	}
	v := uint(id)
	return &v
}
