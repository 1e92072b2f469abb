package payment

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Status is the gateway-agnostic outcome reported by a webhook.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusPending  Status = "pending"
	StatusRefunded Status = "refunded"
)

// WebhookPayload is a verified webhook normalized across gateways. Amount is
// always in major currency units.
type WebhookPayload struct {
	Gateway      string            `json:"gateway" validate:"required"`
	PaymentID    string            `json:"payment_id,omitempty" validate:"max=64"`
	ExternalID   string            `json:"external_id" validate:"required_without=PaymentID,max=191"`
	Status       Status            `json:"status" validate:"required,oneof=success failed pending refunded"`
	Amount       decimal.Decimal   `json:"amount" validate:"gte=0"`
	Currency     string            `json:"currency" validate:"required,min=2,max=10"`
	Metadata     Metadata          `json:"-"`
	RawMetadata  map[string]string `json:"metadata,omitempty"`
	GatewayID    *uint             `json:"gateway_id,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks the structural invariants every normalizer must uphold.
func (p *WebhookPayload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return Malformed("%s payload: %v", p.Gateway, err)
	}
	return nil
}

// Finalize fills the derived fields from RawMetadata and validates the
// payload. Normalizers call it last.
func (p *WebhookPayload) Finalize() (*WebhookPayload, error) {
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.RawMetadata == nil {
		p.RawMetadata = map[string]string{}
	}
	if p.PaymentID == "" {
		p.PaymentID = lookup(p.RawMetadata, "paymentId", "payment_id")
	}
	if p.GatewayID == nil {
		p.GatewayID = parseGatewayID(lookup(p.RawMetadata, "gatewayId", "gateway_id"))
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	p.Metadata = ParseMetadata(p.RawMetadata)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// OutcomeStatus tells the caller what the orchestrator did with a payload.
type OutcomeStatus string

const (
	// OutcomeProcessed means the ledger row transitioned to a terminal state.
	OutcomeProcessed OutcomeStatus = "processed"
	// OutcomeDuplicate means the row was already terminal; nothing changed.
	OutcomeDuplicate OutcomeStatus = "duplicate"
	// OutcomeAcknowledged means the payload was accepted without a transition.
	OutcomeAcknowledged OutcomeStatus = "acknowledged"
)

// Side effect step names.
const (
	StepActivateSubscription    = "activate_subscription"
	StepAddBalance              = "add_balance"
	StepAccrueReferralPoints    = "accrue_referral_points"
	StepAccruePartnerCommission = "accrue_partner_commission"
)

// SideEffectResult records one applier run. Err is set when the applier was
// rolled back.
type SideEffectResult struct {
	Step    string
	Applied bool
	Skipped string
	Err     error
}

// Outcome is the result of processing one payload.
type Outcome struct {
	Status        OutcomeStatus
	TransactionID string
	UserID        uint
	SideEffects   []SideEffectResult
}

// FailedSideEffects returns the appliers that were rolled back.
func (o *Outcome) FailedSideEffects() []SideEffectResult {
	var failed []SideEffectResult
	for _, se := range o.SideEffects {
		if se.Err != nil {
			failed = append(failed, se)
		}
	}
	return failed
}

// SideEffect returns the result recorded for step, if any.
func (o *Outcome) SideEffect(step string) (SideEffectResult, bool) {
	for _, se := range o.SideEffects {
		if se.Step == step {
			return se, true
		}
	}
	return SideEffectResult{}, false
}
