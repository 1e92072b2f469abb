package payment

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
		want Metadata
	}{
		{name: "no type", raw: map[string]string{"paymentId": "tx-1"}, want: nil},
		{name: "subscription", raw: map[string]string{"type": "subscription", "planId": "2", "durationDays": "30"}, want: SubscriptionMetadata{PlanID: "2", DurationDays: 30}},
		{name: "opaque plan id", raw: map[string]string{"type": "subscription", "planId": "p1", "durationDays": "30"}, want: SubscriptionMetadata{PlanID: "p1", DurationDays: 30}},
		{name: "snake case keys", raw: map[string]string{"type": "Subscription", "plan_id": "5", "duration_days": "7"}, want: SubscriptionMetadata{PlanID: "5", DurationDays: 7}},
		{name: "balance", raw: map[string]string{"type": "balance"}, want: BalanceMetadata{}},
		{name: "other", raw: map[string]string{"type": "gift"}, want: OtherMetadata{Type: "gift"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseMetadata(tt.raw))
		})
	}
}

func TestParseMetadataIncompleteSubscription(t *testing.T) {
	cases := []map[string]string{
		{"type": "subscription"},
		{"type": "subscription", "planId": "2"},
		{"type": "subscription", "planId": "2", "durationDays": "thirty"},
		{"type": "subscription", "planId": "2", "durationDays": "0"},
		{"type": "subscription", "planId": strings.Repeat("p", 65), "durationDays": "30"},
	}
	for _, raw := range cases {
		meta := ParseMetadata(raw)
		incomplete, ok := meta.(IncompleteMetadata)
		require.True(t, ok, "%v parsed as %#v", raw, meta)
		assert.NotEmpty(t, incomplete.Reason)
		assert.Equal(t, "subscription", incomplete.PaymentType())
	}
}

func TestWebhookPayloadFinalize(t *testing.T) {
	p, err := (&WebhookPayload{
		Gateway:     "platega",
		ExternalID:  "ext-1",
		Status:      StatusSuccess,
		Amount:      decimal.RequireFromString("10"),
		Currency:    " rub ",
		RawMetadata: map[string]string{"paymentId": "tx-1", "gatewayId": "4", "type": "balance"},
	}).Finalize()
	require.NoError(t, err)

	assert.Equal(t, "RUB", p.Currency)
	assert.Equal(t, "tx-1", p.PaymentID)
	require.NotNil(t, p.GatewayID)
	assert.Equal(t, uint(4), *p.GatewayID)
	assert.Equal(t, BalanceMetadata{}, p.Metadata)
	assert.False(t, p.Timestamp.IsZero())
}

func TestWebhookPayloadValidate(t *testing.T) {
	base := func() *WebhookPayload {
		return &WebhookPayload{
			Gateway:    "wata",
			ExternalID: "ext-1",
			Status:     StatusSuccess,
			Amount:     decimal.RequireFromString("1.00"),
			Currency:   "RUB",
		}
	}

	require.NoError(t, base().Validate())

	noIDs := base()
	noIDs.ExternalID = ""
	assert.ErrorIs(t, noIDs.Validate(), ErrMalformedPayload)

	onlyPaymentID := base()
	onlyPaymentID.ExternalID = ""
	onlyPaymentID.PaymentID = "tx-1"
	assert.NoError(t, onlyPaymentID.Validate())

	negative := base()
	negative.Amount = decimal.RequireFromString("-0.01")
	assert.ErrorIs(t, negative.Validate(), ErrMalformedPayload)

	badStatus := base()
	badStatus.Status = "chargeback"
	assert.ErrorIs(t, badStatus.Validate(), ErrMalformedPayload)

	noCurrency := base()
	noCurrency.Currency = ""
	assert.ErrorIs(t, noCurrency.Validate(), ErrMalformedPayload)
}

func TestSideEffectErrorUnwrap(t *testing.T) {
	cause := assert.AnError
	err := error(&SideEffectError{Step: StepAddBalance, TransactionID: "tx-1", UserID: 7, Amount: decimal.NewFromInt(5), Err: cause})

	assert.ErrorIs(t, err, ErrSideEffectFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "add_balance for transaction tx-1 (user 7, amount 5.00)")
}
