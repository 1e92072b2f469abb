package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{
		"cryptopay",
		"heleket",
		"pal24",
		"platega",
		"telegram_stars",
		"wata",
		"yookassa",
	}, r.Names())

	a, ok := r.Get(" YooKassa ")
	require.True(t, ok)
	assert.Equal(t, "yookassa", a.Name())

	_, ok = r.Get("stripe")
	assert.False(t, ok)
}

func TestAdaptersRejectEmptySecret(t *testing.T) {
	body := []byte(`{"id":"x"}`)
	for _, a := range DefaultRegistry().adapters {
		a := a
		t.Run(a.Name(), func(t *testing.T) {
			t.Parallel()
			assert.False(t, a.ValidateSignature(body, "anything", ""))
		})
	}
}

func TestMetadataFromCarrier(t *testing.T) {
	tests := []struct {
		name    string
		carrier string
		want    map[string]string
	}{
		{name: "empty", carrier: "", want: map[string]string{}},
		{name: "bare id", carrier: "tx-9", want: map[string]string{"paymentId": "tx-9"}},
		{
			name:    "json object",
			carrier: `{"type":"subscription","planId":3,"durationDays":"30","trial":false}`,
			want:    map[string]string{"type": "subscription", "planId": "3", "durationDays": "30", "trial": "false"},
		},
		{name: "broken json falls back to id", carrier: `{"type":`, want: map[string]string{"paymentId": `{"type":`}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, metadataFromCarrier(tt.carrier))
		})
	}
}
