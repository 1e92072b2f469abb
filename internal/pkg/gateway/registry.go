// Package gateway verifies and normalizes inbound payment webhooks. Each
// supported provider is one Adapter; the Registry dispatches on the gateway
// name taken from the webhook route.
package gateway

import (
	"sort"
	"strings"

	"github.com/remnashop/backoffice/internal/pkg/payment"
)

// Adapter authenticates and normalizes webhooks of one gateway.
type Adapter interface {
	// Name is the gateway name used in routes and the gateway table.
	Name() string
	// SignatureHeader names the request header carrying the signature. It
	// is empty for gateways that sign inside the body.
	SignatureHeader() string
	// ValidateSignature checks the raw body against the signature and the
	// configured secret. An empty secret never validates.
	ValidateSignature(rawBody []byte, signature, secret string) bool
	// ParsePayload turns an authenticated body into a WebhookPayload.
	ParsePayload(rawBody []byte) (*payment.WebhookPayload, error)
}

// Registry maps gateway names to adapters. It is built once at startup and
// read-only afterwards.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// DefaultRegistry registers every supported gateway.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Cryptopay{},
		YooKassa{},
		Heleket{},
		Pal24{},
		Platega{},
		Wata{},
		TelegramStars{},
	)
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Names returns the registered gateway names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
