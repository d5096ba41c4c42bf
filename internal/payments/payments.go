// Package payments builds payment links for invoices through the eSewa and
// Khalti gateways.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"freelance/internal/core"
)

type Gateway string

const (
	GatewayEsewa  Gateway = "esewa"
	GatewayKhalti Gateway = "khalti"
)

var (
	ErrUnknownGateway       = errors.New("unknown payment gateway")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrGatewayRejected      = errors.New("payment gateway rejected the request")
)

// ParseGateway accepts gateway names case-insensitively.
func ParseGateway(s string) (Gateway, error) {
	switch g := Gateway(strings.ToLower(strings.TrimSpace(s))); g {
	case GatewayEsewa, GatewayKhalti:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGateway, s)
}

// Provider creates a payment link for one invoice.
type Provider interface {
	Gateway() Gateway
	CreateLink(ctx context.Context, inv core.Invoice) (string, error)
}

// Registry dispatches link requests to the configured providers.
type Registry struct {
	providers map[Gateway]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Gateway]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Gateway()] = p
	}
	return r
}

// Gateways lists the configured gateways in name order.
func (r *Registry) Gateways() []Gateway {
	out := make([]Gateway, 0, len(r.providers))
	for g := range r.providers {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) CreateLink(ctx context.Context, g Gateway, inv core.Invoice) (string, error) {
	p, ok := r.providers[g]
	if !ok {
		if g == GatewayEsewa || g == GatewayKhalti {
			return "", fmt.Errorf("%w: %s", ErrGatewayNotConfigured, g)
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownGateway, g)
	}
	return p.CreateLink(ctx, inv)
}

// orderID is the merchant-side reference sent to gateways.
func orderID(inv core.Invoice) string {
	if inv.Number != "" {
		return inv.Number
	}
	return fmt.Sprintf("INV-%d", inv.ID)
}
