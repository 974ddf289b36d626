// Package upstream implements the clients that read pricing/catalog data
// from heterogeneous upstream gateways and manage the API credentials this
// engine provisions on them. Every client exposes the same result shape
// upward regardless of the upstream's flavor.
package upstream

import (
	"context"

	"github.com/agentstation/gatesync/pkg/catalog"
)

// Client is the uniform surface the sync pipeline consumes for one upstream.
type Client interface {
	// Provider returns the configured provider name.
	Provider() string

	// FetchPricing reads the upstream catalog: groups, models, ratio maps,
	// and the vendor-id table.
	FetchPricing(ctx context.Context) (*catalog.PricingData, error)

	// ListTokens returns every credential currently provisioned upstream.
	ListTokens(ctx context.Context) ([]catalog.Token, error)

	// CreateToken provisions a credential scoped to one routing group.
	// Some upstreams never return the secret on create; callers re-list.
	CreateToken(ctx context.Context, name, group string) error

	// DeleteToken removes a credential by id.
	DeleteToken(ctx context.Context, id int) error
}

// BalanceReader is implemented by account-style upstreams that expose a
// spendable balance. The prober samples it around probes to estimate cost.
type BalanceReader interface {
	Balance(ctx context.Context) (float64, error)
}
