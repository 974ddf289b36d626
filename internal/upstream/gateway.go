package upstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentstation/gatesync/internal/transport"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/constants"
	"github.com/agentstation/gatesync/pkg/errors"
)

// Gateway talks to a gateway-style upstream: public pricing endpoint plus an
// authenticated token-management API.
type Gateway struct {
	provider string
	baseURL  string
	client   *transport.Client
}

// NewGateway creates a gateway client. The access token authenticates the
// token-management API; the pricing endpoint is public on this flavor.
func NewGateway(provider, baseURL, accessToken string, opts ...transport.Option) *Gateway {
	return &Gateway{
		provider: provider,
		baseURL:  baseURL,
		client:   transport.New(provider, &transport.BearerAuth{Token: accessToken}, opts...),
	}
}

// Provider implements Client.
func (g *Gateway) Provider() string { return g.provider }

// FetchPricing implements Client.
func (g *Gateway) FetchPricing(ctx context.Context) (*catalog.PricingData, error) {
	var raw json.RawMessage
	if err := g.client.Get(ctx, g.baseURL+"/api/pricing", &raw); err != nil {
		return nil, errors.WrapProvider(g.provider, "pricing", err)
	}
	return ParsePricing(g.provider, raw)
}

// tokenPage is the paginated token-list response. Older targets return a
// bare array in data; newer ones wrap it in items/total.
type tokenPage struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenItems struct {
	Items []catalog.Token `json:"items"`
	Total int             `json:"total"`
}

// ListTokens implements Client, walking every page.
func (g *Gateway) ListTokens(ctx context.Context) ([]catalog.Token, error) {
	var all []catalog.Token
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/api/token/?p=%d&size=%d", g.baseURL, page, constants.DefaultPageSize)
		var resp tokenPage
		if err := g.client.Get(ctx, url, &resp); err != nil {
			return nil, errors.WrapProvider(g.provider, "list tokens", err)
		}
		if !resp.Success {
			return nil, errors.WrapProvider(g.provider, "list tokens", errors.New(resp.Message))
		}

		batch, err := decodeTokenPage(resp.Data)
		if err != nil {
			return nil, errors.WrapProvider(g.provider, "list tokens", err)
		}
		all = append(all, batch...)
		if len(batch) < constants.DefaultPageSize {
			return all, nil
		}
	}
}

func decodeTokenPage(data json.RawMessage) ([]catalog.Token, error) {
	var wrapped tokenItems
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Items != nil {
		return wrapped.Items, nil
	}
	var plain []catalog.Token
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, errors.WrapParse("json", "token page", err)
	}
	return plain, nil
}

// CreateToken implements Client. The created token is unlimited and
// non-expiring; the upstream does not return the secret, so callers re-list.
func (g *Gateway) CreateToken(ctx context.Context, name, group string) error {
	body := map[string]any{
		"name":            name,
		"group":           group,
		"unlimited_quota": true,
		"expired_time":    -1,
		"remain_quota":    0,
	}
	var resp tokenPage
	if err := g.client.Post(ctx, g.baseURL+"/api/token/", body, &resp); err != nil {
		return errors.WrapProvider(g.provider, "create token", err)
	}
	if !resp.Success {
		return errors.WrapProvider(g.provider, "create token", errors.New(resp.Message))
	}
	return nil
}

// DeleteToken implements Client.
func (g *Gateway) DeleteToken(ctx context.Context, id int) error {
	url := fmt.Sprintf("%s/api/token/%d", g.baseURL, id)
	if err := g.client.Delete(ctx, url); err != nil {
		return errors.WrapProvider(g.provider, "delete token", err)
	}
	return nil
}
