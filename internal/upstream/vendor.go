package upstream

import (
	"context"

	"github.com/agentstation/gatesync/internal/transport"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/errors"
	"github.com/agentstation/gatesync/pkg/vendors"
)

// Vendor talks to a direct vendor account exposing an OpenAI-compatible
// model listing. It publishes no pricing of its own; the adapter prices its
// single group from configuration. Credentials are the account's own API
// key, so token management is not supported.
type Vendor struct {
	provider string
	baseURL  string
	group    string
	ratio    float64
	client   *transport.Client
}

// NewVendor creates a direct-vendor client. The group name and ratio come
// from provider configuration since the vendor has no group concept.
func NewVendor(provider, baseURL, apiKey, group string, ratio float64, opts ...transport.Option) *Vendor {
	return &Vendor{
		provider: provider,
		baseURL:  baseURL,
		group:    group,
		ratio:    ratio,
		client:   transport.New(provider, &transport.BearerAuth{Token: apiKey}, opts...),
	}
}

// Provider implements Client.
func (v *Vendor) Provider() string { return v.provider }

// FetchPricing implements Client by listing the account's models into a
// single configured group.
func (v *Vendor) FetchPricing(ctx context.Context) (*catalog.PricingData, error) {
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := v.client.Get(ctx, v.baseURL+"/v1/models", &resp); err != nil {
		return nil, errors.WrapProvider(v.provider, "list models", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.WrapProvider(v.provider, "list models", errors.ErrNoActiveGroups)
	}

	pd := newPricingData()
	group := catalog.GroupInfo{
		Name:  v.group,
		Ratio: v.ratio,
	}
	for _, m := range resp.Data {
		group.Models = append(group.Models, m.ID)
		pd.Models[m.ID] = catalog.ModelInfo{
			Name:       m.ID,
			Ratio:      v.ratio,
			Groups:     []string{v.group},
			VendorName: vendors.Infer(m.ID),
		}
		pd.ModelRatios[m.ID] = v.ratio
	}
	pd.Groups = []catalog.GroupInfo{group}
	pd.GroupRatios[v.group] = v.ratio
	return pd, nil
}

// ListTokens implements Client. Vendor accounts have no token API; the
// configured key is the channel credential.
func (v *Vendor) ListTokens(context.Context) ([]catalog.Token, error) {
	return nil, nil
}

// CreateToken implements Client.
func (v *Vendor) CreateToken(context.Context, string, string) error {
	return errors.New("vendor accounts do not support token management")
}

// DeleteToken implements Client.
func (v *Vendor) DeleteToken(context.Context, int) error {
	return errors.New("vendor accounts do not support token management")
}
