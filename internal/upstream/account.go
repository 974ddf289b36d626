package upstream

import (
	"context"
	"encoding/json"

	"github.com/agentstation/gatesync/internal/transport"
	"github.com/agentstation/gatesync/pkg/errors"
)

// Account wraps a gateway-style upstream reached through a user account
// (sub-gateway aggregator). It shares the gateway wire surface and adds a
// balance read used for probe cost sampling.
type Account struct {
	*Gateway
}

// NewAccount creates an account client.
func NewAccount(provider, baseURL, accessToken string, opts ...transport.Option) *Account {
	return &Account{Gateway: NewGateway(provider, baseURL, accessToken, opts...)}
}

// Balance implements BalanceReader, converting the upstream's quota units to
// a dollar-denominated balance.
func (a *Account) Balance(ctx context.Context) (float64, error) {
	var resp struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := a.client.Get(ctx, a.baseURL+"/api/user/self", &resp); err != nil {
		return 0, errors.WrapProvider(a.provider, "balance", err)
	}
	if !resp.Success {
		return 0, errors.WrapProvider(a.provider, "balance", errors.New(resp.Message))
	}

	var user struct {
		Quota int64 `json:"quota"`
	}
	if err := json.Unmarshal(resp.Data, &user); err != nil {
		return 0, errors.WrapParse("json", "user quota", err)
	}
	return float64(user.Quota) / quotaPerUnit, nil
}

// quotaPerUnit is the upstream's quota-units-per-dollar constant.
const quotaPerUnit = 500000
