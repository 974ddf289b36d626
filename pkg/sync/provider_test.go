package sync

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/gatesync/internal/probe"
	"github.com/agentstation/gatesync/internal/upstream"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/config"
	"github.com/agentstation/gatesync/pkg/pricing"
)

// fakeSource is an in-memory upstream: fixed pricing plus a token store.
type fakeSource struct {
	name    string
	pricing *catalog.PricingData
	tokens  []catalog.Token
	nextID  int
	balance float64
}

func (f *fakeSource) Provider() string { return f.name }

func (f *fakeSource) FetchPricing(context.Context) (*catalog.PricingData, error) {
	if f.pricing == nil {
		return nil, fmt.Errorf("upstream down")
	}
	return f.pricing, nil
}

func (f *fakeSource) ListTokens(context.Context) ([]catalog.Token, error) {
	out := make([]catalog.Token, len(f.tokens))
	copy(out, f.tokens)
	return out, nil
}

func (f *fakeSource) CreateToken(_ context.Context, name, group string) error {
	f.nextID++
	f.tokens = append(f.tokens, catalog.Token{
		ID:    f.nextID,
		Name:  name,
		Key:   fmt.Sprintf("key%d", f.nextID),
		Group: group,
	})
	return nil
}

func (f *fakeSource) DeleteToken(_ context.Context, id int) error {
	for i, t := range f.tokens {
		if t.ID == id {
			f.tokens = append(f.tokens[:i], f.tokens[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("token %d not found", id)
}

// fakeBalanceSource adds a balance read for account-style tests.
type fakeBalanceSource struct{ fakeSource }

func (f *fakeBalanceSource) Balance(context.Context) (float64, error) {
	return f.balance, nil
}

// fakeProber reports a configurable working subset at a fixed latency.
type fakeProber struct {
	broken map[string]bool
	avg    time.Duration
	probed []string
}

func (f *fakeProber) TestModels(_ context.Context, _, _ string, models []string, _ catalog.ChannelType, opts *probe.Options) (*probe.Result, error) {
	f.probed = append(f.probed, models...)
	res := &probe.Result{}
	for _, m := range models {
		ok := !f.broken[m]
		if opts != nil && opts.OnProbe != nil {
			opts.OnProbe(m, ok, f.avg)
		}
		if ok {
			res.WorkingModels = append(res.WorkingModels, m)
		}
	}
	sort.Strings(res.WorkingModels)
	if len(res.WorkingModels) > 0 {
		res.AvgResponseTime = f.avg
	}
	return res, nil
}

func gatewayPricing() *catalog.PricingData {
	return &catalog.PricingData{
		Groups: []catalog.GroupInfo{{
			Name:        "g1",
			Description: "everyone",
			Ratio:       0.4,
			Models:      []string{"gpt-x", "text-embedding-3"},
		}},
		Models: map[string]catalog.ModelInfo{
			"gpt-x": {
				Name:               "gpt-x",
				Ratio:              1.25,
				CompletionRatio:    4,
				VendorName:         "OpenAI",
				SupportedEndpoints: []string{"openai"},
			},
			"text-embedding-3": {
				Name:       "text-embedding-3",
				Ratio:      0.02,
				VendorName: "OpenAI",
			},
		},
		GroupRatios: map[string]float64{"g1": 0.4},
	}
}

func newTestAdapter(t *testing.T, root *config.Config, p config.Provider, source upstream.Client, prober Prober) Adapter {
	t.Helper()
	adapter, err := NewAdapter(root, p, Deps{
		NewUpstream: func(config.Provider) upstream.Client { return source },
		Prober:      prober,
	})
	require.NoError(t, err)
	return adapter
}

func TestProviderRunMaterializesGroup(t *testing.T) {
	source := &fakeSource{name: "providerA", pricing: gatewayPricing()}
	prober := &fakeProber{avg: 100 * time.Millisecond}
	root := &config.Config{}
	adapter := newTestAdapter(t, root, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
	}, source, prober)

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)

	require.True(t, report.Success, "error: %s", report.Error)
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 1, report.Models)
	assert.Equal(t, 1, report.Tokens.Created)
	assert.True(t, state.ManagedProviders["providerA"])

	require.Len(t, state.Channels, 1)
	ch := state.Channels[0]
	assert.Equal(t, "g1-providerA", ch.Name)
	assert.Equal(t, catalog.ChannelTypeOpenAI, ch.Type)
	assert.Equal(t, "sk-key1", ch.Key)
	assert.Equal(t, "http://up", ch.BaseURL)
	assert.Equal(t, "gpt-x", ch.Models, "the embedding model never reaches the channel")
	assert.Equal(t, "g1", ch.Group)
	assert.Equal(t, "providerA", ch.Tag)
	assert.Equal(t, catalog.ChannelStatusEnabled, ch.Status)
	assert.Equal(t, int64(50), ch.Priority, "100ms average maps to priority 50")
	assert.Equal(t, int64(50), ch.Weight)

	assert.Equal(t, 0.4, state.Options.GroupRatio["g1"])
	assert.Equal(t, "everyone", state.Options.UserUsableGroups["g1"])

	m := state.Models["gpt-x"]
	assert.Equal(t, 1.25, m.Ratio)
	assert.Equal(t, 4.0, m.CompletionRatio)
	assert.Equal(t, "openai", m.VendorName)
	assert.Equal(t, []string{"g1"}, m.Groups)

	assert.Equal(t, []string{"gpt-x"}, prober.probed, "non-text models are never probed")
}

func TestProviderRunFetchFailure(t *testing.T) {
	source := &fakeSource{name: "providerA"}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
	}, source, &fakeProber{})

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "upstream down")
	assert.Empty(t, state.ManagedProviders,
		"a failed provider stays outside the run's ownership scope")
}

func TestProviderRunDeadGroupDropsToken(t *testing.T) {
	source := &fakeSource{name: "providerA", pricing: gatewayPricing()}
	prober := &fakeProber{broken: map[string]bool{"gpt-x": true}}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
	}, source, prober)

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)

	assert.False(t, report.Success)
	assert.Empty(t, state.Channels)
	assert.False(t, state.ManagedProviders["providerA"])
	assert.Empty(t, source.tokens, "the dead group's token is revoked")
	assert.Equal(t, 1, report.Tokens.Deleted)
}

func TestProviderRunGroupAllowList(t *testing.T) {
	pd := gatewayPricing()
	pd.Groups = append(pd.Groups, catalog.GroupInfo{
		Name: "g2", Ratio: 0.5, Models: []string{"gpt-x"},
	})
	source := &fakeSource{name: "providerA", pricing: pd}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
		Groups: []string{"g2"},
	}, source, &fakeProber{avg: 50 * time.Millisecond})

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)

	require.True(t, report.Success)
	require.Len(t, state.Channels, 1)
	assert.Equal(t, "g2-providerA", state.Channels[0].Name)
}

func TestProviderRunBlacklist(t *testing.T) {
	root := &config.Config{
		Providers: []config.Provider{{Name: "providerA"}, {Name: "providerB"}},
		Blacklist: []string{"providerA/everyone"},
	}
	source := &fakeSource{name: "providerA", pricing: gatewayPricing()}
	adapter := newTestAdapter(t, root, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
	}, source, &fakeProber{})

	report := adapter.Run(context.Background(), catalog.NewDesiredState())
	assert.False(t, report.Success, "the only group matches the scoped blacklist by description")
}

func TestProviderRunCeilingPrune(t *testing.T) {
	pd := gatewayPricing()
	pd.Groups[0].Ratio = 1.2
	source := &fakeSource{name: "providerA", pricing: pd}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
	}, source, &fakeProber{})

	report := adapter.Run(context.Background(), catalog.NewDesiredState())
	assert.False(t, report.Success)
	assert.Empty(t, source.tokens, "no token is provisioned for a group that can never publish")
}

func TestProviderRunTierSplit(t *testing.T) {
	pd := gatewayPricing()
	pd.Groups[0].Models = []string{"gpt-x", "claude-y"}
	pd.Models["claude-y"] = catalog.ModelInfo{
		Name: "claude-y", Ratio: 0.8, VendorName: "Anthropic",
		SupportedEndpoints: []string{"openai"},
	}
	source := &fakeSource{name: "providerA", pricing: pd}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
		PriceAdjustment: pricing.PerKey(map[string]float64{"claude-y": -0.5}),
	}, source, &fakeProber{avg: 100 * time.Millisecond})

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)
	require.True(t, report.Success, "error: %s", report.Error)

	require.Len(t, state.Channels, 2)
	assert.Equal(t, "g1-t0-providerA", state.Channels[0].Name)
	assert.Equal(t, "claude-y", state.Channels[0].Models)
	assert.Equal(t, "g1-t1-providerA", state.Channels[1].Name)
	assert.Equal(t, "gpt-x", state.Channels[1].Models)

	assert.Equal(t, 0.2, state.Options.GroupRatio["g1-t0"])
	assert.Equal(t, 0.4, state.Options.GroupRatio["g1-t1"])
	assert.Contains(t, state.Options.UserUsableGroups, "g1-t0")
	assert.Contains(t, state.Options.UserUsableGroups, "g1-t1")
}

func TestProviderRunModelMapping(t *testing.T) {
	root := &config.Config{ModelMappings: map[string]string{"gpt-x-0125": "gpt-x"}}
	pd := gatewayPricing()
	pd.Groups[0].Models = []string{"gpt-x", "gpt-x-0125"}
	pd.Models["gpt-x-0125"] = catalog.ModelInfo{
		Name: "gpt-x-0125", Ratio: 0.9, VendorName: "OpenAI",
		SupportedEndpoints: []string{"openai"},
	}
	source := &fakeSource{name: "providerA", pricing: pd}
	adapter := newTestAdapter(t, root, config.Provider{
		Name: "providerA", Type: config.TypeGateway, BaseURL: "http://up", AccessToken: "t",
	}, source, &fakeProber{avg: 100 * time.Millisecond})

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)
	require.True(t, report.Success)

	require.Len(t, state.Channels, 1)
	assert.Equal(t, "gpt-x", state.Channels[0].Models,
		"the mapped and native names collapse onto one published model")
	assert.Equal(t, 0.9, state.Models["gpt-x"].Ratio,
		"when names collapse the cheapest backing ratio wins")
}

func TestProviderRunVendorUsesConfiguredKey(t *testing.T) {
	pd := &catalog.PricingData{
		Groups: []catalog.GroupInfo{{Name: "direct", Ratio: 0.6, Models: []string{"gpt-x"}}},
		Models: map[string]catalog.ModelInfo{
			"gpt-x": {Name: "gpt-x", Ratio: 0.6, VendorName: "OpenAI", SupportedEndpoints: []string{"openai"}},
		},
		GroupRatios: map[string]float64{"direct": 0.6},
	}
	source := &fakeSource{name: "direct-openai", pricing: pd}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "direct-openai", Type: config.TypeVendor, BaseURL: "http://v",
		APIKey: "sk-direct", Group: "direct", Ratio: 0.6,
	}, source, &fakeProber{avg: 100 * time.Millisecond})

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)
	require.True(t, report.Success, "error: %s", report.Error)

	require.Len(t, state.Channels, 1)
	assert.Equal(t, "sk-direct", state.Channels[0].Key)
	assert.Equal(t, 1, report.Tokens.Existing)
	assert.Empty(t, source.tokens, "vendor providers never touch the token API")
}

func TestProviderRunAccountPricesRelative(t *testing.T) {
	source := &fakeBalanceSource{fakeSource: fakeSource{
		name: "agg", pricing: gatewayPricing(), balance: 10,
	}}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "agg", Type: config.TypeAccount, BaseURL: "http://a", AccessToken: "t",
		Discount: 0.2,
	}, source, &fakeProber{avg: 100 * time.Millisecond})

	state := catalog.NewDesiredState()
	state.Options.GroupRatio["published-cheap"] = 0.5
	state.Options.GroupRatio["published-dear"] = 0.9

	report := adapter.Run(context.Background(), state)
	require.True(t, report.Success, "error: %s", report.Error)
	assert.Equal(t, 0.4, state.Options.GroupRatio["g1"],
		"cheapest published ratio 0.5 times (1 - 0.2)")
}

func TestProviderRunAccountFallsBackToOwnRatio(t *testing.T) {
	source := &fakeBalanceSource{fakeSource: fakeSource{
		name: "agg", pricing: gatewayPricing(), balance: 10,
	}}
	adapter := newTestAdapter(t, &config.Config{}, config.Provider{
		Name: "agg", Type: config.TypeAccount, BaseURL: "http://a", AccessToken: "t",
		Discount: 0.5,
	}, source, &fakeProber{avg: 100 * time.Millisecond})

	state := catalog.NewDesiredState()
	report := adapter.Run(context.Background(), state)
	require.True(t, report.Success)
	assert.Equal(t, 0.2, state.Options.GroupRatio["g1"],
		"no prior groups: the upstream's own ratio is the reference")
}

func TestRoutingScore(t *testing.T) {
	p, w := routingScore(100 * time.Millisecond)
	assert.Equal(t, int64(50), p)
	assert.Equal(t, int64(50), w)

	p, w = routingScore(0)
	assert.Equal(t, int64(100), p, "instant responses cap at 10000/100")
	assert.Equal(t, int64(100), w)

	p, w = routingScore(time.Hour)
	assert.Equal(t, int64(0), p)
	assert.Equal(t, int64(1), w, "weight never drops to zero")
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, matchesAny("gpt-4o-mini", []string{"gpt-4o*"}))
	assert.True(t, matchesAny("my-gpt-4o", []string{"gpt-4o"}), "plain entries match as substrings")
	assert.False(t, matchesAny("claude-3", []string{"gpt-*"}))
	assert.False(t, matchesAny("claude-3", nil))
}
