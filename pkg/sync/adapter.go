package sync

import (
	"context"
	"sort"

	"github.com/agentstation/gatesync/internal/probe"
	"github.com/agentstation/gatesync/internal/upstream"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/config"
	"github.com/agentstation/gatesync/pkg/errors"
)

// Adapter wraps one configured provider: it discovers upstream pricing,
// health-tests models, and materializes its contribution into the shared
// desired state.
type Adapter interface {
	Name() string
	Kind() string
	Run(ctx context.Context, state *catalog.DesiredState) *ProviderReport
}

// Prober issues model health probes. Satisfied by *probe.Tester; tests
// substitute fakes.
type Prober interface {
	TestModels(ctx context.Context, baseURL, apiKey string, models []string, channelType catalog.ChannelType, opts *probe.Options) (*probe.Result, error)
}

// Deps injects the adapter's collaborators. Zero fields fall back to the
// real implementations.
type Deps struct {
	// NewUpstream builds the upstream client for a provider.
	NewUpstream func(p config.Provider) upstream.Client
	// Prober issues health probes.
	Prober Prober
}

func (d Deps) withDefaults() Deps {
	if d.NewUpstream == nil {
		d.NewUpstream = func(p config.Provider) upstream.Client {
			switch p.Type {
			case config.TypeAccount:
				return upstream.NewAccount(p.Name, p.BaseURL, p.AccessToken)
			case config.TypeVendor:
				return upstream.NewVendor(p.Name, p.BaseURL, p.APIKey, p.Group, p.Ratio)
			default:
				return upstream.NewGateway(p.Name, p.BaseURL, p.AccessToken)
			}
		}
	}
	if d.Prober == nil {
		d.Prober = &probe.Tester{}
	}
	return d
}

// NewAdapter builds the adapter variant for a provider's type discriminator.
func NewAdapter(root *config.Config, p config.Provider, deps Deps) (Adapter, error) {
	deps = deps.withDefaults()
	switch p.Type {
	case config.TypeGateway, config.TypeVendor, config.TypeAccount:
		return &providerAdapter{
			root:   root,
			cfg:    p,
			client: deps.NewUpstream(p),
			prober: deps.Prober,
		}, nil
	default:
		return nil, &errors.ValidationError{Field: "type", Value: p.Type, Message: "unknown provider type"}
	}
}

// kindOrder fixes cross-provider ordering: gateways establish reference
// prices, vendors add their own, and account aggregators price relative to
// everything before them.
var kindOrder = map[string]int{
	config.TypeGateway: 0,
	config.TypeVendor:  1,
	config.TypeAccount: 2,
}

// sortAdapters orders adapters deterministically: by kind, then by name.
func sortAdapters(adapters []Adapter) {
	sort.SliceStable(adapters, func(i, j int) bool {
		oi, oj := kindOrder[adapters[i].Kind()], kindOrder[adapters[j].Kind()]
		if oi != oj {
			return oi < oj
		}
		return adapters[i].Name() < adapters[j].Name()
	})
}
