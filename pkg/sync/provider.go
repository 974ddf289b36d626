package sync

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/match"

	"github.com/agentstation/gatesync/internal/probe"
	"github.com/agentstation/gatesync/internal/tokens"
	"github.com/agentstation/gatesync/internal/upstream"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/config"
	"github.com/agentstation/gatesync/pkg/errors"
	"github.com/agentstation/gatesync/pkg/logging"
	"github.com/agentstation/gatesync/pkg/pricing"
	"github.com/agentstation/gatesync/pkg/vendors"
)

// tokenSuffix marks tokens provisioned by this engine; the provider name is
// appended so cleanup stays scoped per provider.
const tokenSuffix = "-sync-"

// providerAdapter processes one configured provider of any kind. The type
// discriminator only changes how it prices and where credentials come from;
// discovery, testing, and materialization are shared.
type providerAdapter struct {
	root   *config.Config
	cfg    config.Provider
	client upstream.Client
	prober Prober
}

func (a *providerAdapter) Name() string { return a.cfg.Name }
func (a *providerAdapter) Kind() string { return a.cfg.Type }

// Run executes the provider end to end and materializes its contribution
// into the shared state. Failures are captured in the report, never thrown.
func (a *providerAdapter) Run(ctx context.Context, state *catalog.DesiredState) *ProviderReport {
	log := logging.Ctx(ctx).With().Str("provider", a.cfg.Name).Logger()
	ctx = logging.WithLogger(ctx, &log)

	report := &ProviderReport{Name: a.cfg.Name, Kind: a.cfg.Type}

	pd, err := a.client.FetchPricing(ctx)
	if err != nil {
		return fail(report, err)
	}

	groups := a.filterGroups(ctx, pd)
	if len(groups) == 0 {
		return fail(report, errors.WrapProvider(a.cfg.Name, "filter", errors.ErrNoActiveGroups))
	}

	creds, mgr, err := a.ensureCredentials(ctx, groups)
	if err != nil {
		return fail(report, errors.WrapProvider(a.cfg.Name, "tokens", err))
	}
	report.Tokens = TokenStats{Created: creds.Created, Existing: creds.Existing, Deleted: creds.Deleted}

	for _, g := range groups {
		key, ok := creds.Tokens[g.Name]
		if !ok {
			continue
		}

		models := a.groupModels(&g, pd)
		if len(models) == 0 {
			log.Debug().Str("group", g.Name).Msg("no eligible models after filtering")
			continue
		}

		channelType := a.channelType(models)
		result, err := a.testGroup(ctx, key, modelNames(models), channelType)
		if err != nil {
			log.Warn().Err(err).Str("group", g.Name).Msg("health test failed")
			continue
		}
		if len(result.WorkingModels) == 0 {
			// A dead group keeps no credential: drop the token and exclude
			// the group from this run's output.
			a.dropToken(ctx, mgr, creds, g.Name, report)
			log.Warn().Str("group", g.Name).Msg("all probes failed, group excluded")
			continue
		}

		priority, weight := routingScore(result.AvgResponseTime)
		baseRatio := a.groupRatio(&g, state)

		working := indexModels(models, result.WorkingModels)
		tiers := pricing.PartitionTiers(result.WorkingModels, baseRatio, a.cfg.PriceAdjustment, func(m string) string {
			return working[m].vendor
		})
		if len(tiers) == 0 {
			log.Warn().Str("group", g.Name).Msg("every tier priced above ceiling, group excluded")
			continue
		}

		for _, tier := range tiers {
			a.materializeTier(state, &g, tier, channelType, key, priority, weight, working)
		}

		report.Groups++
		report.Models += len(result.WorkingModels)
		log.Info().
			Str("group", g.Name).
			Int("models", len(result.WorkingModels)).
			Int("tiers", len(tiers)).
			Dur("avg_latency", result.AvgResponseTime).
			Msg("group materialized")
	}

	if report.Groups == 0 {
		return fail(report, errors.WrapProvider(a.cfg.Name, "test", errors.ErrNoWorkingModels))
	}

	// Only a provider that actually contributed becomes part of the run's
	// ownership scope. A failed provider stays out, so the diff treats its
	// existing resources as foreign and leaves them untouched.
	state.ManagedProviders[a.cfg.Name] = true
	report.Success = true
	return report
}

func fail(report *ProviderReport, err error) *ProviderReport {
	report.Error = err.Error()
	return report
}

// filterGroups applies the group allow-list, the blacklist, the vendor
// allow-list, and the pre-provisioning pricing ceiling. Groups whose ratio
// times the minimum possible adjustment already exceeds the ceiling are
// dropped before any API calls are spent on them.
func (a *providerAdapter) filterGroups(ctx context.Context, pd *catalog.PricingData) []catalog.GroupInfo {
	log := logging.Ctx(ctx)
	allowed := toSet(a.cfg.Groups)
	blacklist := a.root.BlacklistFor(a.cfg.Name)
	minAdj := a.cfg.PriceAdjustment.Min()

	var out []catalog.GroupInfo
	for _, g := range pd.Groups {
		if len(allowed) > 0 && !allowed[g.Name] {
			continue
		}
		if blacklisted(&g, blacklist) {
			log.Debug().Str("group", g.Name).Msg("group blacklisted")
			continue
		}
		if len(a.cfg.Vendors) > 0 && !a.hasAllowedVendor(&g, pd) {
			continue
		}
		if pricing.ExceedsCeiling(pricing.Effective(g.Ratio, minAdj)) {
			log.Debug().Str("group", g.Name).Float64("ratio", g.Ratio).
				Msg("group priced above ceiling, skipped before provisioning")
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func blacklisted(g *catalog.GroupInfo, patterns []string) bool {
	name := strings.ToLower(g.Name)
	desc := strings.ToLower(g.Description)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if strings.Contains(name, p) || (desc != "" && strings.Contains(desc, p)) {
			return true
		}
	}
	return false
}

func (a *providerAdapter) hasAllowedVendor(g *catalog.GroupInfo, pd *catalog.PricingData) bool {
	allowed := toSet(a.cfg.Vendors)
	for _, m := range g.Models {
		if allowed[modelVendor(m, pd)] {
			return true
		}
	}
	return false
}

// ensureCredentials provisions one token per group for gateway and account
// providers. Vendor providers have no token API; the configured key serves
// every group.
func (a *providerAdapter) ensureCredentials(ctx context.Context, groups []catalog.GroupInfo) (*tokens.Result, *tokens.Manager, error) {
	if a.cfg.Type == config.TypeVendor {
		res := &tokens.Result{Tokens: map[string]string{}, IDs: map[string]int{}}
		for _, g := range groups {
			res.Tokens[g.Name] = a.cfg.APIKey
			res.Existing++
		}
		return res, nil, nil
	}

	mgr := tokens.NewManager(a.client, tokenSuffix+a.cfg.Name)
	res, err := mgr.Ensure(ctx, groups)
	if err != nil {
		return nil, nil, err
	}
	return res, mgr, nil
}

func (a *providerAdapter) dropToken(ctx context.Context, mgr *tokens.Manager, creds *tokens.Result, group string, report *ProviderReport) {
	if mgr == nil {
		return
	}
	id, ok := creds.IDs[group]
	if !ok {
		return
	}
	if err := a.client.DeleteToken(ctx, id); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("group", group).Msg("failed to delete token for dead group")
		return
	}
	report.Tokens.Deleted++
}

// groupModel pairs a published (possibly remapped) model name with the
// upstream data backing it.
type groupModel struct {
	name       string // published name, after mapping
	ratio      float64
	completion float64
	vendor     string
	endpoints  []string
}

// groupModels filters a group's models to testable candidates: text-capable,
// from an allowed vendor, matching the model allow-list, remapped, and
// deduplicated. When several upstream names collapse into one mapped name,
// the cheapest backing ratio wins.
func (a *providerAdapter) groupModels(g *catalog.GroupInfo, pd *catalog.PricingData) []groupModel {
	byName := map[string]groupModel{}

	for _, name := range g.Models {
		info := pd.Models[name]
		if !vendors.IsTextModel(name, info.SupportedEndpoints) {
			continue
		}

		vendor := modelVendor(name, pd)
		if len(a.cfg.Vendors) > 0 && !toSet(a.cfg.Vendors)[vendor] {
			continue
		}
		if len(a.cfg.Models) > 0 && !matchesAny(name, a.cfg.Models) {
			continue
		}

		mapped := name
		if to, ok := a.root.ModelMappings[name]; ok && to != "" {
			mapped = to
		}

		gm := groupModel{
			name:       mapped,
			ratio:      info.Ratio,
			completion: info.CompletionRatio,
			vendor:     vendor,
			endpoints:  info.SupportedEndpoints,
		}
		if existing, ok := byName[mapped]; ok && existing.ratio <= gm.ratio {
			continue
		}
		byName[mapped] = gm
	}

	out := make([]groupModel, 0, len(byName))
	for _, gm := range byName {
		out = append(out, gm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// matchesAny matches a model against allow-list entries, each a glob or a
// substring.
func matchesAny(model string, patterns []string) bool {
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?") {
			if match.Match(model, p) {
				return true
			}
			continue
		}
		if strings.Contains(model, p) {
			return true
		}
	}
	return false
}

func (a *providerAdapter) channelType(models []groupModel) catalog.ChannelType {
	var union []string
	for _, m := range models {
		union = append(union, m.endpoints...)
	}
	return vendors.ChannelTypeForEndpoints(union)
}

// testGroup probes the group's model set, sampling the account balance
// around the run when the upstream exposes one.
func (a *providerAdapter) testGroup(ctx context.Context, key string, models []string, channelType catalog.ChannelType) (*probe.Result, error) {
	opts := &probe.Options{}

	balancer, _ := a.client.(upstream.BalanceReader)
	var before float64
	if balancer != nil {
		if b, err := balancer.Balance(ctx); err == nil {
			before = b
			probes := 0
			opts.OnProbe = func(string, bool, time.Duration) { probes++ }
			defer func() {
				if after, err := balancer.Balance(ctx); err == nil && probes > 0 {
					logging.Ctx(ctx).Debug().
						Float64("spent", before-after).
						Int("probes", probes).
						Msg("probe cost sampled")
				}
			}()
		}
	}

	return a.prober.TestModels(ctx, a.cfg.BaseURL, key, models, channelType, opts)
}

// groupRatio resolves the base ratio a group publishes at. Account
// aggregators price relative to the cheapest group aggregated so far:
// cheapest × (1 − discount). Everything else uses the upstream's own ratio.
func (a *providerAdapter) groupRatio(g *catalog.GroupInfo, state *catalog.DesiredState) float64 {
	if a.cfg.Type != config.TypeAccount {
		return g.Ratio
	}

	cheapest, ok := state.CheapestGroupRatio()
	if !ok {
		cheapest = g.Ratio
	}
	return cheapest * (1 - a.cfg.Discount)
}

// materializeTier folds one price tier into the shared state: a channel, a
// published group with its ratio and label, and the tier's models.
func (a *providerAdapter) materializeTier(state *catalog.DesiredState, g *catalog.GroupInfo, tier pricing.Tier, channelType catalog.ChannelType, key string, priority, weight int64, working map[string]groupModel) {
	published := g.Name + tier.Suffix
	name := published + "-" + a.cfg.Name

	state.Channels = append(state.Channels, catalog.Channel{
		Name:     name,
		Type:     channelType,
		Key:      key,
		BaseURL:  a.cfg.BaseURL,
		Models:   catalog.SerializeModelList(tier.Models),
		Group:    published,
		Priority: priority,
		Weight:   weight,
		Status:   catalog.ChannelStatusEnabled,
		Tag:      a.cfg.Name,
	})

	state.Options.GroupRatio[published] = tier.Ratio
	label := g.Description
	if label == "" {
		label = published
	}
	state.Options.UserUsableGroups[published] = label

	for _, m := range tier.Models {
		gm := working[m]
		state.MergeModel(catalog.ModelInfo{
			Name:               m,
			Ratio:              gm.ratio,
			CompletionRatio:    gm.completion,
			Groups:             []string{published},
			VendorName:         gm.vendor,
			SupportedEndpoints: gm.endpoints,
		})
	}
}

// routingScore derives routing priority and load-balancing weight from
// average probe latency: faster groups get both.
func routingScore(avg time.Duration) (priority, weight int64) {
	priority = int64(math.Round(10000 / (float64(avg.Milliseconds()) + 100)))
	weight = priority
	if weight <= 0 {
		weight = 1
	}
	return priority, weight
}

func modelVendor(name string, pd *catalog.PricingData) string {
	if info, ok := pd.Models[name]; ok && info.VendorName != "" {
		return strings.ToLower(info.VendorName)
	}
	return vendors.Infer(name)
}

func modelNames(models []groupModel) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.name
	}
	return out
}

func indexModels(models []groupModel, names []string) map[string]groupModel {
	byName := make(map[string]groupModel, len(models))
	for _, m := range models {
		byName[m.name] = m
	}
	out := make(map[string]groupModel, len(names))
	for _, n := range names {
		out[n] = byName[n]
	}
	return out
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}
