package sync

import (
	"context"

	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/constants"
	"github.com/agentstation/gatesync/pkg/logging"
)

// Pipeline runs provider adapters in a fixed deterministic order and folds
// their output into one desired state. Adapters run sequentially by design:
// account aggregators price relative to the aggregation state committed by
// everything before them, so parallelizing would make output
// non-deterministic.
type Pipeline struct {
	adapters []Adapter
}

// NewPipeline creates a pipeline over the given adapters, ordered gateway
// first, then vendor, then account, stable by name within a kind.
func NewPipeline(adapters ...Adapter) *Pipeline {
	sorted := make([]Adapter, len(adapters))
	copy(sorted, adapters)
	sortAdapters(sorted)
	return &Pipeline{adapters: sorted}
}

// Run executes every adapter to completion against the shared state and
// returns the per-provider reports. Each adapter runs under a hard
// per-provider timeout. A failed provider is recorded and the pipeline
// continues.
func (p *Pipeline) Run(ctx context.Context, state *catalog.DesiredState) []ProviderReport {
	reports := make([]ProviderReport, 0, len(p.adapters))
	for _, adapter := range p.adapters {
		pctx, cancel := context.WithTimeout(ctx, constants.ProviderTimeout)
		report := adapter.Run(pctx, state)
		cancel()
		if !report.Success {
			logging.Ctx(ctx).Error().
				Str("provider", adapter.Name()).
				Str("error", report.Error).
				Msg("provider failed")
		}
		reports = append(reports, *report)
	}

	p.foldModelOptions(state)
	return reports
}

// foldModelOptions mirrors the aggregated model map into the managed option
// maps after every adapter has run, so the cheapest-wins merge is reflected
// in the published ratios.
func (p *Pipeline) foldModelOptions(state *catalog.DesiredState) {
	for name, info := range state.Models {
		state.Options.ModelRatio[name] = info.Ratio
		if info.CompletionRatio > 0 {
			state.Options.CompletionRatio[name] = info.CompletionRatio
		}
	}
}
