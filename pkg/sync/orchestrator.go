package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/gatesync/internal/tokens"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/config"
	"github.com/agentstation/gatesync/pkg/errors"
	"github.com/agentstation/gatesync/pkg/logging"
	"github.com/agentstation/gatesync/pkg/reconcile"
)

// TargetClient is the full surface the orchestrator needs from the target
// gateway: the mutation surface plus snapshot and health check.
type TargetClient interface {
	Target
	HealthCheck(ctx context.Context) error
	Snapshot(ctx context.Context) (*catalog.TargetSnapshot, error)
}

// Orchestrator ties one run together: health check, snapshot, aggregation
// pipeline, diff, and apply.
type Orchestrator struct {
	cfg    *config.Config
	target TargetClient
	deps   Deps
}

// New creates an orchestrator.
func New(cfg *config.Config, target TargetClient, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, target: target, deps: deps.withDefaults()}
}

// RunOptions select the scope of one run.
type RunOptions struct {
	// Only restricts the run to the named providers; empty means all.
	Only []string
	// DryRun stops before any mutation.
	DryRun bool
}

// Run executes one sync run. An unreachable or unauthenticated target is
// fatal and aborts before any provider processing; provider and apply
// failures are captured in the report. The returned error is non-nil only
// for fatal failures.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	report := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
	}
	ctx = logging.WithRunID(ctx, report.ID)
	log := logging.Ctx(ctx)

	if err := o.target.HealthCheck(ctx); err != nil {
		return nil, errors.WrapProvider("target", "health check", err)
	}

	providers, err := o.cfg.Select(opts.Only)
	if err != nil {
		return nil, err
	}

	snap, err := o.target.Snapshot(ctx)
	if err != nil {
		return nil, errors.WrapProvider("target", "snapshot", err)
	}
	log.Info().
		Int("channels", len(snap.Channels)).
		Int("models", len(snap.Models)).
		Int("providers", len(providers)).
		Msg("snapshot taken")

	state := catalog.NewDesiredState()
	state.Options.DefaultUseAutoGroup = true
	for from, to := range o.cfg.ModelMappings {
		if to != "" && from != to {
			state.MappingSources[from] = true
		}
	}

	adapters := make([]Adapter, 0, len(providers))
	for _, p := range providers {
		adapter, err := NewAdapter(o.cfg, p, o.deps)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	report.Providers = NewPipeline(adapters...).Run(ctx, state)

	report.Diff = reconcile.BuildSyncDiff(state, snap)
	report.Apply = Apply(ctx, o.target, report.Diff, opts.DryRun)

	report.Success = o.runSucceeded(report)
	report.Duration = time.Since(report.StartedAt)
	log.Info().
		Bool("success", report.Success).
		Int("changes", report.Diff.Summary.TotalChanges).
		Dur("duration", report.Duration).
		Msg("run finished")
	return report, nil
}

// runSucceeded: at least one provider succeeded (or none were configured)
// and the apply phase recorded no errors.
func (o *Orchestrator) runSucceeded(report *RunReport) bool {
	if len(report.Apply.Errors) > 0 {
		return false
	}
	if len(report.Providers) == 0 {
		return true
	}
	for _, p := range report.Providers {
		if p.Success {
			return true
		}
	}
	return false
}

// Reset deletes every engine-managed channel, model, option entry, and
// upstream token for the selected providers. It reuses the diff engine with
// an empty desired state scoped to those providers, so the same ownership
// protections apply.
func (o *Orchestrator) Reset(ctx context.Context, opts RunOptions) (*ResetReport, error) {
	report := &ResetReport{
		ID:            uuid.NewString(),
		TokensDeleted: map[string]int{},
	}
	ctx = logging.WithRunID(ctx, report.ID)

	if err := o.target.HealthCheck(ctx); err != nil {
		return nil, errors.WrapProvider("target", "health check", err)
	}
	providers, err := o.cfg.Select(opts.Only)
	if err != nil {
		return nil, err
	}
	snap, err := o.target.Snapshot(ctx)
	if err != nil {
		return nil, errors.WrapProvider("target", "snapshot", err)
	}

	state := catalog.NewDesiredState()
	for _, p := range providers {
		report.Providers = append(report.Providers, p.Name)
		state.ManagedProviders[p.Name] = true
	}
	// Resetting must not flip the auto-group toggle the target already has.
	if v, err := strconv.ParseBool(snap.Options[catalog.OptionDefaultUseAutoGroup]); err == nil {
		state.Options.DefaultUseAutoGroup = v
	}

	report.Diff = reconcile.BuildSyncDiff(state, snap)
	report.Apply = Apply(ctx, o.target, report.Diff, opts.DryRun)

	if !opts.DryRun {
		for _, p := range providers {
			if p.Type == config.TypeVendor {
				continue
			}
			mgr := tokens.NewManager(o.deps.NewUpstream(p), tokenSuffix+p.Name)
			deleted, err := mgr.DeleteAll(ctx)
			if err != nil {
				report.Apply.Errors = append(report.Apply.Errors, ApplyError{
					Phase:   "token delete",
					Key:     p.Name,
					Message: err.Error(),
				})
				continue
			}
			report.TokensDeleted[p.Name] = deleted
		}
	}

	report.Success = len(report.Apply.Errors) == 0
	return report, nil
}
