package sync

import (
	"context"

	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/logging"
	"github.com/agentstation/gatesync/pkg/reconcile"
)

// Target is the mutation surface the apply executor needs from the target
// gateway client.
type Target interface {
	CreateChannel(ctx context.Context, ch *catalog.Channel) error
	UpdateChannel(ctx context.Context, ch *catalog.Channel) error
	DeleteChannel(ctx context.Context, id int) error
	CreateModel(ctx context.Context, m *catalog.ModelMeta) error
	UpdateModel(ctx context.Context, m *catalog.ModelMeta) error
	DeleteModel(ctx context.Context, id int) error
	UpdateOption(ctx context.Context, key, value string) error
	CleanupOrphanModels(ctx context.Context) (int, error)
}

// Apply executes a diff against the target: options first, then channels,
// then models, then the orphan purge — channels must exist before the model
// catalog referencing them is considered non-orphaned. Every operation
// failure is recorded and never prevents the remaining operations from
// running. In dry-run mode nothing is mutated.
func Apply(ctx context.Context, target Target, diff *reconcile.SyncDiff, dryRun bool) *ApplyReport {
	report := &ApplyReport{DryRun: dryRun}
	if dryRun {
		report.ChannelsCreated = len(diff.Channels.Added)
		report.ChannelsUpdated = len(diff.Channels.Updated)
		report.ChannelsDeleted = len(diff.Channels.Removed)
		report.ModelsCreated = len(diff.Models.Added)
		report.ModelsUpdated = len(diff.Models.Updated)
		report.ModelsDeleted = len(diff.Models.Removed)
		report.OptionsUpdated = len(diff.Options.Added) + len(diff.Options.Updated)
		return report
	}

	log := logging.Ctx(ctx)
	record := func(phase, key string, err error) bool {
		if err == nil {
			return false
		}
		log.Error().Err(err).Str("phase", phase).Str("key", key).Msg("apply operation failed")
		report.Errors = append(report.Errors, ApplyError{Phase: phase, Key: key, Message: err.Error()})
		return true
	}

	for _, op := range diff.Options.Added {
		if !record("option create", op.Key, target.UpdateOption(ctx, op.Key, op.Value)) {
			report.OptionsUpdated++
		}
	}
	for _, op := range diff.Options.Updated {
		if !record("option update", op.Key, target.UpdateOption(ctx, op.Key, op.New)) {
			report.OptionsUpdated++
		}
	}

	for i := range diff.Channels.Added {
		ch := diff.Channels.Added[i]
		if !record("channel create", ch.Name, target.CreateChannel(ctx, &ch)) {
			report.ChannelsCreated++
		}
	}
	for i := range diff.Channels.Updated {
		ch := diff.Channels.Updated[i].New
		if !record("channel update", ch.Name, target.UpdateChannel(ctx, &ch)) {
			report.ChannelsUpdated++
		}
	}
	for _, ch := range diff.Channels.Removed {
		if !record("channel delete", ch.Name, target.DeleteChannel(ctx, ch.ID)) {
			report.ChannelsDeleted++
		}
	}

	for i := range diff.Models.Added {
		m := diff.Models.Added[i]
		if !record("model create", m.ModelName, target.CreateModel(ctx, &m)) {
			report.ModelsCreated++
		}
	}
	for i := range diff.Models.Updated {
		m := diff.Models.Updated[i].New
		if !record("model update", m.ModelName, target.UpdateModel(ctx, &m)) {
			report.ModelsUpdated++
		}
	}
	for _, m := range diff.Models.Removed {
		if !record("model delete", m.ModelName, target.DeleteModel(ctx, m.ID)) {
			report.ModelsDeleted++
		}
	}

	if diff.CleanupOrphans {
		removed, err := target.CleanupOrphanModels(ctx)
		if !record("orphan cleanup", "", err) {
			report.OrphansRemoved = removed
		}
	}

	return report
}
