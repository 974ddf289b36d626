// Package reconcile computes the minimal set of create/update/delete
// operations that converge the target gateway onto a desired state. The diff
// is pure: no I/O, no clock, fully determined by its inputs.
package reconcile

import "github.com/agentstation/gatesync/pkg/catalog"

// ChannelUpdate represents an update to an existing channel. Existing
// carries the target-assigned id forward.
type ChannelUpdate struct {
	Name     string          `json:"name"`
	Existing catalog.Channel `json:"existing"`
	New      catalog.Channel `json:"new"`
}

// ChannelChangeset represents changes to channels.
type ChannelChangeset struct {
	Added   []catalog.Channel `json:"added"`
	Updated []ChannelUpdate   `json:"updated"`
	Removed []catalog.Channel `json:"removed"`
}

// ModelUpdate represents an update to an existing model record.
type ModelUpdate struct {
	Name     string            `json:"name"`
	Existing catalog.ModelMeta `json:"existing"`
	New      catalog.ModelMeta `json:"new"`
}

// ModelChangeset represents changes to model records.
type ModelChangeset struct {
	Added   []catalog.ModelMeta `json:"added"`
	Updated []ModelUpdate       `json:"updated"`
	Removed []catalog.ModelMeta `json:"removed"`
}

// OptionSet represents a managed option key written for the first time.
type OptionSet struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OptionUpdate represents a change to a managed option key.
type OptionUpdate struct {
	Key      string `json:"key"`
	Existing string `json:"existing"`
	New      string `json:"new"`
}

// OptionChangeset represents changes to managed option keys. Options are
// never removed; out-of-scope entries are preserved inside the merged value.
type OptionChangeset struct {
	Added   []OptionSet    `json:"added"`
	Updated []OptionUpdate `json:"updated"`
}

// Summary provides summary statistics for a diff.
type Summary struct {
	ChannelsAdded   int `json:"channels_added"`
	ChannelsUpdated int `json:"channels_updated"`
	ChannelsRemoved int `json:"channels_removed"`
	ModelsAdded     int `json:"models_added"`
	ModelsUpdated   int `json:"models_updated"`
	ModelsRemoved   int `json:"models_removed"`
	OptionsChanged  int `json:"options_changed"`
	TotalChanges    int `json:"total_changes"`
}

// SyncDiff is the full set of operations one apply pass executes.
type SyncDiff struct {
	Channels ChannelChangeset `json:"channels"`
	Models   ModelChangeset   `json:"models"`
	Options  OptionChangeset  `json:"options"`
	// CleanupOrphans asks the apply executor to additionally request the
	// target-side purge of models bound to no channel.
	CleanupOrphans bool    `json:"cleanup_orphans"`
	Summary        Summary `json:"summary"`
}

// Empty reports whether the diff proposes no operations.
func (d *SyncDiff) Empty() bool {
	return d.Summary.TotalChanges == 0
}

func (d *SyncDiff) calculateSummary() {
	s := Summary{
		ChannelsAdded:   len(d.Channels.Added),
		ChannelsUpdated: len(d.Channels.Updated),
		ChannelsRemoved: len(d.Channels.Removed),
		ModelsAdded:     len(d.Models.Added),
		ModelsUpdated:   len(d.Models.Updated),
		ModelsRemoved:   len(d.Models.Removed),
		OptionsChanged:  len(d.Options.Added) + len(d.Options.Updated),
	}
	s.TotalChanges = s.ChannelsAdded + s.ChannelsUpdated + s.ChannelsRemoved +
		s.ModelsAdded + s.ModelsUpdated + s.ModelsRemoved + s.OptionsChanged
	d.Summary = s
}
