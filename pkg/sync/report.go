// Package sync ties the run together: provider adapters aggregate upstream
// data into a desired state, the diff engine computes operations, and the
// apply executor converges the target.
package sync

import (
	"time"

	"github.com/agentstation/gatesync/pkg/reconcile"
)

// TokenStats counts credential lifecycle events for one provider.
type TokenStats struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Deleted  int `json:"deleted"`
}

// ProviderReport is the outcome of running one provider adapter. Failures
// are recorded here and never abort the run.
type ProviderReport struct {
	Name    string     `json:"name"`
	Kind    string     `json:"kind"`
	Success bool       `json:"success"`
	Groups  int        `json:"groups"`
	Models  int        `json:"models"`
	Tokens  TokenStats `json:"tokens"`
	Error   string     `json:"error,omitempty"`
}

// ApplyError is one failed apply operation.
type ApplyError struct {
	Phase   string `json:"phase"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ApplyReport is the outcome of executing a diff. Errors being non-empty is
// the sole apply-phase failure signal.
type ApplyReport struct {
	DryRun          bool         `json:"dry_run"`
	ChannelsCreated int          `json:"channels_created"`
	ChannelsUpdated int          `json:"channels_updated"`
	ChannelsDeleted int          `json:"channels_deleted"`
	ModelsCreated   int          `json:"models_created"`
	ModelsUpdated   int          `json:"models_updated"`
	ModelsDeleted   int          `json:"models_deleted"`
	OptionsUpdated  int          `json:"options_updated"`
	OrphansRemoved  int          `json:"orphans_removed"`
	Errors          []ApplyError `json:"errors,omitempty"`
}

// RunReport is the final report of one sync run.
type RunReport struct {
	ID        string              `json:"id"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
	DryRun    bool                `json:"dry_run"`
	Providers []ProviderReport    `json:"providers"`
	Diff      *reconcile.SyncDiff `json:"diff"`
	Apply     *ApplyReport        `json:"apply,omitempty"`
	Success   bool                `json:"success"`
}

// ResetReport is the outcome of a reset run.
type ResetReport struct {
	ID            string              `json:"id"`
	Providers     []string            `json:"providers"`
	TokensDeleted map[string]int      `json:"tokens_deleted"`
	Diff          *reconcile.SyncDiff `json:"diff"`
	Apply         *ApplyReport        `json:"apply"`
	Success       bool                `json:"success"`
}
