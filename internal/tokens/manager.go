package tokens

import (
	"context"
	"strings"

	"github.com/agentstation/gatesync/internal/upstream"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/logging"
)

// Result reports one Ensure pass: the group→key map for surviving groups and
// the lifecycle counts.
type Result struct {
	// Tokens maps group name to the token secret, normalized with the
	// conventional key prefix.
	Tokens map[string]string
	// IDs maps group name to the upstream token id, for later deletion when
	// a group's entire health-test set fails.
	IDs      map[string]int
	Created  int
	Existing int
	Deleted  int
}

// Manager reconciles upstream credentials for one provider.
type Manager struct {
	client upstream.Client
	suffix string
}

// NewManager creates a manager. The suffix marks this provider's tokens and
// scopes stale-credential cleanup.
func NewManager(client upstream.Client, suffix string) *Manager {
	return &Manager{client: client, suffix: suffix}
}

// Ensure provisions one token per group: existing tokens are reused by name
// match, stale tokens carrying this provider's suffix are deleted, and
// missing ones are created then re-listed to obtain the secret. A failure on
// one group degrades to skipping that group, never aborting the rest.
func (m *Manager) Ensure(ctx context.Context, groups []catalog.GroupInfo) (*Result, error) {
	log := logging.Ctx(ctx)
	result := &Result{Tokens: map[string]string{}, IDs: map[string]int{}}

	existing, err := m.client.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]catalog.Token, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	// Desired names are computed once, in group order, so collisions resolve
	// first-seen-wins and identical inputs always produce identical names.
	taken := map[string]bool{}
	desired := make(map[string]string, len(groups)) // group → token name
	for _, g := range groups {
		desired[g.Name] = Name(g.Name, m.suffix, taken)
	}

	// Stale cleanup: tokens carrying our suffix whose name is no longer
	// desired belong to groups that disappeared upstream.
	wanted := map[string]bool{}
	for _, name := range desired {
		wanted[name] = true
	}
	for _, t := range existing {
		if !strings.HasSuffix(t.Name, m.suffix) || wanted[t.Name] {
			continue
		}
		if err := m.client.DeleteToken(ctx, t.ID); err != nil {
			log.Warn().Err(err).Str("token", t.Name).Msg("failed to delete stale token")
			continue
		}
		result.Deleted++
	}

	var created []string
	for _, g := range groups {
		name := desired[g.Name]
		if t, ok := byName[name]; ok {
			result.Tokens[g.Name] = NormalizeKey(t.Key)
			result.IDs[g.Name] = t.ID
			result.Existing++
			continue
		}
		if err := m.client.CreateToken(ctx, name, g.Name); err != nil {
			log.Warn().Err(err).Str("group", g.Name).Msg("failed to create token, skipping group")
			continue
		}
		result.Created++
		created = append(created, g.Name)
	}

	// The create response omits the secret on some upstreams; one re-list
	// recovers the keys for everything just created.
	if len(created) > 0 {
		refreshed, err := m.client.ListTokens(ctx)
		if err != nil {
			return nil, err
		}
		refreshedByName := make(map[string]catalog.Token, len(refreshed))
		for _, t := range refreshed {
			refreshedByName[t.Name] = t
		}
		for _, group := range created {
			t, ok := refreshedByName[desired[group]]
			if !ok || t.Key == "" {
				log.Warn().Str("group", group).Msg("created token missing from re-list, skipping group")
				continue
			}
			result.Tokens[group] = NormalizeKey(t.Key)
			result.IDs[group] = t.ID
		}
	}

	return result, nil
}

// DeleteAll removes every token carrying this provider's suffix. Used by the
// reset command.
func (m *Manager) DeleteAll(ctx context.Context) (int, error) {
	existing, err := m.client.ListTokens(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, t := range existing {
		if !strings.HasSuffix(t.Name, m.suffix) {
			continue
		}
		if err := m.client.DeleteToken(ctx, t.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("token", t.Name).Msg("failed to delete token")
			continue
		}
		deleted++
	}
	return deleted, nil
}
