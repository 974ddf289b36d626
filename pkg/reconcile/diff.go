package reconcile

import (
	"sort"
	"strings"

	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/vendors"
)

// BuildSyncDiff computes the operations that converge the target snapshot
// onto the desired state. Every delete is scoped to resources owned by the
// run's managed provider set; resources tagged to other providers are never
// touched and protect the models they reference.
func BuildSyncDiff(desired *catalog.DesiredState, snap *catalog.TargetSnapshot) *SyncDiff {
	diff := &SyncDiff{CleanupOrphans: true}

	protectedModels := protectedModelSet(desired, snap)
	protectedGroups := protectedGroupSet(desired, snap)

	diffChannels(diff, desired, snap)
	diffModels(diff, desired, snap, protectedModels)
	diffOptions(diff, desired, snap, protectedGroups, protectedModels)

	diff.calculateSummary()
	return diff
}

// managedBy reports whether a channel belongs to the current run's scope.
func managedBy(desired *catalog.DesiredState, ch *catalog.Channel) bool {
	return desired.ManagedProviders[ch.Tag]
}

// protectedModelSet collects model names still referenced by any channel
// tagged to a provider outside the active set. Those models are never
// proposed for deletion.
func protectedModelSet(desired *catalog.DesiredState, snap *catalog.TargetSnapshot) map[string]bool {
	protected := map[string]bool{}
	for i := range snap.Channels {
		ch := &snap.Channels[i]
		if managedBy(desired, ch) {
			continue
		}
		for _, m := range ch.ModelList() {
			protected[m] = true
		}
	}
	return protected
}

// protectedGroupSet collects group names owned by out-of-scope channels.
// Their option-map entries are preserved verbatim.
func protectedGroupSet(desired *catalog.DesiredState, snap *catalog.TargetSnapshot) map[string]bool {
	protected := map[string]bool{}
	for i := range snap.Channels {
		ch := &snap.Channels[i]
		if managedBy(desired, ch) || ch.Group == "" {
			continue
		}
		protected[ch.Group] = true
	}
	return protected
}

func diffChannels(diff *SyncDiff, desired *catalog.DesiredState, snap *catalog.TargetSnapshot) {
	// Channels tagged to providers outside the active set are invisible:
	// never matched, updated, or deleted.
	existingByName := map[string]*catalog.Channel{}
	for i := range snap.Channels {
		ch := &snap.Channels[i]
		if managedBy(desired, ch) {
			existingByName[ch.Name] = ch
		}
	}

	desiredNames := map[string]bool{}
	for i := range desired.Channels {
		want := desired.Channels[i]
		desiredNames[want.Name] = true

		existing, ok := existingByName[want.Name]
		if !ok {
			diff.Channels.Added = append(diff.Channels.Added, want)
			continue
		}
		if !channelEqual(existing, &want) {
			want.ID = existing.ID
			diff.Channels.Updated = append(diff.Channels.Updated, ChannelUpdate{
				Name:     want.Name,
				Existing: *existing,
				New:      want,
			})
		}
	}

	for i := range snap.Channels {
		ch := &snap.Channels[i]
		if managedBy(desired, ch) && !desiredNames[ch.Name] {
			diff.Channels.Removed = append(diff.Channels.Removed, *ch)
		}
	}
	sortChannelChangeset(&diff.Channels)
}

// channelEqual compares two channels after normalizing away volatile and
// identity fields: the id is target-assigned and the model list is order
// insensitive.
func channelEqual(a, b *catalog.Channel) bool {
	return a.Type == b.Type &&
		a.Key == b.Key &&
		a.BaseURL == b.BaseURL &&
		normalizeModels(a.Models) == normalizeModels(b.Models) &&
		a.Group == b.Group &&
		a.Priority == b.Priority &&
		a.Weight == b.Weight &&
		a.Status == b.Status &&
		a.Tag == b.Tag
}

func normalizeModels(serialized string) string {
	return catalog.SerializeModelList(catalog.ParseModelList(serialized))
}

func diffModels(diff *SyncDiff, desired *catalog.DesiredState, snap *catalog.TargetSnapshot, protected map[string]bool) {
	vendorIDs := vendorTable(snap.Vendors)

	existingByName := map[string]*catalog.ModelMeta{}
	for i := range snap.Models {
		existingByName[snap.Models[i].ModelName] = &snap.Models[i]
	}

	names := make([]string, 0, len(desired.Models))
	for name := range desired.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info := desired.Models[name]
		want := catalog.ModelMeta{
			ModelName:    name,
			VendorID:     vendorIDs[info.VendorName],
			Endpoints:    catalog.SerializeEndpoints(vendors.EndpointMap(info.SupportedEndpoints)),
			Status:       catalog.ModelStatusEnabled,
			SyncOfficial: true,
		}

		existing, ok := existingByName[name]
		if !ok {
			diff.Models.Added = append(diff.Models.Added, want)
			continue
		}
		if existing.VendorID != want.VendorID ||
			existing.Endpoints != want.Endpoints ||
			existing.Status != want.Status ||
			existing.SyncOfficial != want.SyncOfficial {
			want.ID = existing.ID
			diff.Models.Updated = append(diff.Models.Updated, ModelUpdate{
				Name:     name,
				Existing: *existing,
				New:      want,
			})
		}
	}

	for i := range snap.Models {
		m := &snap.Models[i]
		if _, wanted := desired.Models[m.ModelName]; wanted {
			continue
		}
		if protected[m.ModelName] {
			continue
		}
		// Models the engine does not own are left alone, except mapping
		// sources: old names renamed away must be purged.
		if !m.SyncOfficial && !desired.MappingSources[m.ModelName] {
			continue
		}
		diff.Models.Removed = append(diff.Models.Removed, *m)
	}
	sortModelChangeset(&diff.Models)
}

// vendorTable maps vendor names (lowercased) to target vendor ids,
// augmented with alias matching for vendors whose target label has no exact
// lowercase match.
func vendorTable(targetVendors []catalog.Vendor) map[string]int {
	byLabel := make(map[string]int, len(targetVendors))
	for _, v := range targetVendors {
		byLabel[strings.ToLower(v.Name)] = v.ID
	}

	table := map[string]int{}
	for label, id := range byLabel {
		table[label] = id
	}
	for _, v := range targetVendors {
		for canonical, aliases := range vendorAliasIndex() {
			if table[canonical] != 0 {
				continue
			}
			for _, alias := range aliases {
				if strings.EqualFold(alias, v.Name) {
					table[canonical] = v.ID
					break
				}
			}
		}
	}
	return table
}

func vendorAliasIndex() map[string][]string {
	index := map[string][]string{}
	for _, canonical := range []string{
		"openai", "anthropic", "google", "alibaba", "zhipu", "baidu",
		"tencent", "bytedance", "iflytek", "moonshot", "deepseek",
	} {
		index[canonical] = vendors.Aliases(canonical)
	}
	return index
}

func sortChannelChangeset(cs *ChannelChangeset) {
	sort.Slice(cs.Added, func(i, j int) bool { return cs.Added[i].Name < cs.Added[j].Name })
	sort.Slice(cs.Updated, func(i, j int) bool { return cs.Updated[i].Name < cs.Updated[j].Name })
	sort.Slice(cs.Removed, func(i, j int) bool { return cs.Removed[i].Name < cs.Removed[j].Name })
}

func sortModelChangeset(cs *ModelChangeset) {
	sort.Slice(cs.Added, func(i, j int) bool { return cs.Added[i].ModelName < cs.Added[j].ModelName })
	sort.Slice(cs.Updated, func(i, j int) bool { return cs.Updated[i].Name < cs.Updated[j].Name })
	sort.Slice(cs.Removed, func(i, j int) bool { return cs.Removed[i].ModelName < cs.Removed[j].ModelName })
}
