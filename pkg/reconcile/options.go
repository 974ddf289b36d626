package reconcile

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/agentstation/gatesync/pkg/catalog"
)

// diffOptions computes the managed-option operations. Every JSON-blob key is
// merge-protected: entries belonging to out-of-scope providers are preserved
// verbatim from the target's current value, then desired entries overlay
// them. Only keys whose final value differs from the current one are emitted.
func diffOptions(diff *SyncDiff, desired *catalog.DesiredState, snap *catalog.TargetSnapshot, protectedGroups, protectedModels map[string]bool) {
	current := snap.Options
	opts := desired.Options

	groupRatio := mergeFloatMap(current[catalog.OptionGroupRatio], protectedGroups, opts.GroupRatio)
	emitOption(diff, current, catalog.OptionGroupRatio, marshalFloatMap(groupRatio))

	usable := mergeStringMap(current[catalog.OptionUserUsableGroups], protectedGroups, opts.UserUsableGroups)
	emitOption(diff, current, catalog.OptionUserUsableGroups, marshalStringMap(usable))

	emitOption(diff, current, catalog.OptionAutoGroups,
		marshalGroupOrder(current, groupRatio, protectedGroups, opts))

	modelRatio := mergeFloatMap(current[catalog.OptionModelRatio], protectedModels, opts.ModelRatio)
	emitOption(diff, current, catalog.OptionModelRatio, marshalFloatMap(modelRatio))

	completion := mergeFloatMap(current[catalog.OptionCompletionRatio], protectedModels, opts.CompletionRatio)
	emitOption(diff, current, catalog.OptionCompletionRatio, marshalFloatMap(completion))

	emitOption(diff, current, catalog.OptionDefaultUseAutoGroup,
		strconv.FormatBool(opts.DefaultUseAutoGroup))
}

// marshalGroupOrder builds the auto-routing group order: the union of
// protected and desired groups sorted ascending by resolved ratio, so
// failover prefers the cheapest group first.
func marshalGroupOrder(current map[string]string, merged map[string]float64, protectedGroups map[string]bool, opts catalog.ManagedOptionMaps) string {
	currentRatios := map[string]float64{}
	_ = json.Unmarshal([]byte(current[catalog.OptionGroupRatio]), &currentRatios)

	seen := map[string]bool{}
	var groups []string

	var currentOrder []string
	_ = json.Unmarshal([]byte(current[catalog.OptionAutoGroups]), &currentOrder)
	for _, g := range currentOrder {
		if protectedGroups[g] && !seen[g] {
			groups = append(groups, g)
			seen[g] = true
		}
	}
	for g := range opts.GroupRatio {
		if !seen[g] {
			groups = append(groups, g)
			seen[g] = true
		}
	}

	ratioOf := func(g string) float64 {
		if r, ok := opts.GroupRatio[g]; ok {
			return r
		}
		if r, ok := merged[g]; ok {
			return r
		}
		if r, ok := currentRatios[g]; ok {
			return r
		}
		return 1.0
	}
	sort.Slice(groups, func(i, j int) bool {
		ri, rj := ratioOf(groups[i]), ratioOf(groups[j])
		if ri != rj {
			return ri < rj
		}
		return groups[i] < groups[j]
	})

	if groups == nil {
		groups = []string{}
	}
	b, _ := json.Marshal(groups)
	return string(b)
}

func emitOption(diff *SyncDiff, current map[string]string, key, value string) {
	existing, present := current[key]
	if !present {
		diff.Options.Added = append(diff.Options.Added, OptionSet{Key: key, Value: value})
		return
	}
	if !semanticallyEqual(existing, value) {
		diff.Options.Updated = append(diff.Options.Updated, OptionUpdate{
			Key:      key,
			Existing: existing,
			New:      value,
		})
	}
}

// semanticallyEqual compares option values by parsed content, so formatting
// differences in a hand-edited blob do not cause churn.
func semanticallyEqual(a, b string) bool {
	if a == b {
		return true
	}
	var av, bv any
	if json.Unmarshal([]byte(a), &av) != nil || json.Unmarshal([]byte(b), &bv) != nil {
		return false
	}
	ab, _ := json.Marshal(av)
	bb, _ := json.Marshal(bv)
	return string(ab) == string(bb)
}

// mergeFloatMap preserves current entries whose key is protected, then
// overlays desired entries.
func mergeFloatMap(currentRaw string, protected map[string]bool, want map[string]float64) map[string]float64 {
	currentMap := map[string]float64{}
	_ = json.Unmarshal([]byte(currentRaw), &currentMap)

	out := map[string]float64{}
	for k, v := range currentMap {
		if protected[k] {
			out[k] = v
		}
	}
	for k, v := range want {
		out[k] = v
	}
	return out
}

func mergeStringMap(currentRaw string, protected map[string]bool, want map[string]string) map[string]string {
	currentMap := map[string]string{}
	_ = json.Unmarshal([]byte(currentRaw), &currentMap)

	out := map[string]string{}
	for k, v := range currentMap {
		if protected[k] {
			out[k] = v
		}
	}
	for k, v := range want {
		out[k] = v
	}
	return out
}

func marshalFloatMap(m map[string]float64) string {
	b, _ := json.Marshal(m)
	return string(b)
}

func marshalStringMap(m map[string]string) string {
	b, _ := json.Marshal(m)
	return string(b)
}
