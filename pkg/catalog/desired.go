package catalog

// ManagedOptionMaps is the structured view of the JSON-blob configuration
// keys this engine manages on the target.
type ManagedOptionMaps struct {
	GroupRatio          map[string]float64 `json:"group_ratio"`
	UserUsableGroups    map[string]string  `json:"user_usable_groups"`
	AutoGroups          []string           `json:"auto_groups"`
	ModelRatio          map[string]float64 `json:"model_ratio"`
	CompletionRatio     map[string]float64 `json:"completion_ratio"`
	DefaultUseAutoGroup bool               `json:"default_use_auto_group"`
}

// Managed option keys as stored on the target.
const (
	OptionGroupRatio          = "GroupRatio"
	OptionUserUsableGroups    = "UserUsableGroups"
	OptionAutoGroups          = "AutoGroups"
	OptionModelRatio          = "ModelRatio"
	OptionCompletionRatio     = "CompletionRatio"
	OptionDefaultUseAutoGroup = "DefaultUseAutoGroup"
)

// ManagedOptionKeys lists every option key the engine owns entries in.
var ManagedOptionKeys = []string{
	OptionGroupRatio,
	OptionUserUsableGroups,
	OptionAutoGroups,
	OptionModelRatio,
	OptionCompletionRatio,
	OptionDefaultUseAutoGroup,
}

// NewManagedOptionMaps returns an empty, allocated option map set.
func NewManagedOptionMaps() ManagedOptionMaps {
	return ManagedOptionMaps{
		GroupRatio:       map[string]float64{},
		UserUsableGroups: map[string]string{},
		ModelRatio:       map[string]float64{},
		CompletionRatio:  map[string]float64{},
	}
}

// DesiredState is the computed end state of one sync run: the channels,
// models, and option entries the target should converge to, plus the
// ownership scope of the run.
type DesiredState struct {
	Channels         []Channel
	Models           map[string]ModelInfo
	Options          ManagedOptionMaps
	ManagedProviders map[string]bool
	MappingSources   map[string]bool
}

// NewDesiredState returns an empty desired state.
func NewDesiredState() *DesiredState {
	return &DesiredState{
		Models:           map[string]ModelInfo{},
		Options:          NewManagedOptionMaps(),
		ManagedProviders: map[string]bool{},
		MappingSources:   map[string]bool{},
	}
}

// MergeModel folds one provider's view of a model into the aggregated model
// map. When two sources disagree on price, the lowest ratio wins.
func (d *DesiredState) MergeModel(m ModelInfo) {
	existing, ok := d.Models[m.Name]
	if !ok {
		d.Models[m.Name] = m
		return
	}

	loser := m
	if m.Ratio < existing.Ratio {
		loser = existing
		groups := existing.Groups
		existing = m
		existing.Groups = groups
	}
	existing.Groups = appendUnique(existing.Groups, m.Groups...)
	// Metadata missing on the winning source is backfilled from the other.
	if existing.CompletionRatio == 0 {
		existing.CompletionRatio = loser.CompletionRatio
	}
	if existing.VendorName == "" {
		existing.VendorName = loser.VendorName
	}
	if len(existing.SupportedEndpoints) == 0 {
		existing.SupportedEndpoints = loser.SupportedEndpoints
	}
	d.Models[m.Name] = existing
}

// CheapestGroupRatio returns the lowest group ratio materialized so far
// across every published tier. Account aggregators price relative to it.
func (d *DesiredState) CheapestGroupRatio() (float64, bool) {
	var cheapest float64
	found := false
	for _, r := range d.Options.GroupRatio {
		if !found || r < cheapest {
			cheapest = r
			found = true
		}
	}
	return cheapest, found
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			dst = append(dst, s)
			seen[s] = true
		}
	}
	return dst
}
