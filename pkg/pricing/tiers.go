package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tier is one price point split out of an upstream group: the subset of its
// models that resolve to the same adjustment, and the effective ratio they
// publish at.
type Tier struct {
	// Suffix is appended to the channel name ("" for a single tier,
	// "-t0", "-t1", … when the group splits).
	Suffix string
	// Adjustment is the resolved adjustment shared by the tier's models.
	Adjustment float64
	// Ratio is the effective published ratio, base × (1 + Adjustment).
	Ratio float64
	// Models are the tier's members, sorted.
	Models []string
}

// PartitionTiers groups models by their resolved adjustment against one base
// ratio. Each distinct effective ratio becomes one tier; tiers pricing above
// the ceiling are dropped entirely. Tiers are ordered cheapest first.
func PartitionTiers(models []string, base float64, adj Adjustment, vendorOf func(string) string) []Tier {
	byKey := map[string][]string{}
	adjustments := map[string]float64{}

	for _, model := range models {
		vendor := ""
		if vendorOf != nil {
			vendor = vendorOf(model)
		}
		resolved := adj.Resolve(model, vendor)
		key := decimal.NewFromFloat(resolved).String()
		byKey[key] = append(byKey[key], model)
		adjustments[key] = resolved
	}

	tiers := make([]Tier, 0, len(byKey))
	for key, members := range byKey {
		resolved := adjustments[key]
		effective := Effective(base, resolved)
		if ExceedsCeiling(effective) {
			continue
		}
		ratio, _ := effective.Float64()
		sort.Strings(members)
		tiers = append(tiers, Tier{
			Adjustment: resolved,
			Ratio:      ratio,
			Models:     members,
		})
	}

	sort.Slice(tiers, func(i, j int) bool {
		if tiers[i].Ratio != tiers[j].Ratio {
			return tiers[i].Ratio < tiers[j].Ratio
		}
		return tiers[i].Models[0] < tiers[j].Models[0]
	})

	if len(tiers) > 1 {
		for i := range tiers {
			tiers[i].Suffix = fmt.Sprintf("-t%d", i)
		}
	}
	return tiers
}
