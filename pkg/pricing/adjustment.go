// Package pricing implements price-adjustment resolution and the tier
// partitioning that splits one upstream group into per-price channels.
// Ratio arithmetic runs on decimals so equal adjustments always land in the
// same tier and ceiling comparisons are exact.
package pricing

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tidwall/match"

	"github.com/agentstation/gatesync/pkg/constants"
)

// DefaultKey is the per-key adjustment entry that applies when no other key
// matches.
const DefaultKey = "default"

// Adjustment is a price-adjustment spec: either a single flat multiplier
// delta or a per-key override map with a default. A value of 0.1 raises the
// published price by 10%; negative values discount it.
type Adjustment struct {
	flat   float64
	perKey map[string]float64
	isMap  bool
}

// Flat returns a flat adjustment.
func Flat(v float64) Adjustment {
	return Adjustment{flat: v}
}

// PerKey returns a per-key adjustment. Lookup falls back to the DefaultKey
// entry, then to zero.
func PerKey(overrides map[string]float64) Adjustment {
	m := make(map[string]float64, len(overrides))
	for k, v := range overrides {
		m[k] = v
	}
	return Adjustment{perKey: m, isMap: true}
}

// Resolve returns the adjustment for one model. Lookup order: exact model
// glob match, then vendor key, then the "text" model-type key, then default.
func (a Adjustment) Resolve(model, vendor string) float64 {
	if !a.isMap {
		return a.flat
	}
	if v, ok := a.perKey[model]; ok {
		return v
	}
	// Glob patterns are tried in sorted order so resolution is deterministic
	// when more than one pattern matches.
	for _, pattern := range a.sortedGlobs() {
		if match.Match(model, pattern) {
			return a.perKey[pattern]
		}
	}
	if vendor != "" {
		if v, ok := a.perKey[vendor]; ok {
			return v
		}
	}
	if v, ok := a.perKey["text"]; ok {
		return v
	}
	return a.perKey[DefaultKey]
}

// Min returns the smallest adjustment any key can resolve to. Used to prune
// groups whose cheapest possible price already exceeds the ceiling before
// spending API calls on them.
func (a Adjustment) Min() float64 {
	if !a.isMap {
		return a.flat
	}
	min := a.perKey[DefaultKey]
	for _, v := range a.perKey {
		if v < min {
			min = v
		}
	}
	return min
}

// UnmarshalYAML accepts either a bare number or a key→number map, probed
// structurally.
func (a *Adjustment) UnmarshalYAML(unmarshal func(any) error) error {
	var flat float64
	if err := unmarshal(&flat); err == nil {
		*a = Flat(flat)
		return nil
	}
	var overrides map[string]float64
	if err := unmarshal(&overrides); err != nil {
		return fmt.Errorf("price adjustment must be a number or a map: %w", err)
	}
	*a = PerKey(overrides)
	return nil
}

// UnmarshalJSON mirrors UnmarshalYAML for JSON-encoded configuration.
func (a *Adjustment) UnmarshalJSON(data []byte) error {
	var flat float64
	if err := json.Unmarshal(data, &flat); err == nil {
		*a = Flat(flat)
		return nil
	}
	var overrides map[string]float64
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("price adjustment must be a number or a map: %w", err)
	}
	*a = PerKey(overrides)
	return nil
}

// MarshalJSON renders the adjustment back in its source shape.
func (a Adjustment) MarshalJSON() ([]byte, error) {
	if a.isMap {
		return json.Marshal(a.perKey)
	}
	return json.Marshal(a.flat)
}

// Effective computes base × (1 + adjustment) as a decimal.
func Effective(base, adjustment float64) decimal.Decimal {
	return decimal.NewFromFloat(base).
		Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(adjustment)))
}

// ExceedsCeiling reports whether an effective ratio prices above
// constants.RatioCeiling and must be excluded from publication.
func ExceedsCeiling(ratio decimal.Decimal) bool {
	return ratio.GreaterThan(decimal.NewFromFloat(constants.RatioCeiling))
}

func (a Adjustment) sortedGlobs() []string {
	var globs []string
	for pattern := range a.perKey {
		if isGlob(pattern) {
			globs = append(globs, pattern)
		}
	}
	sort.Strings(globs)
	return globs
}

func isGlob(pattern string) bool {
	for _, r := range pattern {
		if r == '*' || r == '?' {
			return true
		}
	}
	return false
}
