package pricing

import (
	"encoding/json"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustmentResolveFlat(t *testing.T) {
	adj := Flat(-0.2)
	assert.Equal(t, -0.2, adj.Resolve("gpt-4o", "openai"))
	assert.Equal(t, -0.2, adj.Resolve("anything", ""))
}

func TestAdjustmentResolveOrder(t *testing.T) {
	adj := PerKey(map[string]float64{
		"gpt-4o":   -0.5,
		"gpt-*":    -0.3,
		"openai":   -0.2,
		"text":     -0.1,
		DefaultKey: 0.0,
	})

	tests := []struct {
		name   string
		model  string
		vendor string
		want   float64
	}{
		{"exact key wins over glob", "gpt-4o", "openai", -0.5},
		{"glob wins over vendor", "gpt-4o-mini", "openai", -0.3},
		{"vendor wins over text", "o3-mini", "openai", -0.2},
		{"text wins over default", "claude-haiku", "", -0.1},
		{"default when nothing else matches", "claude-haiku", "anthropic", -0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adj.Resolve(tt.model, tt.vendor))
		})
	}
}

func TestAdjustmentResolveGlobDeterminism(t *testing.T) {
	// Two overlapping globs: sorted order means "gpt-*" is tried before
	// "gpt-4*", every run.
	adj := PerKey(map[string]float64{
		"gpt-4*": -0.4,
		"gpt-*":  -0.3,
	})
	for i := 0; i < 50; i++ {
		assert.Equal(t, -0.3, adj.Resolve("gpt-4o", ""))
	}
}

func TestAdjustmentResolveNoDefault(t *testing.T) {
	adj := PerKey(map[string]float64{"gpt-4o": -0.5})
	assert.Equal(t, 0.0, adj.Resolve("claude-haiku", "anthropic"))
}

func TestAdjustmentMin(t *testing.T) {
	assert.Equal(t, 0.15, Flat(0.15).Min())

	adj := PerKey(map[string]float64{
		"gpt-4o":   -0.5,
		"claude-*": 0.3,
		DefaultKey: -0.1,
	})
	assert.Equal(t, -0.5, adj.Min())
}

func TestAdjustmentUnmarshalYAML(t *testing.T) {
	var flat Adjustment
	require.NoError(t, yaml.Unmarshal([]byte("-0.25"), &flat))
	assert.Equal(t, -0.25, flat.Resolve("anything", ""))

	var perKey Adjustment
	require.NoError(t, yaml.Unmarshal([]byte("gpt-4o: -0.5\ndefault: 0.1\n"), &perKey))
	assert.Equal(t, -0.5, perKey.Resolve("gpt-4o", ""))
	assert.Equal(t, 0.1, perKey.Resolve("other", ""))

	var bad Adjustment
	assert.Error(t, yaml.Unmarshal([]byte("[1, 2]"), &bad))
}

func TestAdjustmentJSONRoundTrip(t *testing.T) {
	var adj Adjustment
	require.NoError(t, json.Unmarshal([]byte(`{"gpt-4o":-0.5}`), &adj))
	out, err := json.Marshal(adj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"gpt-4o":-0.5}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`0.2`), &adj))
	out, err = json.Marshal(adj)
	require.NoError(t, err)
	assert.Equal(t, "0.2", string(out))
}

func TestEffectiveIsExact(t *testing.T) {
	// 0.3 × 1.1 in float64 is 0.33000000000000007; decimals keep it at 0.33.
	got := Effective(0.3, 0.1)
	assert.True(t, got.Equal(decimal.RequireFromString("0.33")), "got %s", got)
}

func TestExceedsCeiling(t *testing.T) {
	assert.False(t, ExceedsCeiling(decimal.RequireFromString("1.0")))
	assert.False(t, ExceedsCeiling(decimal.RequireFromString("0.999")))
	assert.True(t, ExceedsCeiling(decimal.RequireFromString("1.0000001")))
}
