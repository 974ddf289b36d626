// Package catalog defines the data model shared across the gatesync system:
// upstream pricing data, desired sync state, and the target gateway's
// resource shapes.
package catalog

import (
	"encoding/json"
	"sort"
	"strings"
)

// ChannelType identifies the request dialect a channel speaks. Values follow
// the target gateway's channel-type enumeration.
type ChannelType int

const (
	// ChannelTypeOpenAI is the OpenAI chat-completions dialect.
	ChannelTypeOpenAI ChannelType = 1
	// ChannelTypeAnthropic is the Anthropic messages dialect.
	ChannelTypeAnthropic ChannelType = 14
	// ChannelTypeGemini is the Google Gemini generateContent dialect.
	ChannelTypeGemini ChannelType = 24
	// ChannelTypeOpenAIResponses is the OpenAI responses dialect.
	ChannelTypeOpenAIResponses ChannelType = 43
)

// Channel status values used by the target gateway.
const (
	ChannelStatusEnabled  = 1
	ChannelStatusDisabled = 2
)

// Model status values used by the target gateway.
const (
	ModelStatusEnabled  = 1
	ModelStatusDisabled = 0
)

// GroupInfo describes one upstream routing/pricing bucket after filtering.
// Instances are rebuilt from upstream data on every run.
type GroupInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Ratio       float64     `json:"ratio"`
	Models      []string    `json:"models"`
	ChannelType ChannelType `json:"channel_type"`
}

// ModelInfo is the aggregated view of one model across all upstream sources.
type ModelInfo struct {
	Name               string   `json:"name"`
	Ratio              float64  `json:"ratio"`
	CompletionRatio    float64  `json:"completion_ratio,omitempty"`
	Groups             []string `json:"groups,omitempty"`
	VendorName         string   `json:"vendor_name,omitempty"`
	SupportedEndpoints []string `json:"supported_endpoints,omitempty"`
	ModelPrice         *float64 `json:"model_price,omitempty"`
}

// Channel is a target-side routing resource. Name is the stable identity key;
// ID is target-assigned and only known after creation. Tag carries the owning
// provider name and scopes ownership decisions.
type Channel struct {
	ID       int         `json:"id,omitempty"`
	Name     string      `json:"name"`
	Type     ChannelType `json:"type"`
	Key      string      `json:"key,omitempty"`
	BaseURL  string      `json:"base_url"`
	Models   string      `json:"models"`
	Group    string      `json:"group"`
	Priority int64       `json:"priority"`
	Weight   int64       `json:"weight"`
	Status   int         `json:"status"`
	Tag      string      `json:"tag"`
	Remark   string      `json:"remark,omitempty"`
}

// ModelList returns the channel's model list parsed from its serialized form.
func (c *Channel) ModelList() []string {
	return ParseModelList(c.Models)
}

// ModelMeta is a target-side model catalog record. SyncOfficial marks records
// owned by this engine; it is required for safe auto-deletion and is never
// set on user-created models.
type ModelMeta struct {
	ID           int    `json:"id,omitempty"`
	ModelName    string `json:"model_name"`
	VendorID     int    `json:"vendor_id,omitempty"`
	Endpoints    string `json:"endpoints,omitempty"`
	Status       int    `json:"status"`
	SyncOfficial bool   `json:"sync_official"`
}

// Vendor is a target-side vendor record.
type Vendor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Token is an upstream API credential this engine provisions per
// (provider, group) pair. Reused across runs by name match.
type Token struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Key    string `json:"key,omitempty"`
	Group  string `json:"group"`
	Status int    `json:"status"`
}

// PricingData is the uniform result shape of an upstream catalog read,
// regardless of which payload shape the upstream returned.
type PricingData struct {
	Groups           []GroupInfo
	Models           map[string]ModelInfo
	GroupRatios      map[string]float64
	ModelRatios      map[string]float64
	CompletionRatios map[string]float64
	VendorIDToName   map[int]string
}

// TargetSnapshot is the target gateway's current state, read once per run.
type TargetSnapshot struct {
	Channels []Channel
	Models   []ModelMeta
	Vendors  []Vendor
	Options  map[string]string
}

// ParseModelList splits a serialized channel model list.
func ParseModelList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SerializeModelList joins model names into the channel wire form. The list
// is sorted so that identical sets always serialize identically.
func SerializeModelList(models []string) string {
	sorted := make([]string, len(models))
	copy(sorted, models)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// SerializeEndpoints renders a per-endpoint path map in a stable form.
// encoding/json sorts map keys, which keeps the diff quiet across runs.
func SerializeEndpoints(endpoints map[string]string) string {
	if len(endpoints) == 0 {
		return ""
	}
	b, err := json.Marshal(endpoints)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParseEndpoints parses a serialized per-endpoint path map.
func ParseEndpoints(s string) map[string]string {
	if s == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
