package upstream

import (
	"github.com/tidwall/gjson"

	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/errors"
)

// ParsePricing decodes an upstream pricing payload. Upstreams disagree on
// shape: newer ones publish a flat array of models with ratio fields, older
// ones a keyed object with nested group and model-price blocks. The shape is
// detected by structural probing, never trusted from a version flag.
func ParsePricing(provider string, body []byte) (*catalog.PricingData, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.WrapParse("json", "pricing response", errors.New("invalid JSON"))
	}

	root := gjson.GetBytes(body, "data")
	if !root.Exists() {
		root = gjson.ParseBytes(body)
	}

	switch {
	case root.IsArray():
		return parseModelArray(provider, gjson.ParseBytes(body), root)
	case root.IsObject() && (root.Get("groups").Exists() || root.Get("models").Exists()):
		return parseGroupedPricing(root)
	default:
		return nil, errors.WrapParse("pricing", provider,
			errors.New("unrecognized payload shape"))
	}
}

// parseModelArray handles the flat shape: data is an array of models, each
// carrying its own ratios and group memberships; group ratios and the vendor
// table ride alongside at the top level.
func parseModelArray(provider string, top, data gjson.Result) (*catalog.PricingData, error) {
	pd := newPricingData()

	groupDesc := map[string]string{}
	top.Get("usable_group").ForEach(func(k, v gjson.Result) bool {
		groupDesc[k.String()] = v.String()
		return true
	})
	top.Get("group_ratio").ForEach(func(k, v gjson.Result) bool {
		pd.GroupRatios[k.String()] = v.Float()
		return true
	})
	top.Get("vendors").ForEach(func(_, v gjson.Result) bool {
		pd.VendorIDToName[int(v.Get("id").Int())] = v.Get("name").String()
		return true
	})

	groupModels := map[string][]string{}
	data.ForEach(func(_, m gjson.Result) bool {
		name := m.Get("model_name").String()
		if name == "" {
			return true
		}

		info := catalog.ModelInfo{
			Name:            name,
			Ratio:           m.Get("model_ratio").Float(),
			CompletionRatio: m.Get("completion_ratio").Float(),
		}
		if m.Get("quota_type").Int() == 1 {
			price := m.Get("model_price").Float()
			info.ModelPrice = &price
		}
		m.Get("enable_groups").ForEach(func(_, g gjson.Result) bool {
			info.Groups = append(info.Groups, g.String())
			return true
		})
		m.Get("supported_endpoint_types").ForEach(func(_, e gjson.Result) bool {
			info.SupportedEndpoints = append(info.SupportedEndpoints, e.String())
			return true
		})
		if id := int(m.Get("vendor_id").Int()); id != 0 {
			info.VendorName = pd.VendorIDToName[id]
		}

		pd.Models[name] = info
		pd.ModelRatios[name] = info.Ratio
		if info.CompletionRatio > 0 {
			pd.CompletionRatios[name] = info.CompletionRatio
		}
		for _, g := range info.Groups {
			groupModels[g] = append(groupModels[g], name)
		}
		return true
	})

	for group, models := range groupModels {
		ratio, ok := pd.GroupRatios[group]
		if !ok {
			ratio = 1.0
		}
		pd.Groups = append(pd.Groups, catalog.GroupInfo{
			Name:        group,
			Description: groupDesc[group],
			Ratio:       ratio,
			Models:      models,
		})
	}
	if len(pd.Models) == 0 {
		return nil, errors.WrapParse("pricing", provider, errors.New("no models in payload"))
	}
	return pd, nil
}

// parseGroupedPricing handles the nested shape: an object with a groups
// block (name → ratio/description) and a models block (name → price object
// plus group memberships).
func parseGroupedPricing(data gjson.Result) (*catalog.PricingData, error) {
	pd := newPricingData()

	groupModels := map[string][]string{}
	data.Get("groups").ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		ratio := v.Get("ratio").Float()
		if ratio == 0 {
			ratio = 1.0
		}
		pd.GroupRatios[name] = ratio
		pd.Groups = append(pd.Groups, catalog.GroupInfo{
			Name:        name,
			Description: v.Get("desc").String(),
			Ratio:       ratio,
		})
		return true
	})

	data.Get("models").ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		info := catalog.ModelInfo{
			Name:            name,
			Ratio:           v.Get("price.ratio").Float(),
			CompletionRatio: v.Get("price.completion_ratio").Float(),
			VendorName:      v.Get("vendor").String(),
		}
		if fixed := v.Get("price.fixed"); fixed.Exists() {
			price := fixed.Float()
			info.ModelPrice = &price
		}
		v.Get("groups").ForEach(func(_, g gjson.Result) bool {
			info.Groups = append(info.Groups, g.String())
			groupModels[g.String()] = append(groupModels[g.String()], name)
			return true
		})
		v.Get("endpoints").ForEach(func(_, e gjson.Result) bool {
			info.SupportedEndpoints = append(info.SupportedEndpoints, e.String())
			return true
		})

		pd.Models[name] = info
		pd.ModelRatios[name] = info.Ratio
		if info.CompletionRatio > 0 {
			pd.CompletionRatios[name] = info.CompletionRatio
		}
		return true
	})

	for i := range pd.Groups {
		pd.Groups[i].Models = groupModels[pd.Groups[i].Name]
	}
	return pd, nil
}

func newPricingData() *catalog.PricingData {
	return &catalog.PricingData{
		Models:           map[string]catalog.ModelInfo{},
		GroupRatios:      map[string]float64{},
		ModelRatios:      map[string]float64{},
		CompletionRatios: map[string]float64{},
		VendorIDToName:   map[int]string{},
	}
}
