// Package config defines the sync configuration schema and its loading.
// Configuration lives in a YAML file; ${VAR} references are expanded from
// the environment before parsing so credentials can stay out of the file.
package config

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/gatesync/pkg/errors"
	"github.com/agentstation/gatesync/pkg/pricing"
)

// Provider type discriminators.
const (
	// TypeGateway is a gateway-style upstream with a public pricing API.
	TypeGateway = "gateway"
	// TypeVendor is a direct vendor account (no pricing or token API).
	TypeVendor = "vendor"
	// TypeAccount is a sub-gateway/account aggregator that prices relative
	// to everything aggregated before it.
	TypeAccount = "account"
)

// Config is the root sync configuration.
type Config struct {
	Target        Target            `yaml:"target"`
	Providers     []Provider        `yaml:"providers"`
	Blacklist     []string          `yaml:"blacklist"`
	ModelMappings map[string]string `yaml:"model_mappings"`
}

// Target is the connection to the gateway instance being reconciled.
type Target struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
}

// Provider configures one upstream source.
type Provider struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`

	// AccessToken authenticates gateway/account administrative APIs.
	AccessToken string `yaml:"access_token"`
	// APIKey is the credential for vendor-style providers; it becomes the
	// channel key directly since vendors have no token API.
	APIKey string `yaml:"api_key"`

	// Group and Ratio configure the single synthetic group of a
	// vendor-style provider.
	Group string  `yaml:"group"`
	Ratio float64 `yaml:"ratio"`

	// Discount prices an account-style provider relative to the cheapest
	// ratio aggregated so far: price = cheapest × (1 − discount).
	Discount float64 `yaml:"discount"`

	// Groups, Vendors, and Models are allow-lists; empty means allow all.
	// Model entries may be globs or exact names.
	Groups  []string `yaml:"groups"`
	Vendors []string `yaml:"vendors"`
	Models  []string `yaml:"models"`

	PriceAdjustment pricing.Adjustment `yaml:"price_adjustment"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	expanded := os.ExpandEnv(string(raw))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return &errors.ValidationError{Field: "target.base_url", Message: "required"}
	}
	if c.Target.AccessToken == "" {
		return &errors.ValidationError{Field: "target.access_token", Message: "required"}
	}

	seen := map[string]bool{}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			return &errors.ValidationError{Field: "providers.name", Message: "required"}
		}
		if seen[p.Name] {
			return &errors.ValidationError{Field: "providers.name", Value: p.Name, Message: "duplicate provider name"}
		}
		seen[p.Name] = true

		switch p.Type {
		case TypeGateway, TypeAccount:
			if p.AccessToken == "" {
				return &errors.ValidationError{Field: p.Name + ".access_token", Message: "required for " + p.Type + " providers"}
			}
		case TypeVendor:
			if p.APIKey == "" {
				return &errors.ValidationError{Field: p.Name + ".api_key", Message: "required for vendor providers"}
			}
			if p.Group == "" {
				p.Group = p.Name
			}
			if p.Ratio <= 0 {
				return &errors.ValidationError{Field: p.Name + ".ratio", Message: "vendor providers must set a positive ratio"}
			}
		default:
			return &errors.ValidationError{Field: p.Name + ".type", Value: p.Type, Message: "must be gateway, vendor, or account"}
		}
		if p.BaseURL == "" {
			return &errors.ValidationError{Field: p.Name + ".base_url", Message: "required"}
		}
		if p.Discount < 0 || p.Discount >= 1 {
			if p.Discount != 0 {
				return &errors.ValidationError{Field: p.Name + ".discount", Value: p.Discount, Message: "must be in [0, 1)"}
			}
		}
	}
	return nil
}

// Select returns the providers named in only, or all providers when only is
// empty. Unknown names are an error so a typo cannot silently shrink the
// managed set.
func (c *Config) Select(only []string) ([]Provider, error) {
	if len(only) == 0 {
		out := make([]Provider, len(c.Providers))
		copy(out, c.Providers)
		return out, nil
	}

	byName := map[string]Provider{}
	for _, p := range c.Providers {
		byName[p.Name] = p
	}
	out := make([]Provider, 0, len(only))
	for _, name := range only {
		p, ok := byName[name]
		if !ok {
			return nil, &errors.ValidationError{Field: "--only", Value: name, Message: "unknown provider"}
		}
		out = append(out, p)
	}
	return out, nil
}

// BlacklistFor returns the blacklist patterns that apply to one provider:
// global entries plus entries scoped to it with a "provider/pattern" prefix.
func (c *Config) BlacklistFor(provider string) []string {
	var out []string
	for _, entry := range c.Blacklist {
		scope, pattern, scoped := strings.Cut(entry, "/")
		if scoped && c.hasProvider(scope) {
			if scope == provider {
				out = append(out, pattern)
			}
			continue
		}
		out = append(out, entry)
	}
	return out
}

func (c *Config) hasProvider(name string) bool {
	for _, p := range c.Providers {
		if p.Name == name {
			return true
		}
	}
	return false
}
