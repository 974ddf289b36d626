package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/gatesync/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validYAML = `
target:
  base_url: http://localhost:3000
  access_token: ${GATESYNC_TEST_TOKEN}

providers:
  - name: main
    type: gateway
    base_url: https://gw.example.com
    access_token: gw-token
    price_adjustment: -0.2

  - name: direct-openai
    type: vendor
    base_url: https://api.openai.com
    api_key: sk-abc
    ratio: 0.6
    models: ["gpt-*"]

  - name: agg
    type: account
    base_url: https://agg.example.com
    access_token: agg-token
    discount: 0.15
    price_adjustment:
      claude-*: -0.4
      default: -0.1

blacklist:
  - trial
  - main/internal

model_mappings:
  gpt-x-0125: gpt-x
`

func TestLoad(t *testing.T) {
	t.Setenv("GATESYNC_TEST_TOKEN", "expanded-admin")
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "expanded-admin", cfg.Target.AccessToken, "${VAR} expands from the environment")
	require.Len(t, cfg.Providers, 3)

	main := cfg.Providers[0]
	assert.Equal(t, TypeGateway, main.Type)
	assert.Equal(t, -0.2, main.PriceAdjustment.Resolve("anything", ""))

	vendor := cfg.Providers[1]
	assert.Equal(t, TypeVendor, vendor.Type)
	assert.Equal(t, "direct-openai", vendor.Group, "vendor group defaults to the provider name")
	assert.Equal(t, 0.6, vendor.Ratio)

	agg := cfg.Providers[2]
	assert.Equal(t, 0.15, agg.Discount)
	assert.Equal(t, -0.4, agg.PriceAdjustment.Resolve("claude-3-5-haiku", "anthropic"))
	assert.Equal(t, -0.1, agg.PriceAdjustment.Resolve("gpt-4o", "openai"))

	assert.Equal(t, map[string]string{"gpt-x-0125": "gpt-x"}, cfg.ModelMappings)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Target: Target{BaseURL: "http://t", AccessToken: "tok"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid empty providers", func(*Config) {}, ""},
		{"missing target url", func(c *Config) { c.Target.BaseURL = "" }, "target.base_url"},
		{"missing target token", func(c *Config) { c.Target.AccessToken = "" }, "target.access_token"},
		{"unnamed provider", func(c *Config) {
			c.Providers = []Provider{{Type: TypeGateway}}
		}, "providers.name"},
		{"duplicate names", func(c *Config) {
			c.Providers = []Provider{
				{Name: "a", Type: TypeGateway, BaseURL: "http://x", AccessToken: "t"},
				{Name: "a", Type: TypeGateway, BaseURL: "http://y", AccessToken: "t"},
			}
		}, "duplicate"},
		{"unknown type", func(c *Config) {
			c.Providers = []Provider{{Name: "a", Type: "proxy", BaseURL: "http://x"}}
		}, "type"},
		{"gateway without access token", func(c *Config) {
			c.Providers = []Provider{{Name: "a", Type: TypeGateway, BaseURL: "http://x"}}
		}, "access_token"},
		{"vendor without api key", func(c *Config) {
			c.Providers = []Provider{{Name: "a", Type: TypeVendor, BaseURL: "http://x", Ratio: 0.5}}
		}, "api_key"},
		{"vendor without ratio", func(c *Config) {
			c.Providers = []Provider{{Name: "a", Type: TypeVendor, BaseURL: "http://x", APIKey: "k"}}
		}, "ratio"},
		{"missing base url", func(c *Config) {
			c.Providers = []Provider{{Name: "a", Type: TypeGateway, AccessToken: "t"}}
		}, "base_url"},
		{"discount out of range", func(c *Config) {
			c.Providers = []Provider{{Name: "a", Type: TypeAccount, BaseURL: "http://x", AccessToken: "t", Discount: 1.0}}
		}, "discount"},
		{"negative discount", func(c *Config) {
			c.Providers = []Provider{{Name: "a", Type: TypeAccount, BaseURL: "http://x", AccessToken: "t", Discount: -0.1}}
		}, "discount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSelect(t *testing.T) {
	cfg := &Config{Providers: []Provider{{Name: "a"}, {Name: "b"}}}

	all, err := cfg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := cfg.Select([]string{"b"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "b", some[0].Name)

	_, err = cfg.Select([]string{"typo"})
	require.Error(t, err, "an unknown --only name must not silently shrink the scope")
}

func TestBlacklistFor(t *testing.T) {
	cfg := &Config{
		Providers: []Provider{{Name: "main"}, {Name: "other"}},
		Blacklist: []string{
			"trial",         // global
			"main/internal", // scoped to main
			"claude/v1",     // "claude" is not a provider: global, kept verbatim
		},
	}

	assert.Equal(t, []string{"trial", "internal", "claude/v1"}, cfg.BlacklistFor("main"))
	assert.Equal(t, []string{"trial", "claude/v1"}, cfg.BlacklistFor("other"))
}
