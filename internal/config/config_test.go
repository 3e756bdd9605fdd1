package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultsValid(t *testing.T) {
	cfg := GetDefaults()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "NUM_", cfg.Masking.TokenPrefix)
	assert.Equal(t, "Fund", cfg.Funds.PlaceholderPrefix)
	assert.Len(t, cfg.Funds.Defaults, 20)

	cfg.Funds.Defaults[0] = "changed"
	assert.Equal(t, "MasterFund1", DefaultFundNames[0])
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`server:
  port: 6000
masking:
  token_prefix: VAL_
records:
  store: memory
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "VAL_", cfg.Masking.TokenPrefix)
	assert.Equal(t, "memory", cfg.Records.Store)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 6, cfg.Masking.TokenWidth)
	assert.Equal(t, "file", cfg.Funds.Store.Type)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PRIVACY_LOGGING_LEVEL", "warn")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "sk-from-env", cfg.AI.APIKey)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"empty token prefix", func(c *Config) { c.Masking.TokenPrefix = "" }},
		{"digit in prefix", func(c *Config) { c.Masking.TokenPrefix = "N1_" }},
		{"prefix ending in punctuation", func(c *Config) { c.Funds.PlaceholderPrefix = "Fund-" }},
		{"same prefixes", func(c *Config) { c.Funds.PlaceholderPrefix = "num_" }},
		{"zero width", func(c *Config) { c.Masking.TokenWidth = 0 }},
		{"postgres without url", func(c *Config) { c.Funds.Store.Type = "postgres" }},
		{"unknown funds store", func(c *Config) { c.Funds.Store.Type = "s3" }},
		{"unknown records store", func(c *Config) { c.Records.Store = "sqlite" }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
