package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PRIVACY"

// envBindings lists the keys most commonly overridden from the environment.
// AutomaticEnv alone does not reach keys viper has never seen.
var envBindings = map[string][]string{
	"server.port":              {"PRIVACY_SERVER_PORT", "PORT"},
	"logging.level":            {"PRIVACY_LOGGING_LEVEL"},
	"logging.format":           {"PRIVACY_LOGGING_FORMAT"},
	"records.store":            {"PRIVACY_RECORDS_STORE"},
	"records.dir":              {"PRIVACY_RECORDS_DIR"},
	"records.redis_url":        {"PRIVACY_RECORDS_REDIS_URL", "REDIS_URL"},
	"funds.store.type":         {"PRIVACY_FUNDS_STORE_TYPE"},
	"funds.store.path":         {"PRIVACY_FUNDS_STORE_PATH"},
	"funds.store.database_url": {"PRIVACY_FUNDS_STORE_DATABASE_URL", "DATABASE_URL"},
	"ai.base_url":              {"PRIVACY_AI_BASE_URL"},
	"ai.model":                 {"PRIVACY_AI_MODEL"},
	"ai.api_key":               {"PRIVACY_AI_API_KEY", "OPENAI_API_KEY"},
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	if err := LoadDotEnv(""); err != nil {
		return nil, err
	}

	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	config := GetDefaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/asset-privacy/")
	v.AddConfigPath("$HOME/.asset-privacy/")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if err := validateIdentifierPrefix("masking.token_prefix", config.Masking.TokenPrefix); err != nil {
		return err
	}
	if err := validateIdentifierPrefix("funds.placeholder_prefix", config.Funds.PlaceholderPrefix); err != nil {
		return err
	}
	if strings.EqualFold(config.Masking.TokenPrefix, config.Funds.PlaceholderPrefix) {
		return fmt.Errorf("masking.token_prefix and funds.placeholder_prefix must differ")
	}
	if config.Masking.TokenWidth < 1 || config.Funds.PlaceholderWidth < 1 {
		return fmt.Errorf("token and placeholder widths must be positive")
	}

	switch config.Funds.Store.Type {
	case "file", "memory":
	case "postgres":
		if config.Funds.Store.DatabaseURL == "" {
			return fmt.Errorf("funds.store.database_url is required for the postgres store")
		}
	default:
		return fmt.Errorf("invalid funds store: %s (must be file, postgres, or memory)", config.Funds.Store.Type)
	}

	switch config.Records.Store {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("invalid records store: %s (must be file, redis, or memory)", config.Records.Store)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// validateIdentifierPrefix rejects prefixes that could be read as part of a
// number or that would let the next digit attach to a preceding word.
func validateIdentifierPrefix(key, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	for _, r := range prefix {
		if r >= '0' && r <= '9' {
			return fmt.Errorf("%s must not contain digits: %q", key, prefix)
		}
	}
	last := prefix[len(prefix)-1]
	isLetter := (last >= 'a' && last <= 'z') || (last >= 'A' && last <= 'Z')
	if !isLetter && last != '_' {
		return fmt.Errorf("%s must end with a letter or underscore: %q", key, prefix)
	}
	return nil
}

// Watch starts watching the configuration file for changes. Invalid
// configurations are reported through onError and otherwise ignored.
func Watch(configPath string, callback func(*Config), onError func(error)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			onError(fmt.Errorf("failed to unmarshal config: %w", err))
			return
		}

		if err := validateConfig(newConfig); err != nil {
			onError(fmt.Errorf("invalid configuration: %w", err))
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
