package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Masking   MaskingConfig   `yaml:"masking" mapstructure:"masking"`
	Funds     FundsConfig     `yaml:"funds" mapstructure:"funds"`
	Records   RecordsConfig   `yaml:"records" mapstructure:"records"`
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `yaml:"port" mapstructure:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxUploadSize int64         `yaml:"max_upload_size" mapstructure:"max_upload_size"`
}

// MaskingConfig controls the lexical form of numeric mask tokens
type MaskingConfig struct {
	TokenPrefix string `yaml:"token_prefix" mapstructure:"token_prefix"`
	TokenWidth  int    `yaml:"token_width" mapstructure:"token_width"`
}

// FundsConfig contains the fund registry configuration
type FundsConfig struct {
	Defaults          []string         `yaml:"defaults" mapstructure:"defaults"`
	PlaceholderPrefix string           `yaml:"placeholder_prefix" mapstructure:"placeholder_prefix"`
	PlaceholderWidth  int              `yaml:"placeholder_width" mapstructure:"placeholder_width"`
	Store             FundsStoreConfig `yaml:"store" mapstructure:"store"`
}

// FundsStoreConfig selects where the fund registry is persisted
type FundsStoreConfig struct {
	Type            string        `yaml:"type" mapstructure:"type"` // file, postgres or memory
	Path            string        `yaml:"path" mapstructure:"path"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// RecordsConfig selects where processing records are kept
type RecordsConfig struct {
	Store          string        `yaml:"store" mapstructure:"store"` // file, redis or memory
	Dir            string        `yaml:"dir" mapstructure:"dir"`
	SaveMaskedText bool          `yaml:"save_masked_text" mapstructure:"save_masked_text"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	TTL            time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// AIConfig contains the AI provider configuration
type AIConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	Model             string        `yaml:"model" mapstructure:"model"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// RateLimitConfig contains per-client HTTP rate limiting
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	Username       string   `yaml:"username" mapstructure:"username"`
	Password       string   `yaml:"password" mapstructure:"password"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events         struct {
		BroadcastRecords     bool `yaml:"broadcast_records" mapstructure:"broadcast_records"`
		BroadcastRegistry    bool `yaml:"broadcast_registry" mapstructure:"broadcast_registry"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// DefaultFundNames is the master fund list seeded into an empty registry
var DefaultFundNames = []string{
	"MasterFund1", "MasterFund2", "MasterFund3", "MasterFund4", "MasterFund5",
	"AlphaFund", "BetaFund", "GammaFund", "DeltaFund", "OmegaFund",
	"StrategicFund", "GrowthFund", "ValueFund", "IncomeFund", "BalancedFund",
	"GlobalFund", "RegionalFund", "SectorFund", "IndexFund", "HedgeFund",
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:          5001,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  180 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxUploadSize: 16 << 20,
		},
		Masking: MaskingConfig{
			TokenPrefix: "NUM_",
			TokenWidth:  6,
		},
		Funds: FundsConfig{
			Defaults:          append([]string(nil), DefaultFundNames...),
			PlaceholderPrefix: "Fund",
			PlaceholderWidth:  3,
			Store: FundsStoreConfig{
				Type:            "file",
				Path:            "data/fund_names.json",
				MaxOpenConns:    5,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Records: RecordsConfig{
			Store:          "file",
			Dir:            "output",
			SaveMaskedText: true,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			TTL:            24 * time.Hour,
			KeyPrefix:      "asset-privacy",
		},
		AI: AIConfig{
			BaseURL:           "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o",
			MaxTokens:         4000,
			Temperature:       0.2,
			Timeout:           120 * time.Second,
			MaxRetries:        3,
			RequestsPerMinute: 30,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 120,
			Burst:          20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
		},
	}

	cfg.Logging.File.Path = "logs/privacy.log"
	cfg.WebSocket.Events.BroadcastRecords = true
	cfg.WebSocket.Events.BroadcastRegistry = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
