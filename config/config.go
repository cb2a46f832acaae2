package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	GatewayConfig  GatewayConfig  `json:"gateway"`
	TradingConfig  TradingConfig  `json:"trading"`
	RiskConfig     RiskConfig     `json:"risk"`
	PricingConfig  PricingConfig  `json:"pricing"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	VaultConfig    VaultConfig    `json:"vault"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
}

// GatewayConfig holds the broker gateway connection settings
type GatewayConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	ClientID int    `json:"client_id"`
	Account  string `json:"account"`
	Paper    bool   `json:"paper"` // paper trading gateway
}

// TradingConfig holds desk-wide trading behavior
type TradingConfig struct {
	DryRun           bool   `json:"dry_run"`            // validate and track without submitting
	DefaultOrderType string `json:"default_order_type"` // LIMIT, MARKET or STOP_LIMIT
}

// RiskConfig holds position sizing and exposure limits
type RiskConfig struct {
	MaxRiskPerTrade        float64 `json:"max_risk_per_trade"`       // % of account risked per trade
	MaxDailyDrawdown       float64 `json:"max_daily_drawdown"`       // max daily loss % before halting
	MaxOpenPositions       int     `json:"max_open_positions"`       // maximum concurrent positions
	BuyingPowerFactor      float64 `json:"buying_power_factor"`      // fraction of buying power usable
	UseTrailingStop        bool    `json:"use_trailing_stop"`        // enable trailing stop loss
	TrailingStopPercent    float64 `json:"trailing_stop_percent"`    // trailing stop distance %
	TrailingStopActivation float64 `json:"trailing_stop_activation"` // profit % to activate trailing stop
}

// PricingConfig holds stop/target derivation tunables
type PricingConfig struct {
	RewardRiskRatio    float64 `json:"reward_risk_ratio"`    // take profit as multiple of risk
	FallbackPercent    float64 `json:"fallback_percent"`     // stop distance % without bar data
	MinStopPercent     float64 `json:"min_stop_percent"`     // stops closer than this % get widened
	ExtraBufferPercent float64 `json:"extra_buffer_percent"` // widening applied to tight stops
	MinTargetPrice     float64 `json:"min_target_price"`     // absolute take profit floor
	MaxTargetPrice     float64 `json:"max_target_price"`     // absolute take profit ceiling
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // comma separated CORS origins
	ProductionMode  bool   `json:"production_mode"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// OriginList splits the comma separated AllowedOrigins value.
func (c ServerConfig) OriginList() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled              bool          `json:"enabled"`
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
	Username             string        `json:"username"`
	Password             string        `json:"password"`
	PasswordHash         string        `json:"password_hash"`
	MinPasswordLength    int           `json:"min_password_length"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for gateway credentials
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for position state persistence
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds PostgreSQL configuration for the trade journal
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Gateway login credentials are NOT read from environment; they live in
// Vault or the local credential store.
func applyEnvOverrides(cfg *Config) {
	// Gateway config
	cfg.GatewayConfig.Host = getEnvOrDefault("GATEWAY_HOST", defaultString(cfg.GatewayConfig.Host, "127.0.0.1"))
	cfg.GatewayConfig.Port = getEnvIntOrDefault("GATEWAY_PORT", defaultInt(cfg.GatewayConfig.Port, 7497))
	cfg.GatewayConfig.ClientID = getEnvIntOrDefault("GATEWAY_CLIENT_ID", defaultInt(cfg.GatewayConfig.ClientID, 1))
	cfg.GatewayConfig.Account = getEnvOrDefault("GATEWAY_ACCOUNT", cfg.GatewayConfig.Account)
	cfg.GatewayConfig.Paper = getEnvOrDefault("GATEWAY_PAPER", "true") == "true"

	// Trading config
	cfg.TradingConfig.DryRun = getEnvOrDefault("TRADING_DRY_RUN", "false") == "true"
	cfg.TradingConfig.DefaultOrderType = getEnvOrDefault("TRADING_DEFAULT_ORDER_TYPE", defaultString(cfg.TradingConfig.DefaultOrderType, "LIMIT"))

	// Risk config
	cfg.RiskConfig.MaxRiskPerTrade = getEnvFloatOrDefault("RISK_MAX_PER_TRADE", defaultFloat(cfg.RiskConfig.MaxRiskPerTrade, 1.0))
	cfg.RiskConfig.MaxDailyDrawdown = getEnvFloatOrDefault("RISK_MAX_DAILY_DRAWDOWN", defaultFloat(cfg.RiskConfig.MaxDailyDrawdown, 3.0))
	cfg.RiskConfig.MaxOpenPositions = getEnvIntOrDefault("RISK_MAX_OPEN_POSITIONS", defaultInt(cfg.RiskConfig.MaxOpenPositions, 5))
	cfg.RiskConfig.BuyingPowerFactor = getEnvFloatOrDefault("RISK_BUYING_POWER_FACTOR", defaultFloat(cfg.RiskConfig.BuyingPowerFactor, 1.0))
	cfg.RiskConfig.UseTrailingStop = getEnvOrDefault("RISK_USE_TRAILING_STOP", "false") == "true"
	cfg.RiskConfig.TrailingStopPercent = getEnvFloatOrDefault("RISK_TRAILING_STOP_PERCENT", defaultFloat(cfg.RiskConfig.TrailingStopPercent, 1.0))
	cfg.RiskConfig.TrailingStopActivation = getEnvFloatOrDefault("RISK_TRAILING_STOP_ACTIVATION", defaultFloat(cfg.RiskConfig.TrailingStopActivation, 1.5))

	// Pricing config
	cfg.PricingConfig.RewardRiskRatio = getEnvFloatOrDefault("PRICING_REWARD_RISK_RATIO", defaultFloat(cfg.PricingConfig.RewardRiskRatio, 2.0))
	cfg.PricingConfig.FallbackPercent = getEnvFloatOrDefault("PRICING_FALLBACK_PERCENT", defaultFloat(cfg.PricingConfig.FallbackPercent, 2.0))
	cfg.PricingConfig.MinStopPercent = getEnvFloatOrDefault("PRICING_MIN_STOP_PERCENT", defaultFloat(cfg.PricingConfig.MinStopPercent, 0.3))
	cfg.PricingConfig.ExtraBufferPercent = getEnvFloatOrDefault("PRICING_EXTRA_BUFFER_PERCENT", defaultFloat(cfg.PricingConfig.ExtraBufferPercent, 0.2))
	cfg.PricingConfig.MinTargetPrice = getEnvFloatOrDefault("PRICING_MIN_TARGET_PRICE", defaultFloat(cfg.PricingConfig.MinTargetPrice, 0.01))
	cfg.PricingConfig.MaxTargetPrice = getEnvFloatOrDefault("PRICING_MAX_TARGET_PRICE", defaultFloat(cfg.PricingConfig.MaxTargetPrice, 5000))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultString(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8088))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultString(cfg.ServerConfig.Host, "127.0.0.1"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Auth config - ALWAYS apply from environment
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "false") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", 7*24*time.Hour)
	cfg.AuthConfig.Username = getEnvOrDefault("AUTH_USERNAME", defaultString(cfg.AuthConfig.Username, "operator"))
	cfg.AuthConfig.Password = getEnvOrDefault("AUTH_PASSWORD", cfg.AuthConfig.Password)
	cfg.AuthConfig.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", cfg.AuthConfig.PasswordHash)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", defaultInt(cfg.AuthConfig.MinPasswordLength, 8))

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultString(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultString(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultString(cfg.VaultConfig.SecretPath, "trading-desk/gateway"))
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", defaultString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "false") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultString(cfg.DatabaseConfig.User, "trading_desk"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "trading_desk"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func defaultString(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}

func defaultInt(current, fallback int) int {
	if current != 0 {
		return current
	}
	return fallback
}

func defaultFloat(current, fallback float64) float64 {
	if current != 0 {
		return current
	}
	return fallback
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		GatewayConfig: GatewayConfig{
			Host:     "127.0.0.1",
			Port:     7497,
			ClientID: 1,
			Account:  "DU1234567",
			Paper:    true,
		},
		TradingConfig: TradingConfig{
			DryRun:           true,
			DefaultOrderType: "LIMIT",
		},
		RiskConfig: RiskConfig{
			MaxRiskPerTrade:        1.0,
			MaxDailyDrawdown:       3.0,
			MaxOpenPositions:       5,
			BuyingPowerFactor:      1.0,
			UseTrailingStop:        false,
			TrailingStopPercent:    1.0,
			TrailingStopActivation: 1.5,
		},
		PricingConfig: PricingConfig{
			RewardRiskRatio:    2.0,
			FallbackPercent:    2.0,
			MinStopPercent:     0.3,
			ExtraBufferPercent: 0.2,
			MinTargetPrice:     0.01,
			MaxTargetPrice:     5000,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		ServerConfig: ServerConfig{
			Port:            8088,
			Host:            "127.0.0.1",
			ShutdownTimeout: 10,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
