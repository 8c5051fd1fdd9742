package config

import (
	"strings"
	"time"
)

// Config holds runtime configuration for the promo bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Bot       BotConfig       `mapstructure:"bot"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// ServerConfig describes the HTTP listener serving the webhook and admin API.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address for net/http.
func (s ServerConfig) Addr() string {
	if strings.HasPrefix(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

// DatabaseConfig contains the PostgreSQL DSN and pool settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// TelegramConfig configures the outbound Bot API client and webhook registration.
type TelegramConfig struct {
	Token         string        `mapstructure:"token"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type BotConfig struct {
	DefaultLanguage    string        `mapstructure:"default_language" validate:"omitempty,oneof=en ru ar"`
	SerializePerClient bool          `mapstructure:"serialize_per_client"`
	ClientCacheTTL     time.Duration `mapstructure:"client_cache_ttl"`
	UpdateDedupeTTL    time.Duration `mapstructure:"update_dedupe_ttl"`
}

// AuthConfig holds admin credentials and the token signing secret.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminEmail    string        `mapstructure:"admin_email" validate:"required,email"`
	AdminPassword string        `mapstructure:"admin_password" validate:"required"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

// RateLimitConfig defines per-client and per-IP rules. Window values use time.ParseDuration syntax.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerClient RateLimitRule `mapstructure:"per_client"`
	Login     RateLimitRule `mapstructure:"login"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// JobsConfig controls the background promo expiry sweep.
type JobsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ExpiryCron  string `mapstructure:"expiry_cron"`
	Concurrency int    `mapstructure:"concurrency"`
}
