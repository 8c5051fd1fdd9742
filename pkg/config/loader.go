// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envAliases maps config keys to the plain environment names used by deployments.
var envAliases = map[string][]string{
	"database.url":            {"DATABASE_URL"},
	"telegram.token":          {"TELEGRAM_BOT_TOKEN"},
	"telegram.webhook_url":    {"TELEGRAM_WEBHOOK_URL"},
	"telegram.webhook_secret": {"TELEGRAM_WEBHOOK_SECRET"},
	"auth.jwt_secret":         {"JWT_SECRET"},
	"auth.admin_email":        {"ADMIN_EMAIL"},
	"auth.admin_password":     {"ADMIN_PASSWORD"},
	"redis.addr":              {"REDIS_ADDR"},
	"redis.enabled":           {"REDIS_ENABLED"},
	"logger.level":            {"LOG_LEVEL"},
	"sentry.dsn":              {"SENTRY_DSN"},
	"sentry.enabled":          {"SENTRY_ENABLED"},
	"server.port":             {"HTTP_PORT"},
}

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// env files are optional, real deployments pass variables directly
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return LoadFile(fmt.Sprintf("./configs/%s.yaml", env), env)
}

// LoadFile loads configuration from path (if present) layered with environment variables.
func LoadFile(path, env string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = env
	}

	return cfg, v, nil
}

// Watch reloads the config file on change and passes the validated result to onChange.
// It is a no-op when configuration came purely from the environment.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v == nil || v.ConfigFileUsed() == "" || onChange == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			log.Warn("config reload rejected", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		log.Info("config reloaded", slog.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.timeout", 10*time.Second)

	v.SetDefault("bot.default_language", "en")
	v.SetDefault("bot.serialize_per_client", true)
	v.SetDefault("bot.client_cache_ttl", 10*time.Minute)
	v.SetDefault("bot.update_dedupe_ttl", 24*time.Hour)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_client.limit", 20)
	v.SetDefault("rate_limit.per_client.window", "1m")
	v.SetDefault("rate_limit.login.limit", 5)
	v.SetDefault("rate_limit.login.window", "1m")
	v.SetDefault("rate_limit.whitelist", []int64{})

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.expiry_cron", "*/15 * * * *")
	v.SetDefault("jobs.concurrency", 2)
}
