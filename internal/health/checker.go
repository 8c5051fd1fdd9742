// Package health reports the reachability of the database, Redis and the Telegram API.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkTimeout = 3 * time.Second

// StatusOK is reported for a passing component.
const StatusOK = "OK"

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	log    *slog.Logger
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.checks[name] = check
}

// Names returns the registered component names, sorted.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all registered health checks and returns their statuses.
// healthy is false when any component failed.
func (c *Checker) Check(ctx context.Context) (results map[string]string, healthy bool) {
	results = make(map[string]string, len(c.checks))
	healthy = true

	for name, check := range c.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check.HealthCheck(checkCtx)
		cancel()

		if err != nil {
			healthy = false
			results[name] = err.Error()
			c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
			continue
		}

		results[name] = StatusOK
	}

	return results, healthy
}

// DBChecker verifies connectivity to a PostgreSQL database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker constructs a DBChecker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database to ensure it is reachable.
func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker constructs a RedisChecker.
func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING command against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramAPI is the raw Bot API call used to probe Telegram. *telebot.Bot satisfies it.
type TelegramAPI interface {
	Raw(method string, payload interface{}) ([]byte, error)
}

// TelegramChecker verifies that the Telegram bot API is reachable with the configured token.
type TelegramChecker struct {
	api TelegramAPI
}

// NewTelegramChecker constructs a TelegramChecker.
func NewTelegramChecker(api TelegramAPI) *TelegramChecker {
	return &TelegramChecker{api: api}
}

// HealthCheck calls getMe. The call itself is not cancellable, so a slow API is reported
// once ctx expires while the request finishes in the background.
func (c *TelegramChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("telegram bot is not initialized")
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.api.Raw("getMe", nil)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
