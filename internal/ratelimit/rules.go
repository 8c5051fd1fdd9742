package ratelimit

import (
	"errors"
	"time"

	"github.com/Proton-105/promo-bot/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether limiting is switched on at all.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the Telegram user bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// GetPerClientLimit returns the rule applied to bot updates of a single client.
func (r *Rules) GetPerClientLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerClient)
}

// GetLoginLimit returns the rule applied to admin login attempts per IP.
func (r *Rules) GetLoginLimit() (int, time.Duration, error) {
	return parseRule(r.config.Login)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Limit <= 0 {
		return 0, 0, errors.New("limit must be positive")
	}
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
