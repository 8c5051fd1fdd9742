package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/Proton-105/promo-bot/pkg/config"
)

// Connect opens a Postgres pool with the configured limits and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// Close closes the pool, logging instead of returning the error.
func Close(db *sqlx.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Error("error closing database connection", slog.Any("error", err))
		return
	}
	log.Info("database connection closed")
}
