// Package database provides helpers for managing database migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

const createVersionsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Migrator applies plain .up.sql migrations in lexical order and records
// each applied file in schema_migrations so reruns are no-ops.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{
		db:  db,
		log: log.With(slog.String("component", "migrator")),
	}
}

// ApplyFS applies every pending *.up.sql file found at the root of fsys.
func (m *Migrator) ApplyFS(ctx context.Context, fsys fs.FS) error {
	files, err := ListMigrations(fsys, ".")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	if len(files) == 0 {
		m.log.Info("no .up.sql migrations found")
		return nil
	}

	if _, err := m.db.ExecContext(ctx, createVersionsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, name := range files {
		done, err := m.isApplied(ctx, name)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		if err := m.applyFile(ctx, fsys, name); err != nil {
			return err
		}
		applied++
	}

	m.log.Info("migrations up to date", slog.Int("applied", applied), slog.Int("total", len(files)))
	return nil
}

func (m *Migrator) isApplied(ctx context.Context, name string) (bool, error) {
	var version string
	err := m.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations WHERE version = $1`, name).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %q: %w", name, err)
	}
	return true, nil
}

func (m *Migrator) applyFile(ctx context.Context, fsys fs.FS, name string) error {
	scopedLog := m.log.With(slog.String("file", name))
	scopedLog.Info("applying migration")

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", name, err)
	}

	statement := strings.TrimSpace(string(data))
	if len(statement) == 0 {
		scopedLog.Warn("migration is empty, skipping")
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", name, err)
	}

	if _, execErr := tx.ExecContext(ctx, statement); execErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			scopedLog.Error("rollback error", slog.Any("error", rbErr))
		}
		return fmt.Errorf("execute migration %q: %w", name, execErr)
	}

	if _, execErr := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); execErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			scopedLog.Error("rollback error", slog.Any("error", rbErr))
		}
		return fmt.Errorf("record migration %q: %w", name, execErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit migration %q: %w", name, commitErr)
	}

	return nil
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in root of dir in lexical order.
func ListMigrations(dir fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(dir, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isUpMigration(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
