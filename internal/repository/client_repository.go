package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/promo-bot/internal/domain"
)

const clientColumns = `id, telegram_id, first_name, last_name, username, language, language_selected,
	joined_at, is_active, created_at, updated_at`

// ClientFilter narrows the admin client listing.
type ClientFilter struct {
	Page
	Search string
}

// ClientRepository defines persistence operations for clients.
type ClientRepository interface {
	// Upsert inserts the client or refreshes its profile fields, then loads the stored row back into c.
	Upsert(ctx context.Context, c *domain.Client) error
	FindByPlatformID(ctx context.Context, platformID string) (*domain.Client, error)
	SetLanguage(ctx context.Context, id int64, language string) error
	List(ctx context.Context, filter ClientFilter) ([]domain.Client, int64, error)
}

type clientRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewClientRepository creates a new SQL-backed client repository.
func NewClientRepository(db *sqlx.DB, log *slog.Logger) ClientRepository {
	return &clientRepository{
		db:  db,
		log: log,
	}
}

// Upsert keeps the stored language once the client has picked one; the hint
// only replaces it while language_selected is false.
func (r *clientRepository) Upsert(ctx context.Context, c *domain.Client) error {
	const query = `
		INSERT INTO clients (telegram_id, first_name, last_name, username, language)
		VALUES (:telegram_id, :first_name, :last_name, :username, :language)
		ON CONFLICT (telegram_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			username   = EXCLUDED.username,
			language   = CASE WHEN clients.language_selected THEN clients.language ELSE EXCLUDED.language END,
			updated_at = now()
		RETURNING ` + clientColumns

	rows, err := r.db.NamedQueryContext(ctx, query, c)
	if err != nil {
		r.log.Error("failed to upsert client", slog.String("telegram_id", c.PlatformID), slog.Any("error", err))
		return fmt.Errorf("upsert client: %w", mapError(err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("upsert client: %w", mapError(err))
		}
		return fmt.Errorf("upsert client: %w", ErrNotFound)
	}

	if err := rows.StructScan(c); err != nil {
		return fmt.Errorf("scan upserted client: %w", err)
	}

	return nil
}

// FindByPlatformID retrieves a client by their Telegram identifier.
func (r *clientRepository) FindByPlatformID(ctx context.Context, platformID string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE telegram_id = $1`

	var client domain.Client
	if err := r.db.GetContext(ctx, &client, query, platformID); err != nil {
		err = mapError(err)
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("failed to fetch client by telegram id", slog.String("telegram_id", platformID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select client by telegram id: %w", err)
	}

	return &client, nil
}

func (r *clientRepository) SetLanguage(ctx context.Context, id int64, language string) error {
	const query = `
		UPDATE clients
		SET language = $2, language_selected = TRUE, updated_at = now()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, language)
	if err != nil {
		r.log.Error("failed to set client language", slog.Int64("client_id", id), slog.Any("error", err))
		return fmt.Errorf("update client language: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update client language: %w", ErrNotFound)
	}

	return nil
}

// List returns one page of clients, newest first, with the total match count.
func (r *clientRepository) List(ctx context.Context, filter ClientFilter) ([]domain.Client, int64, error) {
	where := ""
	args := []any{}
	if filter.Search != "" {
		where = ` WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR username ILIKE $1 OR telegram_id ILIKE $1`
		args = append(args, likePattern(filter.Search))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM clients`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM clients%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		clientColumns, where, len(args)+1, len(args)+2)

	clients := []domain.Client{}
	if err := r.db.SelectContext(ctx, &clients, query, append(args, filter.Limit, filter.Offset())...); err != nil {
		r.log.Error("failed to list clients", slog.Any("error", err))
		return nil, 0, fmt.Errorf("select clients: %w", err)
	}

	return clients, total, nil
}
