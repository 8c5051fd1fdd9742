package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/promo-bot/internal/domain"
)

// Counts are the dashboard headline numbers.
type Counts struct {
	TotalClients  int64 `json:"totalClients" db:"total_clients"`
	ActiveClients int64 `json:"activeClients" db:"active_clients"`
	TotalPromos   int64 `json:"totalPromos" db:"total_promos"`
	ActivePromos  int64 `json:"activePromos" db:"active_promos"`
	TotalMessages int64 `json:"totalMessages" db:"total_messages"`
}

// Bucket is one group of an aggregate count, keyed by message type or day.
type Bucket struct {
	Key   string `json:"_id" db:"key"`
	Count int64  `json:"count" db:"count"`
}

// StatsRepository serves the read-only dashboard aggregates.
type StatsRepository interface {
	Counts(ctx context.Context, now time.Time) (Counts, error)
	RecentClients(ctx context.Context, limit int) ([]domain.Client, error)
	RecentMessages(ctx context.Context, limit int) ([]domain.MessageWithClient, error)
	MessagesByType(ctx context.Context) ([]Bucket, error)
	// DailyMessages counts messages per UTC day since the given moment, ascending by day.
	DailyMessages(ctx context.Context, since time.Time) ([]Bucket, error)

	CountClients(ctx context.Context) (int64, error)
	CountRedeemablePromos(ctx context.Context) (int64, error)
}

type statsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new SQL-backed stats repository.
func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Counts(ctx context.Context, now time.Time) (Counts, error) {
	const query = `
		SELECT
			(SELECT count(*) FROM clients)                                        AS total_clients,
			(SELECT count(*) FROM clients WHERE is_active)                        AS active_clients,
			(SELECT count(*) FROM promos)                                         AS total_promos,
			(SELECT count(*) FROM promos WHERE is_active AND expires_at > $1)     AS active_promos,
			(SELECT count(*) FROM messages)                                       AS total_messages
	`

	var counts Counts
	if err := r.db.GetContext(ctx, &counts, query, now); err != nil {
		return Counts{}, fmt.Errorf("select dashboard counts: %w", err)
	}
	return counts, nil
}

func (r *statsRepository) RecentClients(ctx context.Context, limit int) ([]domain.Client, error) {
	clients := []domain.Client{}
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &clients, query, limit); err != nil {
		return nil, fmt.Errorf("select recent clients: %w", err)
	}
	return clients, nil
}

func (r *statsRepository) RecentMessages(ctx context.Context, limit int) ([]domain.MessageWithClient, error) {
	messages := []domain.MessageWithClient{}
	query := `SELECT ` + messageWithClientColumns + ` FROM messages m JOIN clients c ON c.id = m.client_id
		ORDER BY m.timestamp DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &messages, query, limit); err != nil {
		return nil, fmt.Errorf("select recent messages: %w", err)
	}
	return messages, nil
}

func (r *statsRepository) MessagesByType(ctx context.Context) ([]Bucket, error) {
	buckets := []Bucket{}
	query := `SELECT type AS key, count(*) AS count FROM messages GROUP BY type ORDER BY type`
	if err := r.db.SelectContext(ctx, &buckets, query); err != nil {
		return nil, fmt.Errorf("select message stats: %w", err)
	}
	return buckets, nil
}

func (r *statsRepository) DailyMessages(ctx context.Context, since time.Time) ([]Bucket, error) {
	buckets := []Bucket{}
	query := `
		SELECT to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS key, count(*) AS count
		FROM messages
		WHERE timestamp >= $1
		GROUP BY key
		ORDER BY key
	`
	if err := r.db.SelectContext(ctx, &buckets, query, since); err != nil {
		return nil, fmt.Errorf("select daily messages: %w", err)
	}
	return buckets, nil
}

func (r *statsRepository) CountClients(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM clients`); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}

func (r *statsRepository) CountRedeemablePromos(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM promos WHERE is_active AND expires_at > now()`); err != nil {
		return 0, fmt.Errorf("count redeemable promos: %w", err)
	}
	return n, nil
}
