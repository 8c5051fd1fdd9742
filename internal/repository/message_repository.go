package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/promo-bot/internal/domain"
)

// messageWithClientColumns aliases client columns so sqlx maps them onto MessageWithClient.Client.
const messageWithClientColumns = `m.id, m.message_id, m.client_id, m.type, m.content, m.direction,
	m.timestamp, m.metadata, m.created_at,
	c.id AS "client.id", c.telegram_id AS "client.telegram_id", c.first_name AS "client.first_name",
	c.last_name AS "client.last_name", c.username AS "client.username"`

// MessageFilter narrows the admin message log listing. Zero values are ignored.
type MessageFilter struct {
	Page
	ClientID  int64
	Type      domain.MessageType
	Direction domain.Direction
}

// MessageRepository persists the append-only conversation log.
type MessageRepository interface {
	Append(ctx context.Context, m *domain.Message) error
	List(ctx context.Context, filter MessageFilter) ([]domain.MessageWithClient, int64, error)
}

type messageRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewMessageRepository creates a new SQL-backed message repository.
func NewMessageRepository(db *sqlx.DB, log *slog.Logger) MessageRepository {
	return &messageRepository{
		db:  db,
		log: log,
	}
}

// Append inserts m and fills its generated ID and CreatedAt.
func (r *messageRepository) Append(ctx context.Context, m *domain.Message) error {
	const query = `
		INSERT INTO messages (message_id, client_id, type, content, direction, timestamp, metadata)
		VALUES (:message_id, :client_id, :type, :content, :direction, :timestamp, :metadata)
		RETURNING id, created_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, m)
	if err != nil {
		r.log.Error("failed to append message",
			slog.Int64("client_id", m.ClientID),
			slog.String("direction", string(m.Direction)),
			slog.Any("error", err),
		)
		return fmt.Errorf("insert message: %w", mapError(err))
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&m.ID, &m.CreatedAt); err != nil {
			return fmt.Errorf("scan inserted message: %w", err)
		}
	}

	return rows.Err()
}

// List returns one page of messages joined with their client, newest first.
func (r *messageRepository) List(ctx context.Context, filter MessageFilter) ([]domain.MessageWithClient, int64, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ClientID > 0 {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("m.client_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("m.type = $%d", len(args)))
	}
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		conditions = append(conditions, fmt.Sprintf("m.direction = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM messages m`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM messages m JOIN clients c ON c.id = m.client_id%s
		ORDER BY m.timestamp DESC LIMIT $%d OFFSET $%d`,
		messageWithClientColumns, where, len(args)+1, len(args)+2)

	messages := []domain.MessageWithClient{}
	if err := r.db.SelectContext(ctx, &messages, query, append(args, filter.Limit, filter.Offset())...); err != nil {
		r.log.Error("failed to list messages", slog.Any("error", err))
		return nil, 0, fmt.Errorf("select messages: %w", err)
	}

	return messages, total, nil
}
