package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/promo-bot/internal/domain"
)

const promoColumns = `id, code, discount, min_price, store, locations, expires_at, is_active, created_at, updated_at`

// PromoFilter narrows the admin promo listing.
type PromoFilter struct {
	Page
	Search string
}

// PromoPatch holds the fields of a partial update. Nil fields are left unchanged.
type PromoPatch struct {
	Code      *string
	Discount  *string
	MinPrice  *decimal.Decimal
	Store     *string
	Locations []string
	ExpiresAt *time.Time
	IsActive  *bool
}

// Empty reports whether the patch changes nothing.
func (p PromoPatch) Empty() bool {
	return p.Code == nil && p.Discount == nil && p.MinPrice == nil && p.Store == nil &&
		p.Locations == nil && p.ExpiresAt == nil && p.IsActive == nil
}

// PromoRepository defines persistence operations for the promo catalog.
type PromoRepository interface {
	FindRedeemableByCode(ctx context.Context, code string, now time.Time) (*domain.Promo, error)
	FindRedeemableByStore(ctx context.Context, store string, now time.Time) ([]domain.Promo, error)

	Create(ctx context.Context, p *domain.Promo) error
	FindByID(ctx context.Context, id int64) (*domain.Promo, error)
	Update(ctx context.Context, id int64, patch PromoPatch) (*domain.Promo, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter PromoFilter) ([]domain.Promo, int64, error)
	ListAll(ctx context.Context) ([]domain.Promo, error)

	// DeactivateExpired flips is_active off for promos whose expiry has passed.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type promoRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewPromoRepository creates a new SQL-backed promo repository.
func NewPromoRepository(db *sqlx.DB, log *slog.Logger) PromoRepository {
	return &promoRepository{
		db:  db,
		log: log,
	}
}

func (r *promoRepository) FindRedeemableByCode(ctx context.Context, code string, now time.Time) (*domain.Promo, error) {
	query := `SELECT ` + promoColumns + ` FROM promos WHERE code = $1 AND is_active AND expires_at > $2`

	var promo domain.Promo
	if err := r.db.GetContext(ctx, &promo, query, code, now); err != nil {
		err = mapError(err)
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("failed to fetch promo by code", slog.String("code", code), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select promo by code: %w", err)
	}

	return &promo, nil
}

// FindRedeemableByStore matches store names case-insensitively by containment, newest first.
func (r *promoRepository) FindRedeemableByStore(ctx context.Context, store string, now time.Time) ([]domain.Promo, error) {
	query := `SELECT ` + promoColumns + ` FROM promos
		WHERE store ILIKE $1 AND is_active AND expires_at > $2
		ORDER BY created_at DESC`

	promos := []domain.Promo{}
	if err := r.db.SelectContext(ctx, &promos, query, likePattern(store), now); err != nil {
		r.log.Error("failed to fetch promos by store", slog.String("store", store), slog.Any("error", err))
		return nil, fmt.Errorf("select promos by store: %w", err)
	}

	return promos, nil
}

// Create inserts p and fills its generated fields.
func (r *promoRepository) Create(ctx context.Context, p *domain.Promo) error {
	const query = `
		INSERT INTO promos (code, discount, min_price, store, locations, expires_at, is_active)
		VALUES (:code, :discount, :min_price, :store, :locations, :expires_at, :is_active)
		RETURNING ` + promoColumns

	rows, err := r.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		err = mapError(err)
		if !errors.Is(err, ErrDuplicateKey) {
			r.log.Error("failed to create promo", slog.String("code", p.Code), slog.Any("error", err))
		}
		return fmt.Errorf("insert promo: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("insert promo: %w", mapError(err))
		}
		return fmt.Errorf("insert promo: no row returned")
	}

	if err := rows.StructScan(p); err != nil {
		return fmt.Errorf("scan inserted promo: %w", err)
	}
	return nil
}

func (r *promoRepository) FindByID(ctx context.Context, id int64) (*domain.Promo, error) {
	query := `SELECT ` + promoColumns + ` FROM promos WHERE id = $1`

	var promo domain.Promo
	if err := r.db.GetContext(ctx, &promo, query, id); err != nil {
		return nil, fmt.Errorf("select promo by id: %w", mapError(err))
	}
	return &promo, nil
}

func (r *promoRepository) Update(ctx context.Context, id int64, patch PromoPatch) (*domain.Promo, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Code != nil {
		set("code", *patch.Code)
	}
	if patch.Discount != nil {
		set("discount", *patch.Discount)
	}
	if patch.MinPrice != nil {
		set("min_price", *patch.MinPrice)
	}
	if patch.Store != nil {
		set("store", *patch.Store)
	}
	if patch.Locations != nil {
		set("locations", pq.StringArray(patch.Locations))
	}
	if patch.ExpiresAt != nil {
		set("expires_at", *patch.ExpiresAt)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE promos SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), promoColumns)

	var promo domain.Promo
	if err := r.db.GetContext(ctx, &promo, query, args...); err != nil {
		err = mapError(err)
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicateKey) {
			r.log.Error("failed to update promo", slog.Int64("promo_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("update promo: %w", err)
	}

	return &promo, nil
}

func (r *promoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM promos WHERE id = $1`, id)
	if err != nil {
		r.log.Error("failed to delete promo", slog.Int64("promo_id", id), slog.Any("error", err))
		return fmt.Errorf("delete promo: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete promo: %w", ErrNotFound)
	}
	return nil
}

// List returns one page of promos, newest first, searching code and store.
func (r *promoRepository) List(ctx context.Context, filter PromoFilter) ([]domain.Promo, int64, error) {
	where := ""
	args := []any{}
	if filter.Search != "" {
		where = ` WHERE code ILIKE $1 OR store ILIKE $1`
		args = append(args, likePattern(filter.Search))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM promos`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count promos: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM promos%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		promoColumns, where, len(args)+1, len(args)+2)

	promos := []domain.Promo{}
	if err := r.db.SelectContext(ctx, &promos, query, append(args, filter.Limit, filter.Offset())...); err != nil {
		r.log.Error("failed to list promos", slog.Any("error", err))
		return nil, 0, fmt.Errorf("select promos: %w", err)
	}

	return promos, total, nil
}

func (r *promoRepository) ListAll(ctx context.Context) ([]domain.Promo, error) {
	promos := []domain.Promo{}
	if err := r.db.SelectContext(ctx, &promos, `SELECT `+promoColumns+` FROM promos ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("select all promos: %w", err)
	}
	return promos, nil
}

func (r *promoRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE promos SET is_active = FALSE, updated_at = now() WHERE is_active AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired promos: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired promos: %w", err)
	}
	return n, nil
}
