// Package promo implements promo lookups for the bot and catalog management for the admin API.
package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/promo-bot/internal/domain"
	apperrors "github.com/Proton-105/promo-bot/internal/errors"
	"github.com/Proton-105/promo-bot/internal/repository"
	"github.com/Proton-105/promo-bot/pkg/metrics"
)

// CreateInput carries the fields of a new promo.
type CreateInput struct {
	Code      string
	Discount  string
	MinPrice  *decimal.Decimal
	Store     string
	Locations []string
	ExpiresAt *time.Time
}

// Service provides promo operations.
type Service struct {
	repo repository.PromoRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewService constructs a new Service instance.
func NewService(repo repository.PromoRepository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// FindByCode looks up a redeemable promo by its code, case-insensitively.
// A miss returns nil without error.
func (s *Service) FindByCode(ctx context.Context, input string) (*domain.Promo, error) {
	code := NormalizeCode(input)
	if code == "" {
		metrics.RecordPromoLookup("code", false)
		return nil, nil
	}

	p, err := s.repo.FindRedeemableByCode(ctx, code, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordPromoLookup("code", false)
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	metrics.RecordPromoLookup("code", true)
	return p, nil
}

// FindByStore returns the redeemable promos of a canonical store, newest first.
func (s *Service) FindByStore(ctx context.Context, store string) ([]domain.Promo, error) {
	promos, err := s.repo.FindRedeemableByStore(ctx, store, s.now())
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	metrics.RecordPromoLookup("store", len(promos) > 0)
	return promos, nil
}

// Create validates input and stores a new promo. Duplicate codes yield repository.ErrDuplicateKey.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Promo, error) {
	code := NormalizeCode(input.Code)
	store := strings.TrimSpace(input.Store)
	locations := cleanLocations(input.Locations)

	if code == "" || input.MinPrice == nil || input.ExpiresAt == nil || len(locations) == 0 || store == "" {
		return nil, apperrors.NewValidationError("All fields are required")
	}
	if input.MinPrice.IsNegative() {
		return nil, apperrors.NewValidationError("minPrice must not be negative")
	}

	p := &domain.Promo{
		Code:      code,
		Discount:  strings.TrimSpace(input.Discount),
		MinPrice:  *input.MinPrice,
		Store:     store,
		Locations: locations,
		ExpiresAt: *input.ExpiresAt,
		IsActive:  true,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("promo created", slog.Int64("promo_id", p.ID), slog.String("code", p.Code), slog.String("store", p.Store))
	return p, nil
}

// Update applies a partial update; codes are upper-cased and empty values are ignored.
func (s *Service) Update(ctx context.Context, id int64, patch repository.PromoPatch) (*domain.Promo, error) {
	if patch.Code != nil {
		code := NormalizeCode(*patch.Code)
		if code == "" {
			patch.Code = nil
		} else {
			patch.Code = &code
		}
	}
	if patch.Store != nil && strings.TrimSpace(*patch.Store) == "" {
		patch.Store = nil
	}
	if patch.Locations != nil {
		patch.Locations = cleanLocations(patch.Locations)
		if len(patch.Locations) == 0 {
			patch.Locations = nil
		}
	}
	if patch.MinPrice != nil && patch.MinPrice.IsNegative() {
		return nil, apperrors.NewValidationError("minPrice must not be negative")
	}

	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.log.Info("promo updated", slog.Int64("promo_id", id))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Promo, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("promo deleted", slog.Int64("promo_id", id))
	return nil
}

func (s *Service) List(ctx context.Context, filter repository.PromoFilter) ([]domain.Promo, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Promo, error) {
	return s.repo.ListAll(ctx)
}

// ExpireStale deactivates every promo whose expiry has passed.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire stale promos: %w", err)
	}
	if n > 0 {
		s.log.Info("expired promos deactivated", slog.Int64("count", n))
	}
	return n, nil
}

// NormalizeCode trims and upper-cases a user-supplied promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func cleanLocations(in []string) []string {
	out := make([]string, 0, len(in))
	for _, loc := range in {
		if loc = strings.TrimSpace(loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
