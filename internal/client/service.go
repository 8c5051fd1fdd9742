// Package client keeps the per-client conversation state: profile, language and selection flag.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/promo-bot/internal/clientcache"
	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/repository"
)

// ErrUnsupportedLanguage is returned by SelectLanguage for codes other than en, ru, ar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Service provides business operations over clients.
type Service struct {
	repo  repository.ClientRepository
	cache *clientcache.Cache
	log   *slog.Logger
}

// NewService constructs a new Service instance. cache may be nil.
func NewService(repo repository.ClientRepository, cache *clientcache.Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// FindOrCreate returns the client for profile.PlatformID, creating it on first
// contact and refreshing its profile fields otherwise.
func (s *Service) FindOrCreate(ctx context.Context, profile domain.ClientProfile) (*domain.Client, error) {
	if strings.TrimSpace(profile.PlatformID) == "" {
		return nil, errors.New("client platform id is empty")
	}

	hint := domain.NormalizeLanguage(profile.LanguageHint)

	if cached := s.cached(ctx, profile.PlatformID); cached != nil && unchanged(cached, profile, hint) {
		return cached, nil
	}

	client := &domain.Client{
		PlatformID: profile.PlatformID,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		Username:   profile.Username,
		Language:   hint,
	}

	if err := s.repo.Upsert(ctx, client); err != nil {
		s.logError("find_or_create.upsert", profile.PlatformID, err)
		return nil, fmt.Errorf("upsert client: %w", err)
	}

	if err := s.cache.Set(ctx, client); err != nil {
		s.logError("find_or_create.cache", profile.PlatformID, err)
	}

	return client, nil
}

// SelectLanguage persists the chosen language and marks the selection as done.
func (s *Service) SelectLanguage(ctx context.Context, client *domain.Client, code string) error {
	if client == nil {
		return errors.New("client is nil")
	}
	if !domain.IsSupportedLanguage(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}

	if err := s.repo.SetLanguage(ctx, client.ID, code); err != nil {
		s.logError("select_language", client.PlatformID, err)
		return fmt.Errorf("set client language: %w", err)
	}

	client.Language = code
	client.LanguageSelected = true

	if err := s.cache.Invalidate(ctx, client.PlatformID); err != nil {
		s.logError("select_language.cache", client.PlatformID, err)
	}

	return nil
}

// Lookup returns an existing client without creating one. Missing clients yield repository.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, platformID string) (*domain.Client, error) {
	if cached := s.cached(ctx, platformID); cached != nil {
		return cached, nil
	}

	client, err := s.repo.FindByPlatformID(ctx, platformID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, client); err != nil {
		s.logError("lookup.cache", platformID, err)
	}
	return client, nil
}

// List returns one page of clients for the admin API.
func (s *Service) List(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) cached(ctx context.Context, platformID string) *domain.Client {
	client, err := s.cache.Get(ctx, platformID)
	if err != nil {
		s.logError("cache.get", platformID, err)
		return nil
	}
	return client
}

// unchanged reports whether persisting profile onto cached would be a no-op.
func unchanged(cached *domain.Client, profile domain.ClientProfile, hint string) bool {
	if cached.FirstName != profile.FirstName || cached.LastName != profile.LastName || cached.Username != profile.Username {
		return false
	}
	return cached.LanguageSelected || cached.Language == hint
}

func (s *Service) logError(operation, platformID string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("client service operation failed",
		slog.String("operation", operation),
		slog.String("telegram_id", platformID),
		slog.Any("error", err),
	)
}
