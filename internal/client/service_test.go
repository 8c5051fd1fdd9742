package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/promo-bot/internal/clientcache"
	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/repository"
	appredis "github.com/Proton-105/promo-bot/pkg/redis"
)

type mockClientRepository struct {
	mock.Mock
}

func (m *mockClientRepository) Upsert(ctx context.Context, c *domain.Client) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockClientRepository) FindByPlatformID(ctx context.Context, platformID string) (*domain.Client, error) {
	args := m.Called(ctx, platformID)
	client, _ := args.Get(0).(*domain.Client)
	return client, args.Error(1)
}

func (m *mockClientRepository) SetLanguage(ctx context.Context, id int64, language string) error {
	args := m.Called(ctx, id, language)
	return args.Error(0)
}

func (m *mockClientRepository) List(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	args := m.Called(ctx, filter)
	clients, _ := args.Get(0).([]domain.Client)
	return clients, args.Get(1).(int64), args.Error(2)
}

func newCache(t *testing.T) *clientcache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := appredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })
	return clientcache.NewCache(rdb, time.Minute)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_FindOrCreate_NewClient(t *testing.T) {
	repo := &mockClientRepository{}
	svc := NewService(repo, nil, testLogger())

	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *domain.Client) bool {
		return c.PlatformID == "42" && c.FirstName == "Ann" && c.Language == "ru" && !c.LanguageSelected
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Client).ID = 1
	}).Return(nil).Once()

	client, err := svc.FindOrCreate(context.Background(), domain.ClientProfile{
		PlatformID:   "42",
		FirstName:    "Ann",
		LanguageHint: "ru-RU",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), client.ID)
	assert.Equal(t, "ru", client.Language)
	assert.False(t, client.LanguageSelected)
	repo.AssertExpectations(t)
}

func TestService_FindOrCreate_UnsupportedHintDefaultsToEnglish(t *testing.T) {
	repo := &mockClientRepository{}
	svc := NewService(repo, nil, testLogger())

	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *domain.Client) bool {
		return c.Language == domain.LanguageEnglish
	})).Return(nil).Once()

	client, err := svc.FindOrCreate(context.Background(), domain.ClientProfile{PlatformID: "1", FirstName: "Hans", LanguageHint: "de"})

	require.NoError(t, err)
	assert.Equal(t, "en", client.Language)
	repo.AssertExpectations(t)
}

func TestService_FindOrCreate_CacheHitSkipsWrite(t *testing.T) {
	repo := &mockClientRepository{}
	cache := newCache(t)
	svc := NewService(repo, cache, testLogger())
	ctx := context.Background()

	stored := &domain.Client{ID: 3, PlatformID: "7", FirstName: "Bob", Language: "ar", LanguageSelected: true}
	require.NoError(t, cache.Set(ctx, stored))

	client, err := svc.FindOrCreate(ctx, domain.ClientProfile{PlatformID: "7", FirstName: "Bob", LanguageHint: "en"})

	require.NoError(t, err)
	assert.Equal(t, int64(3), client.ID)
	assert.Equal(t, "ar", client.Language)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestService_FindOrCreate_ChangedProfileIsPersisted(t *testing.T) {
	repo := &mockClientRepository{}
	cache := newCache(t)
	svc := NewService(repo, cache, testLogger())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Client{ID: 3, PlatformID: "7", FirstName: "Bob"}))

	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *domain.Client) bool {
		return c.FirstName == "Robert"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Client).ID = 3
	}).Return(nil).Once()

	client, err := svc.FindOrCreate(ctx, domain.ClientProfile{PlatformID: "7", FirstName: "Robert"})
	require.NoError(t, err)
	assert.Equal(t, "Robert", client.FirstName)

	cached, err := cache.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Robert", cached.FirstName)
	repo.AssertExpectations(t)
}

func TestService_FindOrCreate_RepositoryError(t *testing.T) {
	repo := &mockClientRepository{}
	svc := NewService(repo, nil, testLogger())
	dbErr := errors.New("connection refused")

	repo.On("Upsert", mock.Anything, mock.Anything).Return(dbErr).Once()

	client, err := svc.FindOrCreate(context.Background(), domain.ClientProfile{PlatformID: "9", FirstName: "X"})
	assert.Nil(t, client)
	assert.ErrorIs(t, err, dbErr)
}

func TestService_FindOrCreate_EmptyPlatformID(t *testing.T) {
	svc := NewService(&mockClientRepository{}, nil, testLogger())

	_, err := svc.FindOrCreate(context.Background(), domain.ClientProfile{FirstName: "X"})
	assert.Error(t, err)
}

func TestService_SelectLanguage(t *testing.T) {
	repo := &mockClientRepository{}
	cache := newCache(t)
	svc := NewService(repo, cache, testLogger())
	ctx := context.Background()

	client := &domain.Client{ID: 5, PlatformID: "55", FirstName: "Ann", Language: "ru"}
	require.NoError(t, cache.Set(ctx, client))

	repo.On("SetLanguage", mock.Anything, int64(5), "en").Return(nil).Twice()

	require.NoError(t, svc.SelectLanguage(ctx, client, "en"))
	assert.Equal(t, "en", client.Language)
	assert.True(t, client.LanguageSelected)

	cached, err := cache.Get(ctx, "55")
	require.NoError(t, err)
	assert.Nil(t, cached)

	require.NoError(t, svc.SelectLanguage(ctx, client, "en"))
	assert.Equal(t, "en", client.Language)
	assert.True(t, client.LanguageSelected)
	repo.AssertExpectations(t)
}

func TestService_SelectLanguage_Unsupported(t *testing.T) {
	svc := NewService(&mockClientRepository{}, nil, testLogger())

	err := svc.SelectLanguage(context.Background(), &domain.Client{ID: 1}, "de")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestService_Lookup(t *testing.T) {
	repo := &mockClientRepository{}
	svc := NewService(repo, nil, testLogger())

	repo.On("FindByPlatformID", mock.Anything, "404").Return(nil, repository.ErrNotFound).Once()
	repo.On("FindByPlatformID", mock.Anything, "1").Return(&domain.Client{ID: 1, PlatformID: "1"}, nil).Once()

	_, err := svc.Lookup(context.Background(), "404")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	client, err := svc.Lookup(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), client.ID)
}
