package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/promo"
	"github.com/Proton-105/promo-bot/internal/repository"
	"github.com/Proton-105/promo-bot/pkg/config"
)

const (
	testSecret   = "test-jwt-secret"
	testEmail    = "admin@example.com"
	testPassword = "s3cret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUpdates struct {
	mu  sync.Mutex
	got []telebot.Update
	err error
}

func (f *fakeUpdates) HandleUpdate(_ context.Context, update telebot.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, update)
	return f.err
}

func (f *fakeUpdates) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type fakeSetter struct {
	got *telebot.Webhook
	err error
}

func (f *fakeSetter) SetWebhook(w *telebot.Webhook) error {
	f.got = w
	return f.err
}

type mockPromos struct {
	mock.Mock
}

func (m *mockPromos) Create(ctx context.Context, input promo.CreateInput) (*domain.Promo, error) {
	args := m.Called(ctx, input)
	p, _ := args.Get(0).(*domain.Promo)
	return p, args.Error(1)
}

func (m *mockPromos) Update(ctx context.Context, id int64, patch repository.PromoPatch) (*domain.Promo, error) {
	args := m.Called(ctx, id, patch)
	p, _ := args.Get(0).(*domain.Promo)
	return p, args.Error(1)
}

func (m *mockPromos) Get(ctx context.Context, id int64) (*domain.Promo, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Promo)
	return p, args.Error(1)
}

func (m *mockPromos) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPromos) List(ctx context.Context, filter repository.PromoFilter) ([]domain.Promo, int64, error) {
	args := m.Called(ctx, filter)
	promos, _ := args.Get(0).([]domain.Promo)
	return promos, args.Get(1).(int64), args.Error(2)
}

func (m *mockPromos) ListAll(ctx context.Context) ([]domain.Promo, error) {
	args := m.Called(ctx)
	promos, _ := args.Get(0).([]domain.Promo)
	return promos, args.Error(1)
}

func (m *mockPromos) ExpireStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type fakeClients struct {
	clients []domain.Client
	total   int64
	filter  repository.ClientFilter
	err     error
}

func (f *fakeClients) List(_ context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	f.filter = filter
	return f.clients, f.total, f.err
}

type fakeMessages struct {
	messages []domain.MessageWithClient
	total    int64
	filter   repository.MessageFilter
	calls    int
}

func (f *fakeMessages) List(_ context.Context, filter repository.MessageFilter) ([]domain.MessageWithClient, int64, error) {
	f.calls++
	f.filter = filter
	return f.messages, f.total, nil
}

type fakeStats struct {
	since time.Time
	err   error
}

func (f *fakeStats) Counts(context.Context, time.Time) (repository.Counts, error) {
	return repository.Counts{TotalClients: 3, ActiveClients: 2, TotalPromos: 4, ActivePromos: 1, TotalMessages: 9}, f.err
}

func (f *fakeStats) RecentClients(context.Context, int) ([]domain.Client, error) {
	return []domain.Client{{ID: 1, FirstName: "Ann"}}, nil
}

func (f *fakeStats) RecentMessages(context.Context, int) ([]domain.MessageWithClient, error) {
	return []domain.MessageWithClient{}, nil
}

func (f *fakeStats) MessagesByType(context.Context) ([]repository.Bucket, error) {
	return []repository.Bucket{{Key: "text", Count: 7}, {Key: "sticker", Count: 2}}, nil
}

func (f *fakeStats) DailyMessages(_ context.Context, since time.Time) ([]repository.Bucket, error) {
	f.since = since
	return []repository.Bucket{{Key: "2026-10-18", Count: 4}, {Key: "2026-10-19", Count: 5}}, nil
}

type fakeProbe struct {
	checks map[string]string
	err    error
}

func (f fakeProbe) Readiness(context.Context) (map[string]string, error) {
	return f.checks, f.err
}

type testEnv struct {
	router   *gin.Engine
	auth     *Authenticator
	updates  *fakeUpdates
	setter   *fakeSetter
	promos   *mockPromos
	clients  *fakeClients
	messages *fakeMessages
	stats    *fakeStats
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()

	env := &testEnv{
		auth: NewAuthenticator(config.AuthConfig{
			JWTSecret:     testSecret,
			AdminEmail:    testEmail,
			AdminPassword: testPassword,
		}, nil, nil, testLogger()),
		updates:  &fakeUpdates{},
		setter:   &fakeSetter{},
		promos:   &mockPromos{},
		clients:  &fakeClients{},
		messages: &fakeMessages{},
		stats:    &fakeStats{},
	}

	deps := Dependencies{
		Updates:  env.updates,
		Webhook:  env.setter,
		Clients:  env.clients,
		Messages: env.messages,
		Promos:   env.promos,
		Stats:    env.stats,
		Auth:     env.auth,
		Telegram: config.TelegramConfig{WebhookURL: "https://example.com/telegram/webhook"},
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	if deps.Auth != nil {
		env.auth = deps.Auth
	}

	env.router = NewRouter(deps, testLogger())
	t.Cleanup(func() { env.promos.AssertExpectations(t) })
	return env
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := e.auth.IssueToken(testEmail)
	require.NoError(t, err)
	return token
}

// do sends a request; a non-empty token is sent as a bearer token.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := decodeBody(t, rec)["error"].(string)
	return msg
}
