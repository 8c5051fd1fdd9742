package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/repository"
	"github.com/Proton-105/promo-bot/pkg/logger"
)

func TestListClients(t *testing.T) {
	env := newTestEnv(t)
	env.clients.clients = []domain.Client{{ID: 1, PlatformID: "1001", FirstName: "Ann"}}
	env.clients.total = 1

	rec := env.do(t, http.MethodGet, "/api/clients?search=%20ann%20&limit=500", env.token(t), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.ClientFilter{Page: repository.Page{Page: 1, Limit: maxPageLimit}, Search: "ann"}, env.clients.filter)

	body := decodeBody(t, rec)
	data, _ := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "1001", data[0].(map[string]any)["telegramId"])
}

func TestListClients_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.clients.err = errors.New("db down")

	rec := env.do(t, http.MethodGet, "/api/clients", env.token(t), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch clients", errorOf(t, rec))
}

func TestListMessages_Filters(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/messages?clientId=5&type=sticker&direction=incoming&page=0", env.token(t), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.MessageFilter{
		Page:      repository.Page{Page: 1, Limit: 20},
		ClientID:  5,
		Type:      domain.MessageTypeSticker,
		Direction: domain.DirectionIncoming,
	}, env.messages.filter)

	for _, query := range []string{"clientId=abc", "type=gif", "direction=sideways"} {
		rec := env.do(t, http.MethodGet, "/api/messages?"+query, env.token(t), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
	assert.Equal(t, 1, env.messages.calls)
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard/stats", env.token(t), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeBody(t, rec)["data"].(map[string]any)

	counts, _ := data["counts"].(map[string]any)
	assert.Equal(t, float64(3), counts["totalClients"])
	assert.Equal(t, float64(9), counts["totalMessages"])

	charts, _ := data["charts"].(map[string]any)
	daily, _ := charts["dailyMessages"].([]any)
	require.Len(t, daily, 2)
	assert.Equal(t, "2026-10-18", daily[0].(map[string]any)["_id"])

	activity, _ := data["recentActivity"].(map[string]any)
	assert.Len(t, activity["clients"], 1)

	assert.WithinDuration(t, time.Now().AddDate(0, 0, -7), env.stats.since, time.Minute)
}

func TestDashboardStats_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.stats.err = errors.New("timeout")

	rec := env.do(t, http.MethodGet, "/api/dashboard/stats", env.token(t), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch dashboard stats", errorOf(t, rec))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) {
		d.Probes = fakeProbe{checks: map[string]string{"database": "OK"}}
	})
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env = newTestEnv(t, func(d *Dependencies) {
		d.Probes = fakeProbe{checks: map[string]string{"database": "connection refused"}, err: errors.New("not ready")}
	})
	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks, _ := decodeBody(t, rec)["checks"].(map[string]any)
	assert.Equal(t, "connection refused", checks["database"])
}

func TestRouter_CorrelationAndCORS(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) {
		d.AllowedOrigins = []string{"https://admin.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/promos", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(logger.CorrelationIDHeader))
}
