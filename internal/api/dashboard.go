package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/repository"
)

const (
	recentClientsLimit  = 5
	recentMessagesLimit = 10
	dailyWindowDays     = 7
)

// StatsSource serves the dashboard aggregates. repository.StatsRepository satisfies it.
type StatsSource interface {
	Counts(ctx context.Context, now time.Time) (repository.Counts, error)
	RecentClients(ctx context.Context, limit int) ([]domain.Client, error)
	RecentMessages(ctx context.Context, limit int) ([]domain.MessageWithClient, error)
	MessagesByType(ctx context.Context) ([]repository.Bucket, error)
	DailyMessages(ctx context.Context, since time.Time) ([]repository.Bucket, error)
}

type dashboardHandler struct {
	stats StatsSource
	log   *slog.Logger
	now   func() time.Time
}

func (h *dashboardHandler) get(c *gin.Context) {
	now := h.now()

	var (
		counts         repository.Counts
		recentClients  []domain.Client
		recentMessages []domain.MessageWithClient
		byType         []repository.Bucket
		daily          []repository.Bucket
	)

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		counts, err = h.stats.Counts(ctx, now)
		return err
	})
	g.Go(func() (err error) {
		recentClients, err = h.stats.RecentClients(ctx, recentClientsLimit)
		return err
	})
	g.Go(func() (err error) {
		recentMessages, err = h.stats.RecentMessages(ctx, recentMessagesLimit)
		return err
	})
	g.Go(func() (err error) {
		byType, err = h.stats.MessagesByType(ctx)
		return err
	})
	g.Go(func() (err error) {
		daily, err = h.stats.DailyMessages(ctx, now.AddDate(0, 0, -dailyWindowDays))
		return err
	})

	if err := g.Wait(); err != nil {
		h.log.Error("failed to load dashboard stats", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to fetch dashboard stats")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"counts": counts,
		"recentActivity": gin.H{
			"clients":  recentClients,
			"messages": recentMessages,
		},
		"charts": gin.H{
			"messageStats":  byType,
			"dailyMessages": daily,
		},
	})
}
