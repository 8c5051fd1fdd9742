// Package api serves the Telegram webhook, the admin REST API and the operational endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/promo-bot/internal/jobs"
	"github.com/Proton-105/promo-bot/pkg/config"
	"github.com/Proton-105/promo-bot/pkg/logger"
)

// ReadinessProbe reports per-component health. *lifecycle.Probes satisfies it.
type ReadinessProbe interface {
	Readiness(ctx context.Context) (map[string]string, error)
}

// Dependencies groups everything NewRouter needs. Webhook, Jobs and Probes are optional.
type Dependencies struct {
	Updates  UpdateHandler
	Webhook  WebhookSetter
	Clients  ClientLister
	Messages MessageLister
	Promos   PromoManager
	Stats    StatsSource
	Jobs     jobs.Manager
	Auth     *Authenticator
	Probes   ReadinessProbe

	Telegram       config.TelegramConfig
	AllowedOrigins []string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Dependencies, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		logger.Middleware(),
		logger.RequestLogger(log),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			log.Error("panic recovered in http handler",
				slog.Any("panic", recovered),
				slog.String("path", c.Request.URL.Path),
				slog.String("correlation_id", logger.CorrelationIDFromContext(c.Request.Context())),
			)
			respondError(c, http.StatusInternalServerError, "Internal server error")
		}),
		cors.New(corsConfig(deps.AllowedOrigins)),
	)

	engine.NoMethod(func(c *gin.Context) {
		respondError(c, http.StatusMethodNotAllowed, "Method not allowed")
	})
	engine.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Not found")
	})

	engine.GET("/healthz", healthz(deps.Probes))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhook := &webhookHandler{
		updates: deps.Updates,
		setter:  deps.Webhook,
		url:     deps.Telegram.WebhookURL,
		secret:  deps.Telegram.WebhookSecret,
		log:     log,
	}
	engine.POST("/telegram/webhook", webhook.receive)

	api := engine.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/login", deps.Auth.Login)
	auth.POST("/verify", deps.Auth.Verify)

	protected := api.Group("")
	protected.Use(deps.Auth.Middleware())

	clients := &clientHandler{clients: deps.Clients, messages: deps.Messages, log: log}
	protected.GET("/clients", clients.listClients)
	protected.GET("/messages", clients.listMessages)

	promos := &promoHandler{promos: deps.Promos, log: log}
	expiry := &expirer{promos: deps.Promos, queue: deps.Jobs, log: log}
	protected.GET("/promos", promos.list)
	protected.POST("/promos", promos.create)
	protected.GET("/promos/export", promos.export)
	protected.POST("/promos/expire", expiry.expire)
	protected.GET("/promos/:id", promos.get)
	protected.PUT("/promos/:id", promos.update)
	protected.DELETE("/promos/:id", promos.remove)

	dashboard := &dashboardHandler{stats: deps.Stats, log: log, now: time.Now}
	protected.GET("/dashboard/stats", dashboard.get)

	protected.POST("/telegram/set-webhook", webhook.setWebhook)

	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.CorrelationIDHeader},
		ExposeHeaders:    []string{logger.CorrelationIDHeader, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func healthz(probes ReadinessProbe) gin.HandlerFunc {
	return func(c *gin.Context) {
		if probes == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": gin.H{}})
			return
		}

		checks, err := probes.Readiness(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}
