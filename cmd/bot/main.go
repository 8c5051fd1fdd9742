package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/api"
	"github.com/Proton-105/promo-bot/internal/bot"
	"github.com/Proton-105/promo-bot/internal/client"
	"github.com/Proton-105/promo-bot/internal/clientcache"
	"github.com/Proton-105/promo-bot/internal/clientlock"
	"github.com/Proton-105/promo-bot/internal/content"
	"github.com/Proton-105/promo-bot/internal/database"
	apperrors "github.com/Proton-105/promo-bot/internal/errors"
	"github.com/Proton-105/promo-bot/internal/health"
	"github.com/Proton-105/promo-bot/internal/i18n"
	"github.com/Proton-105/promo-bot/internal/idempotency"
	"github.com/Proton-105/promo-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/promo-bot/internal/jobs/handlers"
	"github.com/Proton-105/promo-bot/internal/lifecycle"
	"github.com/Proton-105/promo-bot/internal/middleware"
	"github.com/Proton-105/promo-bot/internal/promo"
	"github.com/Proton-105/promo-bot/internal/ratelimit"
	"github.com/Proton-105/promo-bot/internal/repository"
	"github.com/Proton-105/promo-bot/migrations"
	"github.com/Proton-105/promo-bot/pkg/config"
	"github.com/Proton-105/promo-bot/pkg/graceful"
	"github.com/Proton-105/promo-bot/pkg/logger"
	"github.com/Proton-105/promo-bot/pkg/metrics"
	appredis "github.com/Proton-105/promo-bot/pkg/redis"
)

const (
	lockTTL            = 30 * time.Second
	lockWait           = 5 * time.Second
	limiterCleanEvery  = time.Minute
	limiterMaxIdle     = 10 * time.Minute
	collectorInterval  = 30 * time.Second
	shutdownHookBudget = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		return 1
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			slog.Error("failed to initialize sentry", slog.Any("error", err))
			cfg.Sentry.Enabled = false
		}
	}

	log := logger.New(cfg.Logger, cfg.Sentry)
	slog.SetDefault(log)
	log.Info("starting promo bot",
		slog.String("env", cfg.AppEnv),
		slog.String("addr", cfg.Server.Addr()),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("jobs", cfg.Jobs.Enabled),
	)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdown := lifecycle.NewShutdown(log)
	defer func() {
		hookCtx, cancel := context.WithTimeout(context.Background(), shutdownHookBudget)
		defer cancel()
		if err := shutdown.Execute(hookCtx); err != nil {
			log.Error("shutdown hooks failed", slog.Any("error", err))
		}
		log.Info("promo bot stopped")
	}()
	if cfg.Sentry.Enabled {
		shutdown.Register("sentry", func(context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		})
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		return 1
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	if err := database.NewMigrator(db.DB, log).ApplyFS(ctx, migrations.FS); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		return 1
	}

	var rdb *appredis.Client
	if cfg.Redis.Enabled {
		rdb, err = appredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			return 1
		}
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	}

	var tb *telebot.Bot
	if cfg.Telegram.Token != "" {
		tb, err = telebot.NewBot(telebot.Settings{
			Token:   cfg.Telegram.Token,
			Offline: true,
			Client:  &http.Client{Timeout: cfg.Telegram.Timeout},
		})
		if err != nil {
			log.Error("failed to create telegram client", slog.Any("error", err))
			return 1
		}
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, outbound messages are disabled")
	}

	locales, err := i18n.Load(cfg.Bot.DefaultLanguage)
	if err != nil {
		log.Error("failed to load locales", slog.Any("error", err))
		return 1
	}
	catalog := content.New(locales)

	clientRepo := repository.NewClientRepository(db, log)
	messageRepo := repository.NewMessageRepository(db, log)
	promoRepo := repository.NewPromoRepository(db, log)
	statsRepo := repository.NewStatsRepository(db)

	var cache *clientcache.Cache
	if rdb != nil {
		cache = clientcache.NewCache(appredis.NewMetricsClient(rdb), cfg.Bot.ClientCacheTTL)
	}
	clientService := client.NewService(clientRepo, cache, log)
	promoService := promo.NewService(promoRepo, log)

	rules := ratelimit.NewRules(cfg.RateLimit)
	memoryLimiter := ratelimit.NewMemoryLimiter(log)
	var limiter ratelimit.Limiter = memoryLimiter
	if rdb != nil {
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memoryLimiter, log)
	}

	var dedupe idempotency.Manager
	if rdb != nil {
		dedupe = idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log, cfg.Bot.UpdateDedupeTTL)
	}

	var locker clientlock.Locker
	if cfg.Bot.SerializePerClient {
		if rdb != nil {
			locker = clientlock.NewRedisLocker(rdb.Client, log, lockTTL, lockWait)
		} else {
			locker = clientlock.NewMemoryLocker(lockWait)
		}
	}

	var (
		messenger     bot.Messenger
		webhookSetter api.WebhookSetter
	)
	if tb != nil {
		messenger = tb
		webhookSetter = tb
	}

	promoBot := bot.New(bot.Dependencies{
		Clients:     clientService,
		Promos:      promoService,
		Messages:    messageRepo,
		Catalog:     catalog,
		Messenger:   messenger,
		ErrHandler:  apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Idempotency: dedupe,
		RateLimit:   middleware.NewRateLimitMiddleware(limiter, rules, log),
		Locker:      locker,
	}, log)

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db.DB))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
	}
	if tb != nil {
		checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	}
	probes := lifecycle.NewProbes(checker, shutdown, log)

	g, gCtx := errgroup.WithContext(ctx)

	var queue jobs.Manager
	if cfg.Jobs.Enabled {
		queue, err = startJobs(gCtx, g, cfg, rdb, promoService, log)
		if err != nil {
			log.Error("failed to start background jobs", slog.Any("error", err))
			return 1
		}
		if queue != nil {
			shutdown.Register("jobs", func(context.Context) error { return queue.Close() })
		}
	}

	router := api.NewRouter(api.Dependencies{
		Updates:        promoBot,
		Webhook:        webhookSetter,
		Clients:        clientService,
		Messages:       messageRepo,
		Promos:         promoService,
		Stats:          statsRepo,
		Jobs:           queue,
		Auth:           api.NewAuthenticator(cfg.Auth, limiter, rules, log),
		Probes:         probes,
		Telegram:       cfg.Telegram,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)

	server := graceful.NewServer(log, cfg.Server.Addr(), router,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)

	g.Go(func() error { return server.ListenAndServe(gCtx) })
	g.Go(func() error { return metrics.NewCatalogCollector(statsRepo, log, collectorInterval).Run(gCtx) })
	g.Go(func() error {
		return ratelimit.NewCleaner(memoryLimiter, log, limiterCleanEvery, limiterMaxIdle).Run(gCtx)
	})

	config.Watch(v, log, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("promo bot stopped with error", slog.Any("error", err))
		return 1
	}

	return 0
}

// startJobs runs the promo expiry sweep on asynq when Redis is available and on an
// in-process gocron scheduler otherwise. The returned queue is nil in the latter case.
func startJobs(ctx context.Context, g *errgroup.Group, cfg *config.Config, rdb *appredis.Client, promos *promo.Service, log *slog.Logger) (jobs.Manager, error) {
	cronSpec := cfg.Jobs.ExpiryCron
	if cronSpec == "" {
		cronSpec = jobs.DefaultExpiryCron
	}

	if rdb == nil {
		local, err := jobs.NewLocalScheduler(log)
		if err != nil {
			return nil, err
		}
		err = local.AddJob(ctx, "promo-expiry", cronSpec, func(ctx context.Context) error {
			_, err := promos.ExpireStale(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		g.Go(func() error { return local.Run(ctx) })
		return nil, nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypePromoExpire, jobhandlers.NewPromoExpiryHandler(promos, log))

	scheduler := jobs.NewScheduler(redisOpt, cronSpec, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return nil, err
	}

	g.Go(func() error { return worker.Run(ctx) })
	g.Go(func() error { return scheduler.Run(ctx) })

	return jobs.NewManager(redisOpt, log), nil
}
