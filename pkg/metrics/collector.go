package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of Telegram updates handled labeled by dispatch action and status",
		},
		[]string{"action", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Duration of Telegram update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	outboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_outbound_messages_total",
			Help: "Messages sent to Telegram split by result",
		},
		[]string{"status"},
	)
	promoLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_lookups_total",
			Help: "Promo lookups split by kind (code, store) and result (hit, miss)",
		},
		[]string{"kind", "result"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	clientsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clients_total",
			Help: "Number of known bot clients",
		},
	)
	activePromos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promos_active",
			Help: "Number of currently redeemable promo codes",
		},
	)
)

// RecordUpdate increments update counters and records duration.
func RecordUpdate(action, status string, duration time.Duration) {
	action = orUnknown(action)
	status = orUnknown(status)

	botUpdatesTotal.WithLabelValues(action, status).Inc()
	updateDurationSeconds.WithLabelValues(action).Observe(duration.Seconds())
}

func RecordOutbound(status string) {
	outboundMessagesTotal.WithLabelValues(orUnknown(status)).Inc()
}

// RecordPromoLookup tracks whether a store or code lookup returned anything.
func RecordPromoLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	promoLookupsTotal.WithLabelValues(orUnknown(kind), result).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// CatalogCounter is the subset of the dashboard stats repository the collector polls.
type CatalogCounter interface {
	CountClients(ctx context.Context) (int64, error)
	CountRedeemablePromos(ctx context.Context) (int64, error)
}

// CatalogCollector periodically refreshes client and promo gauges.
type CatalogCollector struct {
	source   CatalogCounter
	log      *slog.Logger
	interval time.Duration
}

// NewCatalogCollector builds a collector polling source every interval.
func NewCatalogCollector(source CatalogCounter, log *slog.Logger, interval time.Duration) *CatalogCollector {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &CatalogCollector{source: source, log: log, interval: interval}
}

// Run polls until ctx is cancelled.
func (c *CatalogCollector) Run(ctx context.Context) error {
	if c == nil || c.source == nil {
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.collect(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *CatalogCollector) collect(ctx context.Context) {
	if n, err := c.source.CountClients(ctx); err != nil {
		c.log.Warn("metrics: count clients failed", slog.Any("error", err))
	} else {
		clientsTotal.Set(float64(n))
	}

	if n, err := c.source.CountRedeemablePromos(ctx); err != nil {
		c.log.Warn("metrics: count promos failed", slog.Any("error", err))
	} else {
		activePromos.Set(float64(n))
	}
}
