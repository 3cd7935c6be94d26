package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bustrack",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bustrack",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Tracking metrics
	FixesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "tracking",
		Name:      "fixes_processed_total",
		Help:      "Total GPS fixes turned into progress snapshots",
	}, []string{"source"})

	FixesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "tracking",
		Name:      "fixes_rejected_total",
		Help:      "Total GPS fixes rejected before estimation",
	}, []string{"reason"})

	OffRouteFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "tracking",
		Name:      "off_route_fixes_total",
		Help:      "Total fixes classified as off route",
	}, []string{"route"})

	StopArrivals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "tracking",
		Name:      "stop_arrivals_total",
		Help:      "Total stops reached by tracked vehicles",
	}, []string{"route"})

	EnrichmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bustrack",
		Subsystem: "tracking",
		Name:      "enrichment_duration_seconds",
		Help:      "Latency of distance-matrix ETA enrichment",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	EnrichmentErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "tracking",
		Name:      "enrichment_errors_total",
		Help:      "Total failed ETA enrichment calls",
	})

	// Ingest metrics
	FeedPollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bustrack",
		Subsystem: "ingest",
		Name:      "feed_poll_duration_seconds",
		Help:      "Duration of GTFS-RT feed polling",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"feed"})

	FeedPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "ingest",
		Name:      "feed_poll_errors_total",
		Help:      "Total GTFS-RT feed poll errors",
	}, []string{"feed"})

	DeviceMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "ingest",
		Name:      "device_messages_dropped_total",
		Help:      "Total device messages that could not be turned into fixes",
	}, []string{"transport"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bustrack",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bustrack",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bustrack",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bustrack",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bustrack",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bustrack",
		Subsystem: "db",
		Name:      "pool_empty_acquires",
		Help:      "Cumulative acquires that had to wait for a new connection",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// Label by route pattern (/v1/vehicles/:id/fixes) to keep cardinality
		// bounded; unmatched requests fall back to the raw path.
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	// Adapt the net/http handler to fasthttp
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool gauges from a pgxpool.Stat. stat is taken
// as an interface so this package does not depend on pgx.
func UpdateDBPoolMetrics(stat interface{}) {
	// pgxpool.Stat:
	// AcquiredConns()     - connections currently in use
	// IdleConns()         - connections available
	// TotalConns()        - total connections
	// EmptyAcquireCount() - acquires that had to wait for a new connection
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
		EmptyAcquireCount() int64
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
		DBPoolEmptyAcquires.Set(float64(s.EmptyAcquireCount()))
	}
}
