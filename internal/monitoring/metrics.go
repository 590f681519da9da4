package monitoring

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	MetricHTTPRequestsTotal     = "devmine_http_requests_total"
	MetricHTTPRequestDuration   = "devmine_http_request_duration_seconds"
	MetricRankPrepareDuration   = "devmine_rank_prepare_seconds"
	MetricMatrixBuildsTotal     = "devmine_matrix_builds_total"
	MetricMatrixBuildDuration   = "devmine_matrix_build_seconds"
	MetricMatrixRows            = "devmine_matrix_rows"
	MetricMatrixColumns         = "devmine_matrix_columns"
	MetricRateLimitBlocked      = "devmine_rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "devmine_rate_limit_redis_errors_total"
	MetricRateLimitFallback     = "devmine_rate_limit_fallback_total"
	MetricResponseCacheRequests = "devmine_response_cache_requests_total"
)

// Metrics holds the application collectors plus a few counters mirrored
// for the health endpoint. All methods are safe for concurrent use.
type Metrics struct {
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rankPrepare         prometheus.Histogram
	matrixBuilds        prometheus.Counter
	matrixBuildDuration prometheus.Histogram
	matrixRows          prometheus.Gauge
	matrixColumns       prometheus.Gauge
	rateLimitBlocked    *prometheus.CounterVec
	rateLimitRedisErrs  prometheus.Counter
	rateLimitFallback   prometheus.Counter
	cacheRequests       *prometheus.CounterVec

	requestCount int64
	errorCount   int64
	rankCount    int64
	startTime    time.Time
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"method", "path", "status"},
		),
		rankPrepare: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankPrepareDuration,
			Help:    "Time spent building the weight vector and fetching the scores matrix",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		matrixBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMatrixBuildsTotal,
			Help: "Number of times the scores matrix was built from the database",
		}),
		matrixBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricMatrixBuildDuration,
			Help:    "Scores matrix build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		matrixRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricMatrixRows,
			Help: "Developers in the cached scores matrix",
		}),
		matrixColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricMatrixColumns,
			Help: "Features in the cached scores matrix",
		}),
		rateLimitBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitBlocked,
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
		rateLimitRedisErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Redis errors during rate limiting that fell back to memory",
		}),
		rateLimitFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitFallback,
			Help: "Rate limit checks served by the in-memory limiter",
		}),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricResponseCacheRequests,
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),
		startTime: time.Now(),
	}
}

// Collectors returns every collector owned by m
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequests,
		m.httpRequestDuration,
		m.rankPrepare,
		m.matrixBuilds,
		m.matrixBuildDuration,
		m.matrixRows,
		m.matrixColumns,
		m.rateLimitBlocked,
		m.rateLimitRedisErrs,
		m.rateLimitFallback,
		m.cacheRequests,
	}
}

// Register registers all collectors with reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveHTTPRequest records one finished request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	atomic.AddInt64(&m.requestCount, 1)
	if status >= 400 {
		atomic.AddInt64(&m.errorCount, 1)
	}

	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(d.Seconds())
}

// MatrixBuilt records a scores matrix build
func (m *Metrics) MatrixBuilt(rows, cols int, d time.Duration) {
	m.matrixBuilds.Inc()
	m.matrixBuildDuration.Observe(d.Seconds())
	m.matrixRows.Set(float64(rows))
	m.matrixColumns.Set(float64(cols))
}

// RankPrepared records the preparation time of one ranking request
func (m *Metrics) RankPrepared(d time.Duration) {
	atomic.AddInt64(&m.rankCount, 1)
	m.rankPrepare.Observe(d.Seconds())
}

// IncRateLimitBlocked counts a rejected request
func (m *Metrics) IncRateLimitBlocked(path string) {
	m.rateLimitBlocked.WithLabelValues(path).Inc()
}

// IncRateLimitRedisErrors counts a Redis failure during a rate limit check
func (m *Metrics) IncRateLimitRedisErrors() {
	m.rateLimitRedisErrs.Inc()
}

// IncRateLimitFallback counts a check served from memory
func (m *Metrics) IncRateLimitFallback() {
	m.rateLimitFallback.Inc()
}

// IncCacheHit counts a response cache hit
func (m *Metrics) IncCacheHit() {
	m.cacheRequests.WithLabelValues("hit").Inc()
}

// IncCacheMiss counts a response cache miss
func (m *Metrics) IncCacheMiss() {
	m.cacheRequests.WithLabelValues("miss").Inc()
}

// GetStats returns a small snapshot for the health endpoint
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.requestCount)
	errs := atomic.LoadInt64(&m.errorCount)

	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errs) / float64(requests)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(m.startTime).Seconds(),
		"requests":       requests,
		"errors":         errs,
		"error_rate":     errorRate,
		"rank_requests":  atomic.LoadInt64(&m.rankCount),
	}
}
