package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/devmine/docs"
	"github.com/ZanzyTHEbar/devmine/internal/api"
	"github.com/ZanzyTHEbar/devmine/internal/cache"
	"github.com/ZanzyTHEbar/devmine/internal/config"
	"github.com/ZanzyTHEbar/devmine/internal/database"
	"github.com/ZanzyTHEbar/devmine/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/devmine/internal/errors"
	"github.com/ZanzyTHEbar/devmine/internal/middleware"
	"github.com/ZanzyTHEbar/devmine/internal/monitoring"
	"github.com/ZanzyTHEbar/devmine/internal/ranking"
	"github.com/ZanzyTHEbar/devmine/internal/ratelimit"
	"github.com/ZanzyTHEbar/devmine/internal/security"
)

// app owns the long-lived server components
type app struct {
	cfg       *config.Config
	db        *database.DB
	repo      database.Repository
	matrix    *ranking.MatrixCache
	ranker    *ranking.Service
	encoder   *encoding.RowEncoder
	logger    *monitoring.Logger
	metrics   *monitoring.Metrics
	registry  *prometheus.Registry
	redis     *ratelimit.RedisClient
	limiter   *ratelimit.RateLimiter
	responses *cache.Cache
	gzip      *middleware.CompressionMiddleware
}

// newApp wires the components around an open database. Redis failures
// degrade to in-memory rate limiting.
func newApp(ctx context.Context, cfg *config.Config, db *database.DB, logger *monitoring.Logger) (*app, error) {
	metrics := monitoring.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		return nil, err
	}

	redisClient, err := ratelimit.NewRedisClient(ctx, ratelimit.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.IPLimitPerMin = cfg.RateLimitPerMin

	repo := database.NewRepository(db)
	matrix := ranking.NewMatrixCache(repo, metrics)

	return &app{
		cfg:       cfg,
		db:        db,
		repo:      repo,
		matrix:    matrix,
		ranker:    ranking.NewService(repo, matrix, metrics),
		encoder:   encoding.NewRowEncoder(32),
		logger:    logger,
		metrics:   metrics,
		registry:  registry,
		redis:     redisClient,
		limiter:   ratelimit.NewRateLimiter(redisClient, limiterCfg, metrics),
		responses: cache.NewCache(cfg.CacheTTL),
		gzip:      middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
	}, nil
}

// router builds the gin engine with the full middleware chain
func (a *app) router() *gin.Engine {
	r := gin.New()

	secCfg := security.DefaultConfig()
	secCfg.EnableHSTS = a.cfg.IsProduction()

	r.Use(monitoring.RequestID())
	r.Use(apperrors.RecoveryHandler())
	r.Use(apperrors.ErrorHandler())
	r.Use(monitoring.MonitoringMiddleware(a.metrics, a.logger))
	r.Use(security.HeadersMiddleware(secCfg))
	r.Use(security.RequestTimeout(secCfg.RequestTimeout))
	r.Use(cors.New(a.corsConfig()))
	r.Use(a.gzip.Handler())
	r.Use(a.limiter.IPRateLimitMiddleware())
	r.Use(a.responses.Middleware(a.metrics, "/scores", "/features", "/search"))

	handler := api.NewHandler(api.Config{
		Repository:    a.repo,
		Ranker:        a.ranker,
		Encoder:       a.encoder,
		Logger:        a.logger,
		Metrics:       a.metrics,
		ResponseCache: a.responses,
		DBChecker:     a.db,
		RedisChecker:  a.redisChecker(),
		AdminEnabled:  a.cfg.AdminEnabled,
		Version:       Version,
	})
	handler.Register(r, security.RequireJSON(secCfg.MaxBodyBytes))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func (a *app) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", monitoring.RequestIDHeader},
		ExposeHeaders: []string{monitoring.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(a.cfg.CORSOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = a.cfg.CORSOrigins
	}
	return cfg
}

// redisChecker is nil when Redis is not configured so /health omits it
func (a *app) redisChecker() api.HealthChecker {
	if a.cfg.RedisAddr == "" {
		return nil
	}
	return a.redis
}

// warmMatrix builds the scores matrix ahead of the first ranking request
func (a *app) warmMatrix(ctx context.Context) {
	start := time.Now()
	m, err := a.matrix.Get(ctx)
	if err != nil {
		slog.Error("Scores matrix warm-up failed", "error", err)
		return
	}
	rows, cols := m.Dims()
	slog.Info("Scores matrix warmed", "developers", rows, "features", cols, "duration_ms", time.Since(start).Milliseconds())
}

func (a *app) close() {
	a.limiter.Close()
	a.responses.Close()
	if err := a.redis.Close(); err != nil {
		slog.Error("Failed to close Redis client", "error", err)
	}
}
