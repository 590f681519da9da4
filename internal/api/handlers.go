// Package api provides the HTTP handlers for the scores and ranking
// endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/devmine/internal/database"
	"github.com/ZanzyTHEbar/devmine/internal/encoding"
	"github.com/ZanzyTHEbar/devmine/internal/monitoring"
	"github.com/ZanzyTHEbar/devmine/internal/ranking"
)

// Ranker computes developer rankings
type Ranker interface {
	Rank(ctx context.Context, query ranking.Query) ([]ranking.RankedDeveloper, time.Duration, error)
	Invalidate()
	MatrixStats() map[string]interface{}
}

// HealthChecker is implemented by dependencies the health endpoint probes
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CacheClearer drops cached responses
type CacheClearer interface {
	Clear()
}

// Config wires a Handler
type Config struct {
	Repository    database.Repository
	Ranker        Ranker
	Encoder       *encoding.RowEncoder
	Logger        *monitoring.Logger
	Metrics       *monitoring.Metrics
	ResponseCache CacheClearer
	DBChecker     HealthChecker
	RedisChecker  HealthChecker
	AdminEnabled  bool
	Version       string
}

// Handler serves the devmine HTTP API
type Handler struct {
	repo         database.Repository
	ranker       Ranker
	encoder      *encoding.RowEncoder
	logger       *monitoring.Logger
	metrics      *monitoring.Metrics
	cache        CacheClearer
	dbChecker    HealthChecker
	redisChecker HealthChecker
	adminEnabled bool
	version      string
}

// NewHandler creates a Handler
func NewHandler(cfg Config) *Handler {
	if cfg.Encoder == nil {
		cfg.Encoder = encoding.NewRowEncoder(16)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	return &Handler{
		repo:         cfg.Repository,
		ranker:       cfg.Ranker,
		encoder:      cfg.Encoder,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		cache:        cfg.ResponseCache,
		dbChecker:    cfg.DBChecker,
		redisChecker: cfg.RedisChecker,
		adminEnabled: cfg.AdminEnabled,
		version:      cfg.Version,
	}
}

// Register mounts the API routes on r. jsonBody guards handlers that read
// a request body.
func (h *Handler) Register(r gin.IRouter, jsonBody gin.HandlerFunc) {
	r.GET("/health", h.Health)

	r.GET("/scores", h.ListScores)
	r.GET("/scores/:id", h.GetScore)

	r.GET("/search", h.Search)
	r.POST("/search", jsonBody, h.Search)
	r.GET("/features", h.ListFeatures)

	if h.adminEnabled {
		admin := r.Group("/admin")
		admin.POST("/ranking/invalidate", h.InvalidateRanking)
		admin.GET("/ranking/stats", h.RankingStats)
	}
}

func (h *Handler) writeJSON(c *gin.Context, status int, v interface{}) {
	data, err := h.encoder.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

func (h *Handler) writeRaw(c *gin.Context, data []byte) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
