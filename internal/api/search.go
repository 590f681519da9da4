package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/devmine/internal/errors"
	"github.com/ZanzyTHEbar/devmine/internal/ranking"
)

// SearchResponse is the body returned by /search
type SearchResponse struct {
	Results     []ranking.RankedDeveloper `json:"results"`
	Count       int                       `json:"count"`
	ElapsedTime float64                   `json:"elapsed_time"`
}

// FeatureResponse is one entry of the feature catalog
type FeatureResponse struct {
	Name          string  `json:"name"`
	DefaultWeight float64 `json:"default_weight"`
}

// Search godoc
// @Summary      Rank developers
// @Description  Weighted sum of every developer's feature scores. Weights come from q (GET) or a JSON object body (POST); features left out use their default weight.
// @Tags         ranking
// @Accept       json
// @Produce      json
// @Param        q      query  string  false  "feature:weight pairs, e.g. python:5,java:3"
// @Param        sort   query  string  false  "rank to order by descending rank"
// @Param        limit  query  int     false  "keep the first limit results"
// @Success      200  {object}  SearchResponse
// @Failure      400  {object}  map[string]interface{}
// @Router       /search [get]
// @Router       /search [post]
func (h *Handler) Search(c *gin.Context) {
	query, err := h.searchQuery(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	sortByRank, limit, err := searchOptions(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	results, elapsed, err := h.ranker.Rank(c.Request.Context(), query)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	if sortByRank {
		results = ranking.SortByRank(results)
	}
	if limit > 0 {
		results = ranking.Top(results, limit)
	}
	if results == nil {
		results = []ranking.RankedDeveloper{}
	}

	if h.logger != nil {
		h.logger.RankingLogger(c.GetString(apperrors.RequestIDKey), len(query), len(results), elapsed)
	}

	h.writeJSON(c, http.StatusOK, SearchResponse{
		Results:     results,
		Count:       len(results),
		ElapsedTime: elapsed.Seconds(),
	})
}

func (h *Handler) searchQuery(c *gin.Context) (ranking.Query, error) {
	if c.Request.Method != http.MethodPost {
		query, err := ranking.ParseQuery(c.Query("q"))
		if err != nil {
			return nil, apperrors.NewValidationError("invalid q parameter", err.Error())
		}
		return query, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read request body", err.Error())
	}

	var weights map[string]*float64
	if len(body) > 0 {
		if err := h.encoder.Unmarshal(body, &weights); err != nil {
			return nil, apperrors.NewValidationError("body must be a JSON object of feature weights", err.Error())
		}
	}

	query := make(ranking.Query, len(weights))
	for name, weight := range weights {
		if weight == nil {
			return nil, apperrors.NewValidationError("invalid request body", fmt.Sprintf("weight for %q must be a number", name))
		}
		query[name] = *weight
	}
	return query, nil
}

func searchOptions(c *gin.Context) (sortByRank bool, limit int, err error) {
	switch c.Query("sort") {
	case "":
	case "rank":
		sortByRank = true
	default:
		return false, 0, apperrors.NewValidationError("sort must be rank", c.Query("sort"))
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return false, 0, apperrors.NewValidationError("limit must be a positive integer", raw)
		}
	}

	return sortByRank, limit, nil
}

// ListFeatures godoc
// @Summary      List features
// @Description  Feature catalog ordered by name with default weights
// @Tags         ranking
// @Produce      json
// @Success      200  {array}  FeatureResponse
// @Router       /features [get]
func (h *Handler) ListFeatures(c *gin.Context) {
	features, err := h.repo.ListFeaturesSorted(c.Request.Context())
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	out := make([]FeatureResponse, len(features))
	for i, f := range features {
		out[i] = FeatureResponse{Name: f.Name, DefaultWeight: f.DefaultWeight}
	}
	h.writeJSON(c, http.StatusOK, out)
}

// InvalidateRanking godoc
// @Summary      Drop the cached scores matrix
// @Description  The next ranking request rebuilds the matrix from the database. Cached responses are cleared too.
// @Tags         admin
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /admin/ranking/invalidate [post]
func (h *Handler) InvalidateRanking(c *gin.Context) {
	h.ranker.Invalidate()
	if h.cache != nil {
		h.cache.Clear()
	}

	if h.logger != nil {
		h.logger.SystemLogger("ranking_invalidated", "requested by "+c.ClientIP())
	}

	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

// RankingStats godoc
// @Summary      Scores matrix state
// @Tags         admin
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /admin/ranking/stats [get]
func (h *Handler) RankingStats(c *gin.Context) {
	stats := gin.H{"matrix": h.ranker.MatrixStats()}
	if h.encoder != nil {
		stats["encoder"] = h.encoder.GetStats()
	}
	c.JSON(http.StatusOK, stats)
}
