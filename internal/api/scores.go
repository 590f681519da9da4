package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/devmine/internal/errors"
)

// ListScores godoc
// @Summary      List scores
// @Description  Returns up to 100 scores with id in [since_id, since_id+100], ordered by id
// @Tags         scores
// @Produce      json
// @Param        since_id  query  int  false  "lowest id of the page"  default(0)
// @Success      200  {array}   database.Score
// @Failure      400  {object}  map[string]interface{}
// @Router       /scores [get]
func (h *Handler) ListScores(c *gin.Context) {
	sinceID, err := parseID(c.DefaultQuery("since_id", "0"), "since_id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	scores, err := h.repo.ListScoresInRange(c.Request.Context(), sinceID)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	data, err := h.encoder.EncodeScores(scores)
	if err != nil {
		apperrors.Abort(c, apperrors.NewInternalError("failed to encode scores", err))
		return
	}
	h.writeRaw(c, data)
}

// GetScore godoc
// @Summary      Get a score
// @Description  Returns the score with the given id, or an empty object when none exists
// @Tags         scores
// @Produce      json
// @Param        id  path  int  true  "score id"
// @Success      200  {object}  database.Score
// @Failure      400  {object}  map[string]interface{}
// @Router       /scores/{id} [get]
func (h *Handler) GetScore(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	score, err := h.repo.GetScoreByID(c.Request.Context(), id)
	switch {
	case apperrors.IsNotFound(err):
		score = nil
	case err != nil:
		apperrors.Abort(c, err)
		return
	}

	data, err := h.encoder.EncodeScore(score)
	if err != nil {
		apperrors.Abort(c, apperrors.NewInternalError("failed to encode score", err))
		return
	}
	h.writeRaw(c, data)
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(name+" must be an integer", raw)
	}
	if id < 0 {
		return 0, apperrors.NewValidationError(name+" must not be negative", raw)
	}
	return id, nil
}
