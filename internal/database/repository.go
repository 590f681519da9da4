package database

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"
)

// PageSize is the width of a since_id page
const PageSize = 100

// Repository exposes the read queries used by the scores endpoint and the
// ranking computation
type Repository interface {
	ListScoresInRange(ctx context.Context, sinceID int64) ([]Score, error)
	GetScoreByID(ctx context.Context, id int64) (*Score, error)
	ListFeaturesSorted(ctx context.Context) ([]Feature, error)
	ListAllScores(ctx context.Context) ([]Score, error)
}

// GormRepository implements Repository on top of gorm
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *GormRepository {
	return &GormRepository{db: db.DB}
}

// ListScoresInRange returns up to PageSize scores with id in
// [sinceID, sinceID+PageSize], ordered by id
func (r *GormRepository) ListScoresInRange(ctx context.Context, sinceID int64) ([]Score, error) {
	scores := make([]Score, 0)
	err := r.db.WithContext(ctx).
		Where("id BETWEEN ? AND ?", sinceID, pageUpperBound(sinceID)).
		Order("id").
		Limit(PageSize).
		Find(&scores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}

	return scores, nil
}

// pageUpperBound is sinceID+PageSize, saturated at math.MaxInt64
func pageUpperBound(sinceID int64) int64 {
	if sinceID > math.MaxInt64-PageSize {
		return math.MaxInt64
	}
	return sinceID + PageSize
}

// GetScoreByID returns the score with the given id. A missing row is
// reported as gorm.ErrRecordNotFound.
func (r *GormRepository) GetScoreByID(ctx context.Context, id int64) (*Score, error) {
	var score Score
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&score).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get score %d: %w", id, err)
	}

	return &score, nil
}

// ListFeaturesSorted returns the feature catalog ordered by name
func (r *GormRepository) ListFeaturesSorted(ctx context.Context) ([]Feature, error) {
	features := make([]Feature, 0)
	if err := r.db.WithContext(ctx).Order("name").Find(&features).Error; err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}

	return features, nil
}

// ListAllScores returns every score ordered by feature name, then id
func (r *GormRepository) ListAllScores(ctx context.Context) ([]Score, error) {
	scores := make([]Score, 0)
	err := r.db.WithContext(ctx).
		Select("id", "ulogin", "did", "fname", "score").
		Order("fname").
		Order("id").
		Find(&scores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list all scores: %w", err)
	}

	return scores, nil
}
