package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/devmine/internal/database"
)

// ErrDimensionMismatch is returned when the weight vector or user list does
// not fit the score matrix
var ErrDimensionMismatch = errors.New("ranking: dimension mismatch")

// RankedDeveloper is one row of a ranking result
type RankedDeveloper struct {
	ULogin string  `json:"ulogin"`
	Rank   float64 `json:"rank"`
	DID    int64   `json:"did"`
}

// Recorder receives ranking measurements
type Recorder interface {
	MatrixBuilt(rows, cols int, d time.Duration)
	RankPrepared(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) MatrixBuilt(int, int, time.Duration) {}
func (nopRecorder) RankPrepared(time.Duration)          {}

// FeatureLister loads the feature catalog ordered by name
type FeatureLister interface {
	ListFeaturesSorted(ctx context.Context) ([]database.Feature, error)
}

// ComputeRanks multiplies the m×n matrix a by the weight vector b and pairs
// each result with users[i]. Results keep row order.
func ComputeRanks(a mat.Matrix, b []float64, users []User) ([]RankedDeveloper, error) {
	if a == nil {
		if len(users) != 0 {
			return nil, fmt.Errorf("%w: %d users for an empty matrix", ErrDimensionMismatch, len(users))
		}
		return []RankedDeveloper{}, nil
	}

	rows, cols := a.Dims()
	if len(b) != cols {
		return nil, fmt.Errorf("%w: %d weights for %d features", ErrDimensionMismatch, len(b), cols)
	}
	if len(users) != rows {
		return nil, fmt.Errorf("%w: %d users for %d rows", ErrDimensionMismatch, len(users), rows)
	}

	var ranks mat.VecDense
	ranks.MulVec(a, mat.NewVecDense(cols, b))

	out := make([]RankedDeveloper, rows)
	for i := 0; i < rows; i++ {
		out[i] = RankedDeveloper{
			ULogin: users[i].ULogin,
			Rank:   ranks.AtVec(i),
			DID:    users[i].DID,
		}
	}
	return out, nil
}

// Service ranks developers against a query
type Service struct {
	features FeatureLister
	matrix   *MatrixCache
	recorder Recorder
}

// NewService creates a ranking service. The matrix cache is shared by
// every call to Rank.
func NewService(features FeatureLister, matrix *MatrixCache, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{features: features, matrix: matrix, recorder: recorder}
}

// BuildWeightVector loads the feature catalog and applies the query's
// overrides. Query terms naming no feature are ignored.
func (s *Service) BuildWeightVector(ctx context.Context, query Query) (WeightVector, error) {
	features, err := s.features.ListFeaturesSorted(ctx)
	if err != nil {
		return WeightVector{}, err
	}

	if unknown := unknownTerms(features, query); len(unknown) > 0 {
		slog.Debug("Ignoring query terms with no matching feature", "terms", unknown)
	}

	return WeightsFor(features, query), nil
}

// ScoresMatrix returns the cached score matrix
func (s *Service) ScoresMatrix(ctx context.Context) (*ScoresMatrix, error) {
	return s.matrix.Get(ctx)
}

// Invalidate drops the cached score matrix
func (s *Service) Invalidate() {
	s.matrix.Invalidate()
}

// MatrixStats describes the cached score matrix
func (s *Service) MatrixStats() map[string]interface{} {
	return s.matrix.Stats()
}

// Rank computes every developer's rank for the query, in matrix row order.
// The returned duration covers building the weight vector and fetching the
// matrix, not the product itself.
func (s *Service) Rank(ctx context.Context, query Query) ([]RankedDeveloper, time.Duration, error) {
	start := time.Now()

	wv, err := s.BuildWeightVector(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	m, err := s.matrix.Get(ctx)
	if err != nil {
		return nil, 0, err
	}
	b := wv.Align(m.Columns)

	elapsed := time.Since(start)
	s.recorder.RankPrepared(elapsed)

	if m.Empty() {
		// developers without any feature column rank 0
		out := make([]RankedDeveloper, len(m.Users))
		for i, u := range m.Users {
			out[i] = RankedDeveloper{ULogin: u.ULogin, DID: u.DID}
		}
		return out, elapsed, nil
	}

	ranks, err := ComputeRanks(m.Dense, b, m.Users)
	if err != nil {
		return nil, elapsed, err
	}
	return ranks, elapsed, nil
}
