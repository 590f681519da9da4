package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/devmine/internal/database"
)

// User identifies the developer behind a matrix row
type User struct {
	ULogin string `json:"ulogin"`
	DID    int64  `json:"did"`
}

// ScoresMatrix is the developer × feature score matrix. Row i of Dense
// belongs to Users[i]; column j holds scores for Columns[j].
type ScoresMatrix struct {
	Dense   *mat.Dense
	Columns []string
	Users   []User
	BuiltAt time.Time
}

// Dims returns the number of developers and features
func (m *ScoresMatrix) Dims() (rows, cols int) {
	return len(m.Users), len(m.Columns)
}

// Empty reports whether the matrix has no cells
func (m *ScoresMatrix) Empty() bool {
	r, c := m.Dims()
	return r == 0 || c == 0
}

// Row returns a copy of developer i's score vector
func (m *ScoresMatrix) Row(i int) []float64 {
	if m.Empty() {
		return nil
	}
	return mat.Row(nil, i, m.Dense)
}

// BuildScoresMatrix lays scores out as a matrix. Scores must be ordered by
// feature name; developers get rows in the order they are first seen, and
// the last did seen for a developer wins. Missing cells are 0.
func BuildScoresMatrix(scores []database.Score) *ScoresMatrix {
	rowOf := make(map[string]int)
	colOf := make(map[string]struct{})
	var users []User

	for _, s := range scores {
		colOf[s.FName] = struct{}{}
		if i, ok := rowOf[s.ULogin]; ok {
			users[i].DID = s.DID
			continue
		}
		rowOf[s.ULogin] = len(users)
		users = append(users, User{ULogin: s.ULogin, DID: s.DID})
	}

	columns := make([]string, 0, len(colOf))
	for name := range colOf {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	m := &ScoresMatrix{
		Columns: columns,
		Users:   users,
		BuiltAt: time.Now(),
	}
	if m.Empty() {
		return m
	}

	col := make(map[string]int, len(columns))
	for j, name := range columns {
		col[name] = j
	}

	m.Dense = mat.NewDense(len(users), len(columns), nil)
	for _, s := range scores {
		m.Dense.Set(rowOf[s.ULogin], col[s.FName], s.Score)
	}

	return m
}

// ScoreLister loads every score ordered by feature name
type ScoreLister interface {
	ListAllScores(ctx context.Context) ([]database.Score, error)
}

// MatrixCache memoizes the scores matrix for the life of the process.
// Rows added to the scores table after the first build are not seen until
// Invalidate is called.
type MatrixCache struct {
	mu       sync.Mutex
	source   ScoreLister
	matrix   *ScoresMatrix
	builds   int
	recorder Recorder
}

// NewMatrixCache creates an empty cache backed by source
func NewMatrixCache(source ScoreLister, recorder Recorder) *MatrixCache {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &MatrixCache{source: source, recorder: recorder}
}

// Get returns the cached matrix, building it on first use. Every call after
// a successful build returns the same pointer.
func (c *MatrixCache) Get(ctx context.Context) (*ScoresMatrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.matrix != nil {
		return c.matrix, nil
	}

	start := time.Now()
	scores, err := c.source.ListAllScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores matrix: %w", err)
	}

	c.matrix = BuildScoresMatrix(scores)
	c.builds++

	rows, cols := c.matrix.Dims()
	c.recorder.MatrixBuilt(rows, cols, time.Since(start))
	slog.Info("Scores matrix built",
		"developers", rows,
		"features", cols,
		"scores", len(scores),
		"duration_ms", time.Since(start).Milliseconds())

	return c.matrix, nil
}

// Invalidate drops the cached matrix so the next Get rebuilds it
func (c *MatrixCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.matrix != nil {
		slog.Info("Scores matrix invalidated", "built_at", c.matrix.BuiltAt)
	}
	c.matrix = nil
}

// Builds returns how many times the matrix has been built
func (c *MatrixCache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

// Stats describes the cached matrix
func (c *MatrixCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := map[string]interface{}{
		"cached": c.matrix != nil,
		"builds": c.builds,
	}
	if c.matrix != nil {
		rows, cols := c.matrix.Dims()
		stats["developers"] = rows
		stats["features"] = cols
		stats["built_at"] = c.matrix.BuiltAt.Format(time.RFC3339)
	}
	return stats
}
