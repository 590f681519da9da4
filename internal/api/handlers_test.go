package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ZanzyTHEbar/devmine/internal/database"
	apperrors "github.com/ZanzyTHEbar/devmine/internal/errors"
	"github.com/ZanzyTHEbar/devmine/internal/ranking"
	"github.com/ZanzyTHEbar/devmine/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRepo struct {
	mu       sync.Mutex
	scores   []database.Score
	features []database.Feature
	err      error
}

func (f *fakeRepo) ListScoresInRange(_ context.Context, sinceID int64) ([]database.Score, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]database.Score, 0)
	for _, s := range f.scores {
		if s.ID >= sinceID && s.ID-sinceID <= database.PageSize {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > database.PageSize {
		out = out[:database.PageSize]
	}
	return out, nil
}

func (f *fakeRepo) GetScoreByID(_ context.Context, id int64) (*database.Score, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.scores {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, fmt.Errorf("failed to get score %d: %w", id, gorm.ErrRecordNotFound)
}

func (f *fakeRepo) ListFeaturesSorted(context.Context) ([]database.Feature, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := append([]database.Feature(nil), f.features...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepo) ListAllScores(context.Context) ([]database.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := append([]database.Score(nil), f.scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FName != out[j].FName {
			return out[i].FName < out[j].FName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeRepo) addScore(s database.Score) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = append(f.scores, s)
}

func exampleRepo() *fakeRepo {
	return &fakeRepo{
		features: []database.Feature{
			{ID: 1, Name: "python", DefaultWeight: 1},
			{ID: 2, Name: "java", DefaultWeight: 1},
		},
		scores: []database.Score{
			{ID: 1, ULogin: "alice", DID: 10, FName: "python", Score: 0.8},
			{ID: 2, ULogin: "alice", DID: 10, FName: "java", Score: 0.2},
			{ID: 3, ULogin: "bob", DID: 20, FName: "python", Score: 0.1},
			{ID: 4, ULogin: "bob", DID: 20, FName: "java", Score: 0.9},
		},
	}
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

type fakeCache struct{ cleared int }

func (f *fakeCache) Clear() { f.cleared++ }

type testServer struct {
	router *gin.Engine
	repo   *fakeRepo
	cache  *fakeCache
	matrix *ranking.MatrixCache
}

func newTestServer(repo *fakeRepo, adminEnabled bool, db HealthChecker) *testServer {
	matrix := ranking.NewMatrixCache(repo, nil)
	cache := &fakeCache{}

	h := NewHandler(Config{
		Repository:    repo,
		Ranker:        ranking.NewService(repo, matrix, nil),
		ResponseCache: cache,
		DBChecker:     db,
		AdminEnabled:  adminEnabled,
	})

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	h.Register(r, security.RequireJSON(1<<10))

	return &testServer{router: r, repo: repo, cache: cache, matrix: matrix}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestListScores(t *testing.T) {
	repo := exampleRepo()
	for i := int64(5); i <= 250; i++ {
		repo.scores = append(repo.scores, database.Score{ID: i, ULogin: fmt.Sprintf("dev%d", i), DID: i, FName: "go", Score: 0.5})
	}
	srv := newTestServer(repo, false, nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantLen    int
		wantFirst  int64
	}{
		{name: "default page starts at zero", target: "/scores", wantStatus: http.StatusOK, wantLen: 100, wantFirst: 1},
		{name: "since_id selects the window", target: "/scores?since_id=200", wantStatus: http.StatusOK, wantLen: 51, wantFirst: 200},
		{name: "past the end is an empty array", target: "/scores?since_id=1000", wantStatus: http.StatusOK, wantLen: 0},
		{name: "negative since_id", target: "/scores?since_id=-1", wantStatus: http.StatusBadRequest},
		{name: "malformed since_id", target: "/scores?since_id=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}

			var scores []database.Score
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scores))
			assert.Len(t, scores, tt.wantLen)
			if tt.wantLen == 0 {
				assert.Equal(t, "[]", w.Body.String())
				return
			}
			assert.Equal(t, tt.wantFirst, scores[0].ID)
			for i := 1; i < len(scores); i++ {
				assert.Less(t, scores[i-1].ID, scores[i].ID)
			}
		})
	}
}

func TestListScoresDatabaseError(t *testing.T) {
	repo := exampleRepo()
	repo.err = errors.New("boom")
	srv := newTestServer(repo, false, nil)

	w := srv.do(http.MethodGet, "/scores", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetScore(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{name: "existing score", target: "/scores/1", wantStatus: http.StatusOK, wantBody: `{"id":1,"ulogin":"alice","did":10,"fname":"python","score":0.8}`},
		{name: "missing score is an empty object", target: "/scores/999", wantStatus: http.StatusOK, wantBody: `{}`},
		{name: "malformed id", target: "/scores/abc", wantStatus: http.StatusBadRequest},
		{name: "negative id", target: "/scores/-3", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func decodeSearch(t *testing.T, w *httptest.ResponseRecorder) SearchResponse {
	t.Helper()
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSearchWorkedExample(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	for _, req := range []struct{ method, target, body string }{
		{http.MethodGet, "/search?q=python:5", ""},
		{http.MethodPost, "/search", `{"python":5}`},
	} {
		t.Run(req.method, func(t *testing.T) {
			w := srv.do(req.method, req.target, req.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			resp := decodeSearch(t, w)
			require.Equal(t, 2, resp.Count)
			require.Len(t, resp.Results, 2)
			assert.Equal(t, "alice", resp.Results[0].ULogin)
			assert.Equal(t, int64(10), resp.Results[0].DID)
			assert.InDelta(t, 4.2, resp.Results[0].Rank, 1e-9)
			assert.Equal(t, "bob", resp.Results[1].ULogin)
			assert.InDelta(t, 1.4, resp.Results[1].Rank, 1e-9)
			assert.GreaterOrEqual(t, resp.ElapsedTime, 0.0)
		})
	}
}

func TestSearchSortAndLimit(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	w := srv.do(http.MethodGet, "/search?q=java:5&sort=rank&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeSearch(t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "bob", resp.Results[0].ULogin)
	assert.InDelta(t, 4.6, resp.Results[0].Rank, 1e-9)
}

func TestSearchDefaultsWithoutQuery(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	resp := decodeSearch(t, srv.do(http.MethodGet, "/search", ""))
	require.Len(t, resp.Results, 2)
	assert.InDelta(t, 1.0, resp.Results[0].Rank, 1e-9)
	assert.InDelta(t, 1.0, resp.Results[1].Rank, 1e-9)
}

func TestSearchValidation(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "malformed q", method: http.MethodGet, target: "/search?q=python"},
		{name: "unknown sort", method: http.MethodGet, target: "/search?sort=name"},
		{name: "zero limit", method: http.MethodGet, target: "/search?limit=0"},
		{name: "body is not an object", method: http.MethodPost, target: "/search", body: `[1,2]`},
		{name: "weights are not numbers", method: http.MethodPost, target: "/search", body: `{"python":"high"}`},
		{name: "null weight", method: http.MethodPost, target: "/search", body: `{"python":null}`},
		{name: "null weight among valid ones", method: http.MethodPost, target: "/search", body: `{"java":2,"python":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestSearchPostRequiresJSON(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("python=5"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEmptyData(t *testing.T) {
	srv := newTestServer(&fakeRepo{}, false, nil)

	w := srv.do(http.MethodGet, "/search?q=python:5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, mustField(t, w.Body.Bytes(), "results"))
	assert.Equal(t, 0, decodeSearch(t, w).Count)
}

func mustField(t *testing.T, body []byte, key string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return string(m[key])
}

func TestListFeatures(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	w := srv.do(http.MethodGet, "/features", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"java","default_weight":1},{"name":"python","default_weight":1}]`, w.Body.String())
}

func TestAdminRoutesDisabled(t *testing.T) {
	srv := newTestServer(exampleRepo(), false, nil)

	w := srv.do(http.MethodPost, "/admin/ranking/invalidate", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidateRanking(t *testing.T) {
	srv := newTestServer(exampleRepo(), true, nil)

	first := decodeSearch(t, srv.do(http.MethodGet, "/search", ""))
	require.Len(t, first.Results, 2)

	srv.repo.addScore(database.Score{ID: 5, ULogin: "carol", DID: 30, FName: "python", Score: 1})

	stale := decodeSearch(t, srv.do(http.MethodGet, "/search", ""))
	assert.Len(t, stale.Results, 2, "matrix is memoized until invalidated")

	w := srv.do(http.MethodPost, "/admin/ranking/invalidate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, srv.cache.cleared)

	fresh := decodeSearch(t, srv.do(http.MethodGet, "/search", ""))
	assert.Len(t, fresh.Results, 3)
	assert.Equal(t, 2, srv.matrix.Builds())

	stats := srv.do(http.MethodGet, "/admin/ranking/stats", "")
	require.Equal(t, http.StatusOK, stats.Code)
	assert.Contains(t, stats.Body.String(), `"cached":true`)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         HealthChecker
		wantStatus int
		wantState  string
	}{
		{name: "database reachable", db: fakeChecker{}, wantStatus: http.StatusOK, wantState: "ok"},
		{name: "database down", db: fakeChecker{err: errors.New("database ping failed")}, wantStatus: http.StatusServiceUnavailable, wantState: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(exampleRepo(), false, tt.db)

			w := srv.do(http.MethodGet, "/health", "")
			require.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, "dev", body["version"])
		})
	}
}
