package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/ZanzyTHEbar/devmine/internal/database"
	"github.com/ZanzyTHEbar/devmine/internal/ranking"
)

func benchmarkScores(users, features int) []database.Score {
	scores := make([]database.Score, 0, users*features)
	id := int64(1)
	for f := 0; f < features; f++ {
		for u := 0; u < users; u++ {
			scores = append(scores, database.Score{
				ID:     id,
				ULogin: fmt.Sprintf("dev%05d", u),
				DID:    int64(u),
				FName:  fmt.Sprintf("feature%03d", f),
				Score:  float64((u*31+f*7)%100) / 100,
			})
			id++
		}
	}
	return scores
}

func BenchmarkComputeRanks(b *testing.B) {
	m := ranking.BuildScoresMatrix(benchmarkScores(10000, 50))
	weights := make([]float64, len(m.Columns))
	for i := range weights {
		weights[i] = 1
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ranking.ComputeRanks(m.Dense, weights, m.Users); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuildScoresMatrix(b *testing.B) {
	scores := benchmarkScores(2000, 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ranking.BuildScoresMatrix(scores)
	}
}

func BenchmarkSearchEndpoint(b *testing.B) {
	cfg := testConfig()
	cfg.CacheTTL = 0
	cfg.RateLimitPerMin = 0
	a := setupApp(b, cfg)
	r := a.router()
	a.warmMatrix(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := do(r, http.MethodGet, "/search?q=python:5,java:2&sort=rank", "")
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}
