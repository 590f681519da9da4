package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixtures is a development data set loaded by the seed command
type Fixtures struct {
	Features []FeatureFixture `yaml:"features"`
	Scores   []ScoreFixture   `yaml:"scores"`
}

// FeatureFixture describes one catalog entry
type FeatureFixture struct {
	Name          string  `yaml:"name"`
	DefaultWeight float64 `yaml:"default_weight"`
}

// ScoreFixture describes one score row
type ScoreFixture struct {
	ULogin string  `yaml:"ulogin"`
	DID    int64   `yaml:"did"`
	FName  string  `yaml:"fname"`
	Score  float64 `yaml:"score"`
}

// LoadFixtures decodes a YAML fixture document
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}

	for i, feat := range f.Features {
		if feat.Name == "" {
			return nil, fmt.Errorf("feature %d: name is required", i)
		}
	}
	for i, s := range f.Scores {
		if s.ULogin == "" || s.FName == "" {
			return nil, fmt.Errorf("score %d: ulogin and fname are required", i)
		}
	}

	return &f, nil
}

// Seed writes fixtures in a single transaction. Features are upserted by
// name; scores are appended.
func (db *DB) Seed(ctx context.Context, f *Fixtures) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, feat := range f.Features {
			row := Feature{Name: feat.Name, DefaultWeight: feat.DefaultWeight}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"default_weight"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to seed feature %s: %w", feat.Name, err)
			}
		}

		if len(f.Scores) > 0 {
			rows := make([]Score, len(f.Scores))
			for i, s := range f.Scores {
				rows[i] = Score{ULogin: s.ULogin, DID: s.DID, FName: s.FName, Score: s.Score}
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("failed to seed scores: %w", err)
			}
		}

		slog.Info("Fixtures seeded", "features", len(f.Features), "scores", len(f.Scores))
		return nil
	})
}
