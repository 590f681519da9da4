package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/devmine/internal/api"
	"github.com/ZanzyTHEbar/devmine/internal/database"
	"github.com/ZanzyTHEbar/devmine/internal/encoding"
	"github.com/ZanzyTHEbar/devmine/internal/ranking"
)

var (
	rankSort  bool
	rankLimit int
)

var rankCmd = &cobra.Command{
	Use:   "rank [feature:weight]...",
	Short: "Rank developers once and print the result as JSON",
	Long: `Rank developers by the weighted sum of their feature scores.

Each argument is a feature:weight pair; features left out use their default
weight. Several pairs may also be given comma separated.

Examples:
  devmine rank
  devmine rank python:5 java:3
  devmine rank python:5,go:2 --sort --limit 10`,
	RunE: runRank,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the scores and features tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixtures.yaml>",
	Short: "Load development fixtures into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func init() {
	rankCmd.Flags().BoolVar(&rankSort, "sort", false, "Order results by descending rank")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 0, "Keep only the first N results")
}

func runRank(cmd *cobra.Command, args []string) error {
	query, err := ranking.ParseQuery(strings.Join(args, ","))
	if err != nil {
		return err
	}
	if rankLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := database.NewRepository(db)
	service := ranking.NewService(repo, ranking.NewMatrixCache(repo, nil), nil)

	results, elapsed, err := service.Rank(cmd.Context(), query)
	if err != nil {
		return err
	}
	if rankSort {
		results = ranking.SortByRank(results)
	}
	if rankLimit > 0 {
		results = ranking.Top(results, rankLimit)
	}
	if results == nil {
		results = []ranking.RankedDeveloper{}
	}

	data, err := encoding.NewRowEncoder(1).Marshal(api.SearchResponse{
		Results:     results,
		Count:       len(results),
		ElapsedTime: elapsed.Seconds(),
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer f.Close()

	fixtures, err := database.LoadFixtures(f)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	if err := db.Seed(cmd.Context(), fixtures); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d features and %d scores\n", len(fixtures.Features), len(fixtures.Scores))
	return nil
}
