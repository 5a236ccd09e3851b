// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

// Package main is the entry point for the Catalogus pipeline.
//
// Catalogus pulls artist, album, and track metadata from a paginated music
// catalog API, normalizes and deduplicates it into a relational schema in
// DuckDB, and fabricates synthetic weekly stream/download metrics.
//
// # Modes
//
//	catalogus -mode ingest   # one ingestion run over the configured artist ids
//	catalogus -mode weekly   # generate and load synthetic weekly metrics
//	catalogus -mode serve    # run the HTTP trigger service under supervision
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (CATALOG_URL, CATALOG_CLIENT_ID, DUCKDB_PATH, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the active run or shut the trigger service
// down gracefully. A canceled ingestion run still flushes nothing partial:
// the aggregator's tables are only written after a run completes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalogus-dev/catalogus/internal/api"
	"github.com/catalogus-dev/catalogus/internal/catalog"
	"github.com/catalogus-dev/catalogus/internal/config"
	"github.com/catalogus-dev/catalogus/internal/database"
	"github.com/catalogus-dev/catalogus/internal/ingest"
	"github.com/catalogus-dev/catalogus/internal/logging"
	"github.com/catalogus-dev/catalogus/internal/models"
	"github.com/catalogus-dev/catalogus/internal/supervisor"
	"github.com/catalogus-dev/catalogus/internal/weekly"
)

func main() {
	mode := flag.String("mode", "ingest", "run mode: ingest, weekly, or serve")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("mode", *mode).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Catalogus")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	switch *mode {
	case "ingest":
		err = runIngest(ctx, cfg, db)
	case "weekly":
		err = runWeekly(ctx, cfg, db)
	case "serve":
		err = runServe(ctx, cfg, db)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Str("mode", *mode).Msg("Run failed")
		if closeErr := db.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing database")
		}
		os.Exit(1)
	}
}

// newRunner wires the catalog client stack: client credentials token
// source, rate-limited HTTP client, circuit breaker, and the runner.
func newRunner(cfg *config.Config, db *database.DB) *ingest.Runner {
	var tokens catalog.TokenSource
	if cfg.Catalog.TokenURL != "" {
		tokens = catalog.NewClientCredentialsSource(&cfg.Catalog)
	} else {
		tokens = &catalog.StaticTokenSource{Value: cfg.Catalog.ClientSecret}
	}

	client := catalog.NewBreakerClient(catalog.NewClient(&cfg.Catalog, tokens))

	r := ingest.NewRunner(client, tokens, &cfg.Ingest, cfg.Catalog.PageSize, db)
	if cfg.Stage.Enabled {
		r = r.WithStaging(cfg.Stage.Dir)
	}
	return r
}

func runIngest(ctx context.Context, cfg *config.Config, db *database.DB) error {
	if len(cfg.Ingest.ArtistIDs) == 0 {
		return errors.New("no artist ids configured (ingest.artist_ids)")
	}

	report, err := newRunner(cfg, db).Run(ctx, cfg.Ingest.ArtistIDs)
	if report != nil {
		logReport(report)
	}
	return err
}

func logReport(report *models.RunReport) {
	logging.Info().
		Str("run_id", report.RunID.String()).
		Strs("succeeded", report.Succeeded()).
		Strs("aborted", report.Aborted()).
		Int("artists", report.Artists).
		Int("albums", report.Albums).
		Int("tracks", report.Tracks).
		Int("skipped_records", len(report.Skipped)).
		Int("duplicates_dropped", report.DuplicatesDropped).
		Dur("duration", report.Duration()).
		Msg("Run report")
}

// runWeekly generates synthetic weekly metrics for every track already in
// the sink, writes one JSON file per week, and loads the rows.
func runWeekly(ctx context.Context, cfg *config.Config, db *database.DB) error {
	songIDs, err := db.SongIDs(ctx)
	if err != nil {
		return err
	}
	if len(songIDs) == 0 {
		return errors.New("no tracks in the database; run ingest first")
	}

	gen := weekly.NewGenerator(cfg.Weekly.Seed)
	files := gen.GenerateYear(songIDs, cfg.Weekly.Year)

	if cfg.Weekly.OutputDir != "" {
		if err := weekly.WriteFiles(cfg.Weekly.OutputDir, cfg.Weekly.Year, files); err != nil {
			return err
		}
		logging.Info().
			Str("dir", cfg.Weekly.OutputDir).
			Int("weeks", len(files)).
			Msg("Weekly metric files written")
	}

	streams, downloads := weekly.Rows(files)
	inserted, err := db.FlushWeekly(ctx, streams, downloads)
	if err != nil {
		return err
	}
	logging.Info().
		Int("songs", len(songIDs)).
		Int("year", cfg.Weekly.Year).
		Int64("rows_inserted", inserted).
		Msg("Weekly metrics loaded")
	return nil
}

// runServe keeps the trigger HTTP service alive under a supervision tree
// until a shutdown signal arrives.
func runServe(ctx context.Context, cfg *config.Config, db *database.DB) error {
	runner := newRunner(cfg, db)
	srv := api.NewServer(runner, &cfg.Server, cfg.Ingest.ArtistIDs)

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.Add(supervisor.ServiceFunc(srv.ListenAndServe))

	return tree.Serve(ctx)
}
