// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

/* runner.go - Ingestion Run Orchestration

A run walks a list of artist ids through fetch, normalize, and aggregate,
then flushes the deduplicated tables to the sink. Artist ids are mutually
independent: a configurable worker pool processes them in parallel while
each artist's own page sequence stays strictly in order. One artist
exhausting its retries is recorded as aborted in the run report and never
stops the others.

The run's only public entry point returns a RunReport enumerating
per-resource outcomes and skipped records; no failure escapes as a bare
error unless the run itself could not start.
*/
//nolint:staticcheck // File documentation, not package doc
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalogus-dev/catalogus/internal/aggregate"
	"github.com/catalogus-dev/catalogus/internal/catalog"
	"github.com/catalogus-dev/catalogus/internal/config"
	"github.com/catalogus-dev/catalogus/internal/database"
	"github.com/catalogus-dev/catalogus/internal/logging"
	"github.com/catalogus-dev/catalogus/internal/metrics"
	"github.com/catalogus-dev/catalogus/internal/models"
	"github.com/catalogus-dev/catalogus/internal/normalize"
	"github.com/catalogus-dev/catalogus/internal/stage"
)

// Sink receives the finalized tables at end of run. Satisfied by
// *database.DB; nil-able for dry runs.
type Sink interface {
	FlushSnapshot(ctx context.Context, snap aggregate.Snapshot) (database.FlushStats, error)
}

// Runner executes ingestion runs against one catalog API client.
type Runner struct {
	api      catalog.API
	tokens   catalog.TokenSource
	cfg      *config.IngestConfig
	pageSize int
	sink     Sink
	stageDir string // empty disables staging
}

// NewRunner wires a runner. sink may be nil (normalize and report only).
func NewRunner(api catalog.API, tokens catalog.TokenSource, cfg *config.IngestConfig, pageSize int, sink Sink) *Runner {
	return &Runner{
		api:      api,
		tokens:   tokens,
		cfg:      cfg,
		pageSize: pageSize,
		sink:     sink,
	}
}

// WithStaging enables raw-page staging under dir.
func (r *Runner) WithStaging(dir string) *Runner {
	r.stageDir = dir
	return r
}

// runState is the shared mutable state of one run. The aggregate store has
// its own lock; everything else here is guarded by mu.
type runState struct {
	store *aggregate.Store

	mu       sync.Mutex
	outcomes map[string]*models.ResourceOutcome
	skipped  []models.SkippedRecord
	staged   *stage.File
}

func (s *runState) addSkipped(recs []models.SkippedRecord) {
	if len(recs) == 0 {
		return
	}
	s.mu.Lock()
	s.skipped = append(s.skipped, recs...)
	s.mu.Unlock()
}

func (s *runState) stagePage(kind, resourceID string, payload any) {
	if s.staged == nil {
		return
	}
	rec, err := stage.NewRecord(kind, resourceID, payload)
	if err != nil {
		logging.Warn().Err(err).Str("resource_id", resourceID).Msg("Failed to stage page")
		return
	}
	s.mu.Lock()
	err = s.staged.WriteLine(rec)
	s.mu.Unlock()
	if err != nil {
		logging.Warn().Err(err).Str("resource_id", resourceID).Msg("Failed to stage page")
	}
}

// Run executes one ingestion run over artistIDs and returns its report.
// Aborted artists are reported, not raised. The returned error is non-nil
// only when the run infrastructure itself failed (context canceled, sink
// flush failed, staging file could not be created).
func (r *Runner) Run(ctx context.Context, artistIDs []string) (*models.RunReport, error) {
	runID := uuid.New()
	started := time.Now().UTC()

	logging.Info().
		Str("run_id", runID.String()).
		Int("artists", len(artistIDs)).
		Int("workers", r.workers()).
		Msg("Ingestion run started")

	state := &runState{
		store:    aggregate.NewStore(),
		outcomes: make(map[string]*models.ResourceOutcome, len(artistIDs)),
	}

	if r.stageDir != "" {
		f, err := stage.CreateFile(r.stageDir, runID.String())
		if err != nil {
			return nil, err
		}
		state.staged = f
		defer func() {
			if err := f.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close staging file")
			}
		}()
	}

	ids := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < r.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				r.processArtist(ctx, id, state)
			}
		}()
	}

feed:
	for _, id := range artistIDs {
		select {
		case ids <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(ids)
	wg.Wait()

	report := r.buildReport(runID, started, artistIDs, state)

	if r.sink != nil && ctx.Err() == nil {
		if _, err := r.sink.FlushSnapshot(ctx, state.store.Snapshot()); err != nil {
			return report, err
		}
	}

	metrics.RunDuration.Observe(report.Duration().Seconds())
	logging.Info().
		Str("run_id", runID.String()).
		Int("succeeded", len(report.Succeeded())).
		Int("aborted", len(report.Aborted())).
		Int("duplicates_dropped", report.DuplicatesDropped).
		Dur("duration", report.Duration()).
		Msg("Ingestion run finished")

	return report, ctx.Err()
}

func (r *Runner) workers() int {
	if r.cfg.Workers < 1 {
		return 1
	}
	return r.cfg.Workers
}

// processArtist walks one artist id end to end: artist object, album pages
// in order, and optionally each album's track pages. Failures terminal to
// this artist are recorded as an aborted outcome.
func (r *Runner) processArtist(ctx context.Context, artistID string, state *runState) {
	outcome := &models.ResourceOutcome{ResourceID: artistID, Status: models.ResourceSucceeded}
	defer func() {
		state.mu.Lock()
		state.outcomes[artistID] = outcome
		state.mu.Unlock()
		metrics.ResourceOutcomes.WithLabelValues(string(outcome.Status)).Inc()
	}()

	// Artist object: a single-page walk.
	artistCtl := NewController[*catalog.ArtistObject](artistID, r.tokens, r.cfg.RetryAttempts, r.cfg.RetryBaseDelay)
	pages, err := artistCtl.Walk(ctx, catalog.InitialCursor(r.pageSize),
		func(ctx context.Context, _ catalog.Cursor) (*catalog.ArtistObject, *catalog.Cursor, error) {
			obj, err := r.api.FetchArtist(ctx, artistID)
			return obj, nil, err
		},
		func(obj *catalog.ArtistObject) error {
			state.stagePage(stage.KindArtist, artistID, obj)
			rows := normalize.Artist(obj)
			state.addSkipped(rows.Skipped)
			if rows.Artist.ArtistID != "" {
				state.store.AddArtist(rows.Artist, rows.GenreNames)
			}
			metrics.PagesFetched.WithLabelValues("artist").Inc()
			return nil
		})
	outcome.Pages += pages
	if err != nil {
		outcome.Status = models.ResourceAborted
		outcome.Cause = err.Error()
		return
	}

	// Album pages, in order. Collect album ids for the track walk.
	var albumIDs []string
	albumCtl := NewController[*catalog.AlbumPage](artistID, r.tokens, r.cfg.RetryAttempts, r.cfg.RetryBaseDelay)
	pages, err = albumCtl.Walk(ctx, catalog.InitialCursor(r.pageSize),
		func(ctx context.Context, cur catalog.Cursor) (*catalog.AlbumPage, *catalog.Cursor, error) {
			page, err := r.api.FetchAlbumPage(ctx, artistID, cur)
			if err != nil {
				return nil, nil, err
			}
			return page, page.Next, nil
		},
		func(page *catalog.AlbumPage) error {
			state.stagePage(stage.KindAlbumPage, artistID, page)
			rows := normalize.AlbumPage(page)
			state.addSkipped(rows.Skipped)
			state.store.AddAlbums(rows.Albums, rows.Links)
			for _, a := range rows.Albums {
				albumIDs = append(albumIDs, a.AlbumID)
			}
			metrics.PagesFetched.WithLabelValues("albums").Inc()
			return nil
		})
	outcome.Pages += pages
	if err != nil {
		outcome.Status = models.ResourceAborted
		outcome.Cause = err.Error()
		return
	}

	if !r.cfg.FetchTracks {
		return
	}

	for _, albumID := range albumIDs {
		trackCtl := NewController[*catalog.TrackPage](albumID, r.tokens, r.cfg.RetryAttempts, r.cfg.RetryBaseDelay)
		pages, err = trackCtl.Walk(ctx, catalog.InitialCursor(r.pageSize),
			func(ctx context.Context, cur catalog.Cursor) (*catalog.TrackPage, *catalog.Cursor, error) {
				page, err := r.api.FetchTrackPage(ctx, albumID, cur)
				if err != nil {
					return nil, nil, err
				}
				return page, page.Next, nil
			},
			func(page *catalog.TrackPage) error {
				state.stagePage(stage.KindTrackPage, albumID, page)
				rows := normalize.TrackPage(page)
				state.addSkipped(rows.Skipped)
				state.store.AddTracks(rows.Tracks)
				metrics.PagesFetched.WithLabelValues("tracks").Inc()
				return nil
			})
		outcome.Pages += pages
		if err != nil {
			outcome.Status = models.ResourceAborted
			outcome.Cause = err.Error()
			return
		}
	}
}

// buildReport assembles the run report with outcomes in input order.
func (r *Runner) buildReport(runID uuid.UUID, started time.Time, artistIDs []string, state *runState) *models.RunReport {
	snap := state.store.Snapshot()

	state.mu.Lock()
	defer state.mu.Unlock()

	report := &models.RunReport{
		RunID:             runID,
		StartedAt:         started,
		FinishedAt:        time.Now().UTC(),
		Skipped:           state.skipped,
		Artists:           len(snap.Artists),
		Genres:            len(snap.Genres),
		Albums:            len(snap.Albums),
		Tracks:            len(snap.Tracks),
		ArtistAlbums:      len(snap.ArtistAlbums),
		ArtistGenres:      len(snap.ArtistGenres),
		DuplicatesDropped: snap.DuplicatesDropped,
	}
	for _, id := range artistIDs {
		if outcome, ok := state.outcomes[id]; ok {
			report.Resources = append(report.Resources, *outcome)
		} else {
			// Canceled before a worker picked this id up.
			report.Resources = append(report.Resources, models.ResourceOutcome{
				ResourceID: id,
				Status:     models.ResourceAborted,
				Cause:      "run canceled before processing",
			})
		}
	}
	return report
}
