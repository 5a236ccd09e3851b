// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/catalogus-dev/catalogus/internal/aggregate"
	"github.com/catalogus-dev/catalogus/internal/logging"
	"github.com/catalogus-dev/catalogus/internal/metrics"
	"github.com/catalogus-dev/catalogus/internal/models"
)

// FlushStats reports rows actually inserted per table during a flush.
// Rows already present (conflicting keys) are not counted.
type FlushStats struct {
	Artists      int64
	Genres       int64
	ArtistGenres int64
	Albums       int64
	ArtistAlbums int64
	Tracks       int64
}

// Total is the sum of inserted rows across all entity tables.
func (s FlushStats) Total() int64 {
	return s.Artists + s.Genres + s.ArtistGenres + s.Albums + s.ArtistAlbums + s.Tracks
}

// FlushSnapshot loads a finalized aggregator snapshot into the sink. Each
// entity table is loaded in its own transaction; a failure rolls back that
// entity only, leaving earlier entities committed. Conflicting keys are
// ignored, so replaying the same snapshot is a no-op.
func (db *DB) FlushSnapshot(ctx context.Context, snap aggregate.Snapshot) (FlushStats, error) {
	var stats FlushStats

	if err := flushBatch(ctx, db, "artists",
		`INSERT INTO artists (artist_id, name, followers) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		snap.Artists, &stats.Artists,
		func(a models.Artist) []any { return []any{a.ArtistID, a.Name, a.Followers} },
	); err != nil {
		return stats, err
	}

	if err := flushBatch(ctx, db, "genres",
		`INSERT INTO genres (genre_id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		snap.Genres, &stats.Genres,
		func(g models.Genre) []any { return []any{g.GenreID, g.Name} },
	); err != nil {
		return stats, err
	}

	if err := flushBatch(ctx, db, "artist_genres",
		`INSERT INTO artist_genres (artist_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		snap.ArtistGenres, &stats.ArtistGenres,
		func(ag models.ArtistGenre) []any { return []any{ag.ArtistID, ag.GenreID} },
	); err != nil {
		return stats, err
	}

	if err := flushBatch(ctx, db, "albums",
		`INSERT INTO albums (album_id, name, album_type, release_date, total_tracks)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		snap.Albums, &stats.Albums,
		func(a models.Album) []any {
			return []any{a.AlbumID, a.Name, a.AlbumType, a.ReleaseDate, a.TotalTracks}
		},
	); err != nil {
		return stats, err
	}

	if err := flushBatch(ctx, db, "artist_albums",
		`INSERT INTO artist_albums (artist_id, album_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		snap.ArtistAlbums, &stats.ArtistAlbums,
		func(aa models.ArtistAlbum) []any { return []any{aa.ArtistID, aa.AlbumID} },
	); err != nil {
		return stats, err
	}

	if err := flushBatch(ctx, db, "tracks",
		`INSERT INTO tracks (song_id, track_number, title, duration_in_seconds, album_id)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		snap.Tracks, &stats.Tracks,
		func(t models.Track) []any {
			return []any{t.SongID, t.TrackNumber, t.Title, t.DurationInSeconds, t.AlbumID}
		},
	); err != nil {
		return stats, err
	}

	logging.Info().
		Int64("rows_inserted", stats.Total()).
		Int("duplicates_dropped", snap.DuplicatesDropped).
		Msg("Snapshot flushed")
	return stats, nil
}

// FlushWeekly loads generated weekly metric rows. Same idempotence contract
// as FlushSnapshot.
func (db *DB) FlushWeekly(ctx context.Context, streams []models.WeeklyStream, downloads []models.WeeklyDownload) (int64, error) {
	var inserted int64

	if err := flushBatch(ctx, db, "weekly_streams",
		`INSERT INTO weekly_streams (week_id, song_id, week_start_date, week_end_date, streams)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		streams, &inserted,
		func(s models.WeeklyStream) []any {
			return []any{s.WeekID, s.SongID, s.WeekStartDate, s.WeekEndDate, s.Streams}
		},
	); err != nil {
		return inserted, err
	}

	if err := flushBatch(ctx, db, "weekly_downloads",
		`INSERT INTO weekly_downloads (week_id, song_id, week_start_date, week_end_date, downloads)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		downloads, &inserted,
		func(d models.WeeklyDownload) []any {
			return []any{d.WeekID, d.SongID, d.WeekStartDate, d.WeekEndDate, d.Downloads}
		},
	); err != nil {
		return inserted, err
	}

	return inserted, nil
}

// flushBatch inserts one entity's rows inside a single transaction with a
// prepared statement. inserted accumulates rows actually written.
func flushBatchTx[T any](ctx context.Context, tx *sql.Tx, query string, rows []T, fields func(T) []any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	var count int64
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, fields(row)...)
		if err != nil {
			return count, fmt.Errorf("exec: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			count += n
		}
	}
	return count, nil
}

func flushBatch[T any](ctx context.Context, db *DB, table, query string, rows []T, inserted *int64, fields func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flush %s: begin: %w", table, err)
	}

	count, err := flushBatchTx(ctx, tx, query, rows, fields)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn().Err(rbErr).Str("table", table).Msg("Rollback failed")
		}
		return fmt.Errorf("flush %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flush %s: commit: %w", table, err)
	}

	*inserted += count
	metrics.RowsFlushed.WithLabelValues(table).Add(float64(count))
	return nil
}
