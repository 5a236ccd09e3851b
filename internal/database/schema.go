// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package database

import (
	"context"
	"fmt"
)

// schemaDDL mirrors the aggregator's uniqueness keys: the primary keys here
// are exactly the keys the dedup tables group on, so ON CONFLICT DO NOTHING
// at flush time enforces the same policy the aggregator already applied.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS artists (
		artist_id VARCHAR PRIMARY KEY,
		name      VARCHAR NOT NULL,
		followers BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		genre_id INTEGER PRIMARY KEY,
		name     VARCHAR NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS artist_genres (
		artist_id VARCHAR NOT NULL,
		genre_id  INTEGER NOT NULL,
		PRIMARY KEY (artist_id, genre_id)
	)`,
	`CREATE TABLE IF NOT EXISTS albums (
		album_id     VARCHAR PRIMARY KEY,
		name         VARCHAR NOT NULL,
		album_type   VARCHAR,
		release_date VARCHAR,
		total_tracks INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS artist_albums (
		artist_id VARCHAR NOT NULL,
		album_id  VARCHAR NOT NULL,
		PRIMARY KEY (artist_id, album_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tracks (
		song_id             VARCHAR PRIMARY KEY,
		track_number        INTEGER,
		title               VARCHAR,
		duration_in_seconds INTEGER,
		album_id            VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS weekly_streams (
		week_id         INTEGER NOT NULL,
		song_id         VARCHAR NOT NULL,
		week_start_date VARCHAR NOT NULL,
		week_end_date   VARCHAR NOT NULL,
		streams         BIGINT NOT NULL,
		PRIMARY KEY (week_id, song_id)
	)`,
	`CREATE TABLE IF NOT EXISTS weekly_downloads (
		week_id         INTEGER NOT NULL,
		song_id         VARCHAR NOT NULL,
		week_start_date VARCHAR NOT NULL,
		week_end_date   VARCHAR NOT NULL,
		downloads       BIGINT NOT NULL,
		PRIMARY KEY (week_id, song_id)
	)`,
}

func (db *DB) initSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("schema ddl failed: %w", err)
		}
	}
	return nil
}
