// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package database

import (
	"context"
	"testing"

	"github.com/catalogus-dev/catalogus/internal/aggregate"
	"github.com/catalogus-dev/catalogus/internal/config"
	"github.com/catalogus-dev/catalogus/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{}) // in-memory
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func testSnapshot() aggregate.Snapshot {
	return aggregate.Snapshot{
		Artists: []models.Artist{{ArtistID: "ar1", Name: "One", Followers: 100}},
		Genres:  []models.Genre{{GenreID: 1, Name: "indie rock"}},
		ArtistGenres: []models.ArtistGenre{
			{ArtistID: "ar1", GenreID: 1},
		},
		Albums: []models.Album{
			{AlbumID: "al1", Name: "First", AlbumType: "album", ReleaseDate: "01/01/1999", TotalTracks: 10},
			{AlbumID: "al2", Name: "Second", AlbumType: "single", ReleaseDate: "2001-05-20", TotalTracks: 1},
		},
		ArtistAlbums: []models.ArtistAlbum{
			{ArtistID: "ar1", AlbumID: "al1"},
			{ArtistID: "ar1", AlbumID: "al2"},
		},
		Tracks: []models.Track{
			{SongID: "t1", TrackNumber: 1, Title: "Opener", DurationInSeconds: 222, AlbumID: "al1"},
		},
	}
}

func TestFlushSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stats, err := db.FlushSnapshot(ctx, testSnapshot())
	if err != nil {
		t.Fatalf("FlushSnapshot: %v", err)
	}
	if stats.Artists != 1 || stats.Albums != 2 || stats.ArtistAlbums != 2 || stats.Tracks != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := countRows(t, db, "albums"); got != 2 {
		t.Errorf("albums = %d, want 2", got)
	}

	var release string
	if err := db.conn.QueryRow(`SELECT release_date FROM albums WHERE album_id = 'al1'`).Scan(&release); err != nil {
		t.Fatal(err)
	}
	if release != "01/01/1999" {
		t.Errorf("release_date = %q", release)
	}
}

func TestFlushSnapshotIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	snap := testSnapshot()

	if _, err := db.FlushSnapshot(ctx, snap); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	stats, err := db.FlushSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if stats.Total() != 0 {
		t.Errorf("second flush inserted %d rows, want 0", stats.Total())
	}
	if got := countRows(t, db, "tracks"); got != 1 {
		t.Errorf("tracks = %d after replay, want 1", got)
	}
}

func TestFlushSnapshotKeepsFirstRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := aggregate.Snapshot{
		Albums: []models.Album{{AlbumID: "al1", Name: "Original"}},
	}
	second := aggregate.Snapshot{
		Albums: []models.Album{{AlbumID: "al1", Name: "Late Duplicate"}},
	}
	if _, err := db.FlushSnapshot(ctx, first); err != nil {
		t.Fatal(err)
	}
	if _, err := db.FlushSnapshot(ctx, second); err != nil {
		t.Fatal(err)
	}

	var name string
	if err := db.conn.QueryRow(`SELECT name FROM albums WHERE album_id = 'al1'`).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "Original" {
		t.Errorf("name = %q, want first-arrived row retained", name)
	}
}

func TestFlushWeekly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	streams := []models.WeeklyStream{
		{WeekID: 1, SongID: "t1", WeekStartDate: "2024-01-01", WeekEndDate: "2024-01-07", Streams: 500000},
	}
	downloads := []models.WeeklyDownload{
		{WeekID: 1, SongID: "t1", WeekStartDate: "2024-01-01", WeekEndDate: "2024-01-07", Downloads: 40000},
	}

	n, err := db.FlushWeekly(ctx, streams, downloads)
	if err != nil {
		t.Fatalf("FlushWeekly: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted %d rows, want 2", n)
	}

	// Replay is a no-op.
	n, err = db.FlushWeekly(ctx, streams, downloads)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 0 {
		t.Errorf("replay inserted %d rows, want 0", n)
	}
}

func TestSongIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snap := aggregate.Snapshot{
		Tracks: []models.Track{
			{SongID: "t2", Title: "B"},
			{SongID: "t1", Title: "A"},
		},
	}
	if _, err := db.FlushSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	ids, err := db.SongIDs(ctx)
	if err != nil {
		t.Fatalf("SongIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("ids = %v, want sorted [t1 t2]", ids)
	}
}

func TestEmptySnapshotFlush(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.FlushSnapshot(context.Background(), aggregate.Snapshot{})
	if err != nil {
		t.Fatalf("FlushSnapshot: %v", err)
	}
	if stats.Total() != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}
