// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package ingest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/catalogus-dev/catalogus/internal/catalog"
	"github.com/catalogus-dev/catalogus/internal/config"
	"github.com/catalogus-dev/catalogus/internal/models"
	"github.com/catalogus-dev/catalogus/internal/stage"
)

// fakeAPI serves two-page album listings per artist from in-memory data and
// can inject persistent failures per artist id.
type fakeAPI struct {
	mu       sync.Mutex
	failures map[string]error // artist id -> error returned on every album fetch
	albums   map[string][]catalog.AlbumItem
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		failures: make(map[string]error),
		albums:   make(map[string][]catalog.AlbumItem),
	}
}

func (f *fakeAPI) addArtistAlbums(artistID string, n int) {
	for i := 0; i < n; i++ {
		f.albums[artistID] = append(f.albums[artistID], catalog.AlbumItem{
			Href:        fmt.Sprintf("https://api.example.com/v1/albums/%s-al%d", artistID, i),
			Name:        fmt.Sprintf("Album %d", i),
			AlbumType:   "album",
			ReleaseDate: "1999",
			TotalTracks: 10,
		})
	}
}

func (f *fakeAPI) FetchArtist(_ context.Context, artistID string) (*catalog.ArtistObject, error) {
	obj := &catalog.ArtistObject{ID: artistID, Name: "Artist " + artistID, Genres: []string{"indie rock"}}
	obj.Followers.Total = 1000
	return obj, nil
}

func (f *fakeAPI) FetchAlbumPage(_ context.Context, artistID string, cur catalog.Cursor) (*catalog.AlbumPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failures[artistID]; err != nil {
		return nil, err
	}

	items := f.albums[artistID]
	end := cur.Offset + cur.Limit
	if end > len(items) {
		end = len(items)
	}
	page := &catalog.AlbumPage{
		ArtistID: artistID,
		Items:    items[cur.Offset:end],
		Total:    len(items),
	}
	if end < len(items) {
		page.Next = &catalog.Cursor{Offset: end, Limit: cur.Limit}
	}
	return page, nil
}

func (f *fakeAPI) FetchTrackPage(_ context.Context, albumID string, cur catalog.Cursor) (*catalog.TrackPage, error) {
	page := &catalog.TrackPage{
		AlbumID: albumID,
		Items: []catalog.TrackItem{
			{ID: albumID + "-t1", Name: "Track 1", TrackNumber: 1, DurationMs: 222000},
		},
		Total: 1,
	}
	return page, nil
}

func testIngestConfig() *config.IngestConfig {
	return &config.IngestConfig{
		Workers:        2,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
		FetchTracks:    false,
	}
}

func TestRunHappyPath(t *testing.T) {
	api := newFakeAPI()
	api.addArtistAlbums("ar1", 5) // 3 pages at limit 2
	api.addArtistAlbums("ar2", 2) // 1 page

	r := NewRunner(api, &fakeTokens{}, testIngestConfig(), 2, nil)
	report, err := r.Run(context.Background(), []string{"ar1", "ar2"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Succeeded()) != 2 || len(report.Aborted()) != 0 {
		t.Fatalf("report = %+v", report.Resources)
	}
	if report.Artists != 2 {
		t.Errorf("artists = %d, want 2", report.Artists)
	}
	if report.Albums != 7 {
		t.Errorf("albums = %d, want 7", report.Albums)
	}
	if report.ArtistAlbums != 7 {
		t.Errorf("artist_albums = %d, want 7", report.ArtistAlbums)
	}
	// Both artists share one genre, assigned exactly once.
	if report.Genres != 1 {
		t.Errorf("genres = %d, want 1", report.Genres)
	}
	if report.Duration() < 0 {
		t.Error("negative duration")
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	api := newFakeAPI()
	api.addArtistAlbums("ar1", 2)
	api.addArtistAlbums("ar3", 2)
	api.failures["ar2"] = &catalog.TransientError{Err: fmt.Errorf("connection refused")}

	cfg := testIngestConfig()
	cfg.Workers = 1 // deterministic ordering
	r := NewRunner(api, &fakeTokens{}, cfg, 2, nil)

	report, err := r.Run(context.Background(), []string{"ar1", "ar2", "ar3"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Resources) != 3 {
		t.Fatalf("resources = %d, want 3", len(report.Resources))
	}
	byID := map[string]models.ResourceOutcome{}
	for _, res := range report.Resources {
		byID[res.ResourceID] = res
	}
	if byID["ar1"].Status != models.ResourceSucceeded {
		t.Errorf("ar1 = %+v, want succeeded", byID["ar1"])
	}
	if byID["ar3"].Status != models.ResourceSucceeded {
		t.Errorf("ar3 = %+v, want succeeded despite ar2 aborting", byID["ar3"])
	}
	if byID["ar2"].Status != models.ResourceAborted || byID["ar2"].Cause == "" {
		t.Errorf("ar2 = %+v, want aborted with cause", byID["ar2"])
	}

	// ar1 and ar3 rows all present despite the abort in between.
	if report.Albums != 4 {
		t.Errorf("albums = %d, want 4", report.Albums)
	}
}

func TestRunFetchTracksWalksAlbums(t *testing.T) {
	api := newFakeAPI()
	api.addArtistAlbums("ar1", 2)

	cfg := testIngestConfig()
	cfg.FetchTracks = true
	r := NewRunner(api, &fakeTokens{}, cfg, 50, nil)

	report, err := r.Run(context.Background(), []string{"ar1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Tracks != 2 {
		t.Errorf("tracks = %d, want one per album", report.Tracks)
	}
}

func TestRunDeduplicatesAcrossArtists(t *testing.T) {
	api := newFakeAPI()
	// Both artists list the same album href (a collaboration).
	shared := catalog.AlbumItem{
		Href: "https://api.example.com/v1/albums/shared1",
		Name: "Split EP",
	}
	api.albums["ar1"] = []catalog.AlbumItem{shared}
	api.albums["ar2"] = []catalog.AlbumItem{shared}

	cfg := testIngestConfig()
	cfg.Workers = 1
	r := NewRunner(api, &fakeTokens{}, cfg, 50, nil)

	report, err := r.Run(context.Background(), []string{"ar1", "ar2"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Albums != 1 {
		t.Errorf("albums = %d, want 1 after dedup", report.Albums)
	}
	if report.ArtistAlbums != 2 {
		t.Errorf("artist_albums = %d, want one link per artist", report.ArtistAlbums)
	}
	if report.DuplicatesDropped == 0 {
		t.Error("duplicates_dropped = 0, want the shared album counted")
	}
}

func TestRunStagesRawPages(t *testing.T) {
	api := newFakeAPI()
	api.addArtistAlbums("ar1", 3)

	dir := t.TempDir()
	r := NewRunner(api, &fakeTokens{}, testIngestConfig(), 2, nil).WithStaging(dir)

	report, err := r.Run(context.Background(), []string{"ar1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	path := dir + "/" + report.RunID.String() + ".ndjson"
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("staging file: %v", err)
	}
	defer f.Close()

	kinds := map[string]int{}
	if err := stage.Replay(f, func(rec stage.Record) error {
		kinds[rec.Kind]++
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if kinds[stage.KindArtist] != 1 {
		t.Errorf("staged artist pages = %d, want 1", kinds[stage.KindArtist])
	}
	if kinds[stage.KindAlbumPage] != 2 {
		t.Errorf("staged album pages = %d, want 2", kinds[stage.KindAlbumPage])
	}
}

func TestRunCanceledContextStillReports(t *testing.T) {
	api := newFakeAPI()
	api.addArtistAlbums("ar1", 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(api, &fakeTokens{}, testIngestConfig(), 2, nil)
	report, err := r.Run(ctx, []string{"ar1", "ar2"})
	if err == nil {
		t.Fatal("want context error")
	}
	if report == nil {
		t.Fatal("report must be returned even on cancellation")
	}
	if len(report.Resources) != 2 {
		t.Errorf("resources = %d, want every input id accounted for", len(report.Resources))
	}
}
