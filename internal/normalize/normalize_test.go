// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package normalize

import (
	"testing"

	"github.com/catalogus-dev/catalogus/internal/catalog"
)

func TestReleaseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1999", "01/01/1999"},
		{"1999-05-20", "1999-05-20"},
		{"2001-05", "2001-05"}, // partial dates pass through
		{"", ""},
		{"0000", "01/01/0000"},
		{"20/05/1999", "20/05/1999"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ReleaseDate(tt.input); got != tt.want {
				t.Errorf("ReleaseDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		ms   int64
		want int
	}{
		{222000, 222},
		{221499, 221}, // rounds down below .5
		{221500, 222}, // rounds half up
		{0, 0},
		{999, 1},
		{499, 0},
	}

	for _, tt := range tests {
		if got := DurationSeconds(tt.ms); got != tt.want {
			t.Errorf("DurationSeconds(%d) = %d, want %d", tt.ms, got, tt.want)
		}
	}
}

func TestAlbumIDFromHref(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"https://api.example.com/v1/albums/6akEvsycLGftJxYudPjmqK", "6akEvsycLGftJxYudPjmqK"},
		{"https://api.example.com/v1/albums/abc123/", "abc123"},
		{"https://api.example.com/v1/albums/abc123?market=US", "abc123"},
		{"no-slashes-here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := AlbumIDFromHref(tt.href); got != tt.want {
				t.Errorf("AlbumIDFromHref(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestAlbumPageProjections(t *testing.T) {
	page := &catalog.AlbumPage{
		ArtistID: "ar1",
		Items: []catalog.AlbumItem{
			{
				Href:        "https://api.example.com/v1/albums/al1",
				Name:        "Debut",
				AlbumType:   "album",
				ReleaseDate: "1999",
				TotalTracks: 10,
				Artists:     []catalog.ArtistRef{{ID: "ar1", Name: "One"}, {ID: "ar2", Name: "Two"}},
			},
			{
				// No artist refs: falls back to the page's artist.
				Href:        "https://api.example.com/v1/albums/al2",
				Name:        "Follow-Up",
				AlbumType:   "single",
				ReleaseDate: "2004-07-01",
				TotalTracks: 2,
			},
			{
				// Malformed: href yields no id. Skipped alone.
				Href: "",
				Name: "Ghost Release",
			},
		},
	}

	rows := AlbumPage(page)

	if len(rows.Albums) != 2 {
		t.Fatalf("albums = %d, want 2", len(rows.Albums))
	}
	if rows.Albums[0].AlbumID != "al1" || rows.Albums[0].ReleaseDate != "01/01/1999" {
		t.Errorf("album[0] = %+v", rows.Albums[0])
	}
	if rows.Albums[1].ReleaseDate != "2004-07-01" {
		t.Errorf("album[1].ReleaseDate = %q", rows.Albums[1].ReleaseDate)
	}

	// al1 links to both featured artists, al2 falls back to page artist.
	if len(rows.Links) != 3 {
		t.Fatalf("links = %+v, want 3 rows", rows.Links)
	}
	wantLinks := map[string]string{"ar1al1": "", "ar2al1": "", "ar1al2": ""}
	for _, l := range rows.Links {
		delete(wantLinks, l.ArtistID+l.AlbumID)
	}
	if len(wantLinks) != 0 {
		t.Errorf("missing link rows: %v", wantLinks)
	}

	if len(rows.Skipped) != 1 {
		t.Fatalf("skipped = %+v, want 1", rows.Skipped)
	}
	if rows.Skipped[0].Entity != "album" {
		t.Errorf("skipped entity = %q", rows.Skipped[0].Entity)
	}
}

func TestArtistProjection(t *testing.T) {
	obj := &catalog.ArtistObject{ID: "ar1", Name: "One", Genres: []string{"indie rock", "", "dream pop"}}
	obj.Followers.Total = 42

	rows := Artist(obj)
	if rows.Artist.ArtistID != "ar1" || rows.Artist.Followers != 42 {
		t.Errorf("artist = %+v", rows.Artist)
	}
	if len(rows.GenreNames) != 2 {
		t.Errorf("genres = %v, want empty names dropped", rows.GenreNames)
	}
	if len(rows.Skipped) != 0 {
		t.Errorf("unexpected skips: %+v", rows.Skipped)
	}
}

func TestArtistProjectionMissingRequired(t *testing.T) {
	rows := Artist(&catalog.ArtistObject{ID: "ar1"})
	if len(rows.Skipped) != 1 {
		t.Fatalf("expected a skip for missing name, got %+v", rows)
	}
	if rows.Artist.ArtistID != "" {
		t.Errorf("rejected record should not produce a row: %+v", rows.Artist)
	}
}

func TestArtistNegativeFollowersClamped(t *testing.T) {
	obj := &catalog.ArtistObject{ID: "ar1", Name: "One"}
	obj.Followers.Total = -5

	if got := Artist(obj).Artist.Followers; got != 0 {
		t.Errorf("followers = %d, want clamped 0", got)
	}
}

func TestTrackPageProjection(t *testing.T) {
	page := &catalog.TrackPage{
		AlbumID: "al1",
		Items: []catalog.TrackItem{
			{ID: "t1", Name: "Opener", TrackNumber: 1, DurationMs: 222000},
			{ID: "", Name: "No ID", TrackNumber: 2, DurationMs: 180000},
			{ID: "t3", Name: "Closer", TrackNumber: 3, DurationMs: 200499},
		},
	}

	rows := TrackPage(page)

	if len(rows.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(rows.Tracks))
	}
	if rows.Tracks[0].DurationInSeconds != 222 {
		t.Errorf("duration = %d, want 222", rows.Tracks[0].DurationInSeconds)
	}
	if rows.Tracks[1].DurationInSeconds != 200 {
		t.Errorf("duration = %d, want 200", rows.Tracks[1].DurationInSeconds)
	}
	if rows.Tracks[0].AlbumID != "al1" {
		t.Errorf("album id = %q", rows.Tracks[0].AlbumID)
	}
	if len(rows.Skipped) != 1 {
		t.Errorf("skipped = %+v, want exactly the id-less record", rows.Skipped)
	}
}
