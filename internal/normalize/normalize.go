// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

/*
normalize.go - Record Normalization

Pure functions converting one raw catalog page into flat candidate rows for
the aggregator. One album page yields both Album rows and ArtistAlbum rows;
one artist object yields an Artist row plus its genre names (genre IDs are
assigned later by the run-scoped registry, not here).

Field derivation rules:
  - AlbumID: trailing path segment of the album href, extracted by regexp
  - Release date: exactly-4-character values are bare years and become
    01/01/<year>; every other length passes through unchanged, including
    partial dates like "2001-05" (pass-through is the documented decision)
  - Duration: round(duration_ms / 1000), rounding half up (documented
    decision: round, not floor, for minimal bias)

Schema drift tolerance: unknown extra fields in raw pages are ignored by
JSON decoding upstream. A record missing required fields is rejected alone
as a per-record skip; the rest of the page is unaffected.
*/

//nolint:staticcheck // File documentation, not package doc
package normalize

import (
	"fmt"
	"math"
	"regexp"

	"github.com/catalogus-dev/catalogus/internal/catalog"
	"github.com/catalogus-dev/catalogus/internal/metrics"
	"github.com/catalogus-dev/catalogus/internal/models"
)

// trailingSegmentRe captures the last path segment of a URL-shaped field,
// tolerating a trailing slash.
var trailingSegmentRe = regexp.MustCompile(`/([^/?#]+)/?(?:[?#].*)?$`)

// AlbumIDFromHref derives an album's foreign key from its href by
// pattern-matching the trailing path segment.
// Returns empty string when the href has no usable segment.
func AlbumIDFromHref(href string) string {
	m := trailingSegmentRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}

// ReleaseDate normalizes a source release date.
// A value of exactly 4 characters is a bare year and is promoted to a full
// date: "1999" -> "01/01/1999". Everything else passes through unchanged.
func ReleaseDate(raw string) string {
	if len(raw) == 4 {
		return "01/01/" + raw
	}
	return raw
}

// DurationSeconds converts integer milliseconds to integer seconds,
// rounding half up: 222000 -> 222, 221500 -> 222.
func DurationSeconds(ms int64) int {
	return int(math.Round(float64(ms) / 1000.0))
}

// AlbumRows is the projection of one album page into candidate rows.
type AlbumRows struct {
	Albums  []models.Album
	Links   []models.ArtistAlbum
	Skipped []models.SkippedRecord
}

// AlbumPage converts one raw album page into Album and ArtistAlbum candidate
// rows. Records missing an href-derivable id or a name are skipped
// individually; the page itself never fails.
func AlbumPage(page *catalog.AlbumPage) AlbumRows {
	var out AlbumRows

	for i := range page.Items {
		item := &page.Items[i]

		albumID := AlbumIDFromHref(item.Href)
		if albumID == "" {
			out.Skipped = append(out.Skipped, models.SkippedRecord{
				ResourceID: page.ArtistID,
				Entity:     "album",
				Cause:      fmt.Sprintf("no album id derivable from href %q", item.Href),
			})
			metrics.RecordsSkipped.WithLabelValues("album").Inc()
			continue
		}
		if item.Name == "" {
			out.Skipped = append(out.Skipped, models.SkippedRecord{
				ResourceID: page.ArtistID,
				Entity:     "album",
				Cause:      fmt.Sprintf("album %s has no name", albumID),
			})
			metrics.RecordsSkipped.WithLabelValues("album").Inc()
			continue
		}

		out.Albums = append(out.Albums, models.Album{
			AlbumID:     albumID,
			Name:        item.Name,
			AlbumType:   item.AlbumType,
			ReleaseDate: ReleaseDate(item.ReleaseDate),
			TotalTracks: item.TotalTracks,
		})
		metrics.RowsNormalized.WithLabelValues("album").Inc()

		// Secondary projection of the same source record.
		linked := false
		for _, ref := range item.Artists {
			if ref.ID == "" {
				continue
			}
			out.Links = append(out.Links, models.ArtistAlbum{ArtistID: ref.ID, AlbumID: albumID})
			metrics.RowsNormalized.WithLabelValues("artist_album").Inc()
			linked = true
		}
		// An item with no artist refs still belongs to the artist whose
		// listing produced the page.
		if !linked && page.ArtistID != "" {
			out.Links = append(out.Links, models.ArtistAlbum{ArtistID: page.ArtistID, AlbumID: albumID})
			metrics.RowsNormalized.WithLabelValues("artist_album").Inc()
		}
	}

	return out
}

// ArtistRows is the projection of one artist object into candidate rows.
// GenreNames carry no IDs yet; the aggregator's registry assigns them in
// first-seen order across the whole run.
type ArtistRows struct {
	Artist     models.Artist
	GenreNames []string
	Skipped    []models.SkippedRecord
}

// Artist converts a raw artist object into an Artist candidate row plus its
// genre names. A missing id or name rejects the record.
func Artist(obj *catalog.ArtistObject) ArtistRows {
	var out ArtistRows

	if obj.ID == "" || obj.Name == "" {
		out.Skipped = append(out.Skipped, models.SkippedRecord{
			ResourceID: obj.ID,
			Entity:     "artist",
			Cause:      "artist record missing id or name",
		})
		metrics.RecordsSkipped.WithLabelValues("artist").Inc()
		return out
	}

	followers := obj.Followers.Total
	if followers < 0 {
		followers = 0
	}

	out.Artist = models.Artist{
		ArtistID:  obj.ID,
		Name:      obj.Name,
		Followers: followers,
	}
	metrics.RowsNormalized.WithLabelValues("artist").Inc()

	for _, g := range obj.Genres {
		if g != "" {
			out.GenreNames = append(out.GenreNames, g)
		}
	}

	return out
}

// TrackRows is the projection of one track page into candidate rows.
type TrackRows struct {
	Tracks  []models.Track
	Skipped []models.SkippedRecord
}

// TrackPage converts one raw track page into Track candidate rows.
// A record missing its id or title is skipped individually.
func TrackPage(page *catalog.TrackPage) TrackRows {
	var out TrackRows

	for i := range page.Items {
		item := &page.Items[i]

		if item.ID == "" || item.Name == "" {
			out.Skipped = append(out.Skipped, models.SkippedRecord{
				ResourceID: page.AlbumID,
				Entity:     "track",
				Cause:      "track record missing id or title",
			})
			metrics.RecordsSkipped.WithLabelValues("track").Inc()
			continue
		}

		out.Tracks = append(out.Tracks, models.Track{
			SongID:            item.ID,
			TrackNumber:       item.TrackNumber,
			Title:             item.Name,
			DurationInSeconds: DurationSeconds(item.DurationMs),
			AlbumID:           page.AlbumID,
		})
		metrics.RowsNormalized.WithLabelValues("track").Inc()
	}

	return out
}
