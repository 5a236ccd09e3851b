// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

// Package models defines the relational entities produced by the ingestion
// pipeline and the report types returned by a run.
//
// Entities mirror the sink schema one-to-one. The normalizer emits candidate
// rows of these types; the aggregator deduplicates them; the database layer
// flushes them with insert-or-ignore semantics.
package models

// Artist is a catalog artist, keyed by its external catalog ID.
// Immutable once loaded; created on the first page containing it.
type Artist struct {
	ArtistID  string `json:"artist_id"`
	Name      string `json:"name"`
	Followers int    `json:"followers"`
}

// Genre is a genre name with a locally assigned ID.
// IDs are assigned in first-seen order across the entire run, never per page.
type Genre struct {
	GenreID int    `json:"genre_id"`
	Name    string `json:"name"`
}

// ArtistGenre links an artist to a genre. Composite key (ArtistID, GenreID).
type ArtistGenre struct {
	ArtistID string `json:"artist_id"`
	GenreID  int    `json:"genre_id"`
}

// Album is one release by one or more artists.
//
// ReleaseDate is always a full date: bare-year source values are promoted to
// January 1st during normalization ("1999" becomes "01/01/1999").
type Album struct {
	AlbumID     string `json:"album_id"`
	Name        string `json:"name"`
	AlbumType   string `json:"album_type"`
	ReleaseDate string `json:"release_date"`
	TotalTracks int    `json:"total_tracks"`
}

// ArtistAlbum links an artist to an album. Composite key (ArtistID, AlbumID).
// Derived from the same source record as Album via a secondary projection.
type ArtistAlbum struct {
	ArtistID string `json:"artist_id"`
	AlbumID  string `json:"album_id"`
}

// Track is one song on an album.
// DurationInSeconds is round(duration_ms / 1000).
type Track struct {
	SongID            string `json:"song_id"`
	TrackNumber       int    `json:"track_number"`
	Title             string `json:"title"`
	DurationInSeconds int    `json:"duration_in_seconds"`
	AlbumID           string `json:"album_id"`
}
