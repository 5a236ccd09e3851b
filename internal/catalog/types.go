// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package catalog

// Cursor is the pagination position on a catalog listing endpoint.
//
// A cursor passed to a fetch method must be either InitialCursor or a value
// previously returned by that same method. The ingest controller owns the
// cursor for the duration of a run and only advances it on successful fetches.
type Cursor struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// InitialCursor returns the starting cursor for a listing with the given
// page size.
func InitialCursor(limit int) Cursor {
	return Cursor{Offset: 0, Limit: limit}
}

// ArtistRef is the minimal artist reference embedded in album items.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumItem is one raw album record from a paginated album listing.
// Unknown extra fields in the source are ignored by decoding.
type AlbumItem struct {
	Href        string      `json:"href"`
	Name        string      `json:"name"`
	AlbumType   string      `json:"album_type"`
	ReleaseDate string      `json:"release_date"`
	TotalTracks int         `json:"total_tracks"`
	Artists     []ArtistRef `json:"artists"`
}

// AlbumPage is one bounded response unit from the album listing endpoint.
// Next is nil when no more pages remain.
type AlbumPage struct {
	ArtistID string      `json:"artist_id"`
	Items    []AlbumItem `json:"items"`
	Total    int         `json:"total"`
	Next     *Cursor     `json:"next,omitempty"`
}

// TrackItem is one raw track record from an album's track listing.
type TrackItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TrackNumber int    `json:"track_number"`
	DurationMs  int64  `json:"duration_ms"`
}

// TrackPage is one bounded response unit from the track listing endpoint.
type TrackPage struct {
	AlbumID string      `json:"album_id"`
	Items   []TrackItem `json:"items"`
	Total   int         `json:"total"`
	Next    *Cursor     `json:"next,omitempty"`
}

// ArtistObject is the full artist record from the artist endpoint.
type ArtistObject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Followers struct {
		Total int `json:"total"`
	} `json:"followers"`
	Genres []string `json:"genres"`
}

// listingResponse is the raw wire shape shared by paginated listing endpoints.
type listingResponse[T any] struct {
	Items []T    `json:"items"`
	Total int    `json:"total"`
	Next  string `json:"next"`
}
