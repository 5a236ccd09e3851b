// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package aggregate

import (
	"fmt"
	"sync"

	"github.com/catalogus-dev/catalogus/internal/models"
)

// GenreRegistry assigns genre IDs in first-seen order across an entire run.
//
// IDs are deterministic for a given arrival order, which keeps test
// expectations and reruns stable. The registry is run-scoped shared state;
// Store serializes access to it.
type GenreRegistry struct {
	ids  map[string]int
	next int
}

// NewGenreRegistry creates an empty registry. IDs start at 1.
func NewGenreRegistry() *GenreRegistry {
	return &GenreRegistry{ids: make(map[string]int), next: 1}
}

// Assign returns the genre's ID, allocating the next ID on first sight.
// The second return reports whether the genre was newly registered.
func (g *GenreRegistry) Assign(name string) (int, bool) {
	if id, ok := g.ids[name]; ok {
		return id, false
	}
	id := g.next
	g.next++
	g.ids[name] = id
	return id, true
}

// Store owns the final table state for one ingestion run.
//
// All mutation goes through one mutex: fetching may be parallelized across
// artists, but the genre counter and the per-entity dedup tables are
// single-writer, per the run's shared-resource discipline. The store is
// always in a consistent, flushable state between method calls, so a
// canceled run can still flush what it accumulated.
type Store struct {
	mu sync.Mutex

	artists      *Table[models.Artist]
	genres       *Table[models.Genre]
	artistGenres *Table[models.ArtistGenre]
	albums       *Table[models.Album]
	artistAlbums *Table[models.ArtistAlbum]
	tracks       *Table[models.Track]

	registry *GenreRegistry
}

// NewStore creates an empty aggregation store for one run.
func NewStore() *Store {
	return &Store{
		artists: NewTable("artist", func(a models.Artist) string { return a.ArtistID }),
		genres:  NewTable("genre", func(g models.Genre) string { return g.Name }),
		artistGenres: NewTable("artist_genre", func(ag models.ArtistGenre) string {
			return fmt.Sprintf("%s\x00%d", ag.ArtistID, ag.GenreID)
		}),
		albums: NewTable("album", func(a models.Album) string { return a.AlbumID }),
		artistAlbums: NewTable("artist_album", func(aa models.ArtistAlbum) string {
			return aa.ArtistID + "\x00" + aa.AlbumID
		}),
		tracks:   NewTable("track", func(t models.Track) string { return t.SongID }),
		registry: NewGenreRegistry(),
	}
}

// AddArtist merges one artist row plus its genre names. Genre IDs are
// assigned by the run-scoped registry in first-seen order; the matching
// Genre and ArtistGenre rows are created alongside the Artist row.
func (s *Store) AddArtist(artist models.Artist, genreNames []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artists.Add(artist)

	for _, name := range genreNames {
		id, _ := s.registry.Assign(name)
		s.genres.Add(models.Genre{GenreID: id, Name: name})
		s.artistGenres.Add(models.ArtistGenre{ArtistID: artist.ArtistID, GenreID: id})
	}
}

// AddAlbums merges album candidate rows and their artist-album links.
func (s *Store) AddAlbums(albums []models.Album, links []models.ArtistAlbum) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.albums.Add(albums...)
	s.artistAlbums.Add(links...)
}

// AddTracks merges track candidate rows.
func (s *Store) AddTracks(tracks []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks.Add(tracks...)
}

// Snapshot is the immutable final table state of a run, in arrival order.
type Snapshot struct {
	Artists      []models.Artist
	Genres       []models.Genre
	ArtistGenres []models.ArtistGenre
	Albums       []models.Album
	ArtistAlbums []models.ArtistAlbum
	Tracks       []models.Track

	DuplicatesDropped int
}

// Snapshot copies the current table state. Safe to call at any point,
// including after cancellation mid-run.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Artists:      s.artists.Rows(),
		Genres:       s.genres.Rows(),
		ArtistGenres: s.artistGenres.Rows(),
		Albums:       s.albums.Rows(),
		ArtistAlbums: s.artistAlbums.Rows(),
		Tracks:       s.tracks.Rows(),
		DuplicatesDropped: s.artists.Dropped() + s.genres.Dropped() +
			s.artistGenres.Dropped() + s.albums.Dropped() +
			s.artistAlbums.Dropped() + s.tracks.Dropped(),
	}
}
