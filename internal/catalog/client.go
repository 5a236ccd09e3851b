// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

/*
client.go - Core Catalog API Client

This file provides the paginated fetcher against the upstream music catalog
API. It is a deliberately thin layer:

  - One HTTP request per call, bearer-authenticated, context-cancellable
  - Client-side request pacing via golang.org/x/time/rate
  - Failure mapping to the typed outcome taxonomy in outcome.go
  - NO retrying, NO backoff - both belong to the ingest controller

fetch(resource_id, cursor) -> (raw_page, next_cursor | done, status)

The cursor contract: a cursor passed in must be either the initial value or a
value previously returned by the same method. The returned page carries the
continuation cursor, or nil when the listing is exhausted.

Related Files:
  - outcome.go: failure taxonomy the client maps HTTP responses onto
  - token.go: bearer credential acquisition and refresh
  - circuit_breaker.go: gobreaker wrapper for sustained-outage protection
*/

//nolint:staticcheck // File documentation, not package doc
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/catalogus-dev/catalogus/internal/config"
	"github.com/catalogus-dev/catalogus/internal/metrics"
)

// maxErrorBodySize limits the response body read for error reporting.
// This prevents unbounded memory allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// API is the fetcher surface the ingest controller depends on.
//
// Implemented by Client for production use, by BreakerClient for
// circuit-breaker protection, and by fakes in tests. All methods are safe
// for concurrent use.
type API interface {
	// FetchArtist retrieves the full artist object for one artist id.
	FetchArtist(ctx context.Context, artistID string) (*ArtistObject, error)

	// FetchAlbumPage retrieves one page of an artist's album listing.
	FetchAlbumPage(ctx context.Context, artistID string, cur Cursor) (*AlbumPage, error)

	// FetchTrackPage retrieves one page of an album's track listing.
	FetchTrackPage(ctx context.Context, albumID string, cur Cursor) (*TrackPage, error)
}

// Client talks to the catalog API over HTTP.
//
// Failures surface as the typed outcomes in outcome.go; callers branch with
// AsRateLimited / IsUnauthorized / IsTransient / IsMalformed. The client
// performs no retries of its own.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a catalog API client from configuration.
// A RequestsPerSecond of zero disables client-side pacing.
func NewClient(cfg *config.CatalogConfig, tokens TokenSource) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: cfg.URL,
		tokens:  tokens,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
	}
}

// FetchArtist retrieves the full artist object for one artist id.
func (c *Client) FetchArtist(ctx context.Context, artistID string) (*ArtistObject, error) {
	reqURL := fmt.Sprintf("%s/artists/%s", c.baseURL, url.PathEscape(artistID))

	var artist ArtistObject
	if err := c.get(ctx, reqURL, &artist); err != nil {
		return nil, err
	}
	if artist.ID == "" {
		return nil, &MalformedResponseError{Reason: "artist object missing id"}
	}
	return &artist, nil
}

// FetchAlbumPage retrieves one page of an artist's album listing.
// The returned page's Next cursor is nil when the listing is exhausted.
func (c *Client) FetchAlbumPage(ctx context.Context, artistID string, cur Cursor) (*AlbumPage, error) {
	reqURL := fmt.Sprintf("%s/artists/%s/albums?%s",
		c.baseURL, url.PathEscape(artistID), cursorParams(cur).Encode())

	var raw listingResponse[AlbumItem]
	if err := c.get(ctx, reqURL, &raw); err != nil {
		return nil, err
	}

	return &AlbumPage{
		ArtistID: artistID,
		Items:    raw.Items,
		Total:    raw.Total,
		Next:     nextCursor(cur, len(raw.Items), raw.Total, raw.Next),
	}, nil
}

// FetchTrackPage retrieves one page of an album's track listing.
func (c *Client) FetchTrackPage(ctx context.Context, albumID string, cur Cursor) (*TrackPage, error) {
	reqURL := fmt.Sprintf("%s/albums/%s/tracks?%s",
		c.baseURL, url.PathEscape(albumID), cursorParams(cur).Encode())

	var raw listingResponse[TrackItem]
	if err := c.get(ctx, reqURL, &raw); err != nil {
		return nil, err
	}

	return &TrackPage{
		AlbumID: albumID,
		Items:   raw.Items,
		Total:   raw.Total,
		Next:    nextCursor(cur, len(raw.Items), raw.Total, raw.Next),
	}, nil
}

// cursorParams encodes a cursor as offset/limit query parameters.
func cursorParams(cur Cursor) url.Values {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(cur.Offset))
	params.Set("limit", strconv.Itoa(cur.Limit))
	return params
}

// nextCursor derives the continuation cursor for a fetched page.
// Returns nil (done) when the server sent no next link and the offset math
// shows the listing is exhausted.
func nextCursor(cur Cursor, got, total int, nextLink string) *Cursor {
	if got == 0 {
		return nil
	}
	advanced := Cursor{Offset: cur.Offset + got, Limit: cur.Limit}
	if nextLink != "" {
		return &advanced
	}
	if total > 0 && advanced.Offset < total {
		return &advanced
	}
	return nil
}

// get performs one paced, authenticated GET and decodes the JSON body into
// result. HTTP status codes map onto the outcome taxonomy; this method never
// retries.
func (c *Client) get(ctx context.Context, reqURL string, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransientError{Err: err}
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &TransientError{Err: fmt.Errorf("failed to obtain credential: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return &TransientError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.FetchOutcomes.WithLabelValues("transient").Inc()
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode below.
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.FetchOutcomes.WithLabelValues("rate_limited").Inc()
		return &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.FetchOutcomes.WithLabelValues("unauthorized").Inc()
		return &UnauthorizedError{}
	case resp.StatusCode >= 500:
		metrics.FetchOutcomes.WithLabelValues("transient").Inc()
		body := readBodyForError(resp.Body)
		return &TransientError{Err: fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))}
	default:
		metrics.FetchOutcomes.WithLabelValues("malformed").Inc()
		body := readBodyForError(resp.Body)
		return &MalformedResponseError{
			Reason: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		metrics.FetchOutcomes.WithLabelValues("malformed").Inc()
		return &MalformedResponseError{Reason: fmt.Sprintf("decode failed: %v", err)}
	}

	metrics.FetchOutcomes.WithLabelValues("success").Inc()
	return nil
}

// parseRetryAfter parses an RFC 6585 Retry-After header value in seconds.
// Returns zero for absent or unparseable values.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
