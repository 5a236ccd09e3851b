// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package catalog

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/catalogus-dev/catalogus/internal/logging"
	"github.com/catalogus-dev/catalogus/internal/metrics"
)

// BreakerClient wraps a catalog API client with a circuit breaker.
//
// The breaker protects against sustained upstream outages; per-request
// recovery (429 backoff, 401 refresh) stays with the ingest controller.
// Rate-limit and credential outcomes therefore do NOT count as breaker
// failures - only transient network/server failures trip the circuit.
//
// DETERMINISM NOTE: The breaker uses real time for its interval and timeout
// calculations. Tests should exercise the wrapped client directly.
type BreakerClient struct {
	inner API
	cb    *gobreaker.CircuitBreaker[interface{}]
	name  string
}

// NewBreakerClient wraps inner with a circuit breaker.
// Breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewBreakerClient(inner API) *BreakerClient {
	cbName := "catalog-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false // Need statistical significance before tripping
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		// Recoverable per-request outcomes are the controller's problem,
		// not evidence of an outage.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if _, ok := AsRateLimited(err); ok {
				return true
			}
			return IsUnauthorized(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{inner: inner, cb: cb, name: cbName}
}

// mapBreakerErr translates breaker rejections into the transient outcome so
// the ingest controller backs off instead of aborting the resource.
func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransientError{Err: err}
	}
	return err
}

// FetchArtist delegates through the circuit breaker.
func (b *BreakerClient) FetchArtist(ctx context.Context, artistID string) (*ArtistObject, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.FetchArtist(ctx, artistID)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return result.(*ArtistObject), nil
}

// FetchAlbumPage delegates through the circuit breaker.
func (b *BreakerClient) FetchAlbumPage(ctx context.Context, artistID string, cur Cursor) (*AlbumPage, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.FetchAlbumPage(ctx, artistID, cur)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return result.(*AlbumPage), nil
}

// FetchTrackPage delegates through the circuit breaker.
func (b *BreakerClient) FetchTrackPage(ctx context.Context, albumID string, cur Cursor) (*TrackPage, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.FetchTrackPage(ctx, albumID, cur)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return result.(*TrackPage), nil
}

// breakerStateString converts a gobreaker state to a label value.
func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breakerStateFloat converts a gobreaker state to a gauge value.
func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}
