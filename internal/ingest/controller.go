// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

/* controller.go - Rate-Limit / Auth Recovery Controller

This file implements the retry state machine that supervises the paginated
fetcher for one resource id. States are an explicit enum, not nested
conditionals, so every transition is individually testable:

  Fetching --RateLimited--> AwaitingBackoff (sleep the server hint) --> Fetching
  Fetching --Unauthorized--> RefreshingCredential --(new token)--> Fetching
  Fetching --TransientNetworkError--> AwaitingBackoff (exponential) --> Fetching
  Fetching --success, no continuation--> Succeeded
  any recoverable path, attempts exhausted --> Aborted

The cursor advances only on a successful page fetch. Every retry re-fetches
the same cursor position, so each page is delivered to the caller exactly
once and no page is skipped on any failure path.
*/
//nolint:staticcheck // File documentation, not package doc
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogus-dev/catalogus/internal/catalog"
	"github.com/catalogus-dev/catalogus/internal/logging"
	"github.com/catalogus-dev/catalogus/internal/metrics"
)

// State is one node of the recovery state machine.
type State int

// Controller states. Succeeded and Aborted are terminal.
const (
	StateFetching State = iota
	StateAwaitingBackoff
	StateRefreshingCredential
	StateSucceeded
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateAwaitingBackoff:
		return "awaiting_backoff"
	case StateRefreshingCredential:
		return "refreshing_credential"
	case StateSucceeded:
		return "succeeded"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FetchFunc fetches one page at the given cursor. It returns the page, the
// continuation cursor (nil when no pages remain), and a typed outcome error
// on failure. It must not retry internally.
type FetchFunc[P any] func(ctx context.Context, cur catalog.Cursor) (page P, next *catalog.Cursor, err error)

// DeliverFunc consumes one successfully fetched page.
type DeliverFunc[P any] func(page P) error

// SleepFunc blocks for d or until the context is canceled. Injectable so
// tests can observe waits without real sleeping.
type SleepFunc func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Controller drives the state machine for one resource id's page sequence.
// It is re-entrant per resource id: the runner constructs one per walk.
type Controller[P any] struct {
	resourceID  string
	tokens      catalog.TokenSource
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
}

// NewController builds a controller. maxAttempts caps consecutive
// recoverable failures at one cursor position; a successful fetch resets
// the count. baseDelay seeds exponential backoff for transient failures.
func NewController[P any](resourceID string, tokens catalog.TokenSource, maxAttempts int, baseDelay time.Duration) *Controller[P] {
	return &Controller[P]{
		resourceID:  resourceID,
		tokens:      tokens,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       realSleep,
	}
}

// WithSleep overrides the wait implementation. Test hook.
func (c *Controller[P]) WithSleep(sleep SleepFunc) *Controller[P] {
	c.sleep = sleep
	return c
}

// Walk runs the state machine from the initial cursor until Succeeded or
// Aborted, delivering each page exactly once and in order. It returns the
// page count and, on abort, the terminal cause.
func (c *Controller[P]) Walk(ctx context.Context, initial catalog.Cursor, fetch FetchFunc[P], deliver DeliverFunc[P]) (int, error) {
	cur := initial
	attempts := 0
	pages := 0
	state := StateFetching

	var wait time.Duration
	var lastErr error

	for {
		switch state {
		case StateFetching:
			if err := ctx.Err(); err != nil {
				return pages, err
			}

			page, next, err := fetch(ctx, cur)
			if err == nil {
				if dErr := deliver(page); dErr != nil {
					return pages, fmt.Errorf("deliver page for %s: %w", c.resourceID, dErr)
				}
				pages++
				attempts = 0
				if next == nil {
					state = StateSucceeded
					break
				}
				cur = *next
				continue
			}

			lastErr = err
			switch {
			case isRateLimited(err):
				retryAfter, _ := catalog.AsRateLimited(err)
				wait = retryAfter
				if wait <= 0 {
					wait = c.backoffDelay(attempts)
				}
				c.logTransition(StateAwaitingBackoff, cur, "rate_limited", err, wait)
				metrics.BackoffWaits.WithLabelValues("rate_limited").Inc()
				state = StateAwaitingBackoff

			case catalog.IsUnauthorized(err):
				c.logTransition(StateRefreshingCredential, cur, "unauthorized", err, 0)
				state = StateRefreshingCredential

			case catalog.IsTransient(err):
				wait = c.backoffDelay(attempts)
				c.logTransition(StateAwaitingBackoff, cur, "transient", err, wait)
				metrics.BackoffWaits.WithLabelValues("transient").Inc()
				state = StateAwaitingBackoff

			default:
				// Malformed page bodies and unclassified failures are not
				// recoverable by waiting; abort this resource.
				c.logTransition(StateAborted, cur, "malformed", err, 0)
				return pages, fmt.Errorf("fetch %s at offset %d: %w", c.resourceID, cur.Offset, err)
			}

		case StateAwaitingBackoff:
			attempts++
			if attempts >= c.maxAttempts {
				c.logTransition(StateAborted, cur, "retries_exhausted", lastErr, 0)
				return pages, fmt.Errorf("%s: retries exhausted after %d attempts: %w", c.resourceID, attempts, lastErr)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return pages, err
			}
			state = StateFetching

		case StateRefreshingCredential:
			attempts++
			if attempts >= c.maxAttempts {
				c.logTransition(StateAborted, cur, "retries_exhausted", lastErr, 0)
				return pages, fmt.Errorf("%s: retries exhausted after %d attempts: %w", c.resourceID, attempts, lastErr)
			}
			if _, err := c.tokens.Refresh(ctx); err != nil {
				c.logTransition(StateAborted, cur, "credential_refresh_failed", err, 0)
				return pages, fmt.Errorf("%s: credential refresh: %w", c.resourceID, err)
			}
			metrics.CredentialRefreshes.Inc()
			state = StateFetching

		case StateSucceeded:
			return pages, nil
		}
	}
}

// backoffDelay doubles from the base per attempt already made at this
// cursor position.
func (c *Controller[P]) backoffDelay(attempts int) time.Duration {
	return c.baseDelay << uint(attempts)
}

// logTransition emits the structured record required on every transition
// into AwaitingBackoff, RefreshingCredential, or Aborted.
func (c *Controller[P]) logTransition(to State, cur catalog.Cursor, kind string, cause error, wait time.Duration) {
	evt := logging.Warn().
		Str("resource_id", c.resourceID).
		Int("cursor_offset", cur.Offset).
		Int("cursor_limit", cur.Limit).
		Str("state", to.String()).
		Str("failure_kind", kind)
	if cause != nil {
		evt = evt.Err(cause)
	}
	if wait > 0 {
		evt = evt.Dur("wait", wait)
	}
	evt.Msg("Fetch recovery transition")
}

func isRateLimited(err error) bool {
	_, ok := catalog.AsRateLimited(err)
	return ok
}
