// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

/*
outcome.go - Fetch Failure Taxonomy

The catalog client signals failures as distinct typed values rather than
generic faults so that the ingest controller can branch on them exhaustively:

  - RateLimitedError: HTTP 429, carries the server's retry-after hint
  - UnauthorizedError: HTTP 401, the bearer credential expired or is invalid
  - TransientError: network-level or 5xx failures worth retrying with backoff
  - MalformedResponseError: undecodable or structurally invalid response body

The client never retries on its own; retries are exclusively the ingest
controller's responsibility.
*/

//nolint:staticcheck // File documentation, not package doc
package catalog

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitedError reports an HTTP 429 from the catalog API.
type RateLimitedError struct {
	// RetryAfter is the server-provided wait hint. Zero when the server
	// sent no Retry-After header.
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// UnauthorizedError reports an HTTP 401 from the catalog API.
// The bearer credential has a finite lifetime; a refresh usually resolves it.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: bearer credential expired or invalid"
}

// TransientError reports a network-level failure or a 5xx status that is
// worth retrying with exponential backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a response body that could not be decoded
// or is missing required structure. Per-record malformations inside an
// otherwise valid page are handled by the normalizer, not here.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Reason)
}

// AsRateLimited reports whether err is a rate-limit outcome and returns the
// server's retry-after hint.
func AsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsUnauthorized reports whether err is a credential failure.
func IsUnauthorized(err error) bool {
	var ua *UnauthorizedError
	return errors.As(err, &ua)
}

// IsTransient reports whether err is a retryable network-level failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is an undecodable-response failure.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
