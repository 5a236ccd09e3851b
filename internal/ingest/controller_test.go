// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/catalogus-dev/catalogus/internal/catalog"
)

// fakeTokens counts refreshes and optionally fails them.
type fakeTokens struct {
	refreshes  int
	refreshErr error
}

func (f *fakeTokens) Token(context.Context) (string, error) { return "tok", nil }

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return "tok2", nil
}

// recordedSleep captures waits without sleeping.
type recordedSleep struct {
	waits []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

type fakePage struct {
	Offset int
}

// scriptedFetch pops one response per call.
type scriptedFetch struct {
	t       *testing.T
	script  []any // either error or *catalog.Cursor (next) for success
	cursors []catalog.Cursor
}

func (s *scriptedFetch) fetch(_ context.Context, cur catalog.Cursor) (fakePage, *catalog.Cursor, error) {
	s.cursors = append(s.cursors, cur)
	if len(s.script) == 0 {
		s.t.Fatal("fetch called past end of script")
	}
	head := s.script[0]
	s.script = s.script[1:]
	switch v := head.(type) {
	case error:
		return fakePage{}, nil, v
	case *catalog.Cursor:
		return fakePage{Offset: cur.Offset}, v, nil
	default:
		s.t.Fatalf("bad script entry %T", head)
		return fakePage{}, nil, nil
	}
}

func newTestController(tokens *fakeTokens, attempts int) (*Controller[fakePage], *recordedSleep) {
	slept := &recordedSleep{}
	ctl := NewController[fakePage]("ar1", tokens, attempts, time.Second).WithSleep(slept.sleep)
	return ctl, slept
}

func TestWalkCursorContinuity(t *testing.T) {
	next1 := &catalog.Cursor{Offset: 2, Limit: 2}
	next2 := &catalog.Cursor{Offset: 4, Limit: 2}
	sf := &scriptedFetch{t: t, script: []any{next1, next2, (*catalog.Cursor)(nil)}}

	var delivered []fakePage
	ctl, _ := newTestController(&fakeTokens{}, 5)
	pages, err := ctl.Walk(context.Background(), catalog.Cursor{Offset: 0, Limit: 2}, sf.fetch,
		func(p fakePage) error { delivered = append(delivered, p); return nil })
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if pages != 3 || len(delivered) != 3 {
		t.Fatalf("pages = %d delivered = %d, want 3", pages, len(delivered))
	}

	// Each fetch consumed exactly the cursor the previous fetch returned.
	wantOffsets := []int{0, 2, 4}
	for i, cur := range sf.cursors {
		if cur.Offset != wantOffsets[i] {
			t.Errorf("fetch %d consumed offset %d, want %d", i, cur.Offset, wantOffsets[i])
		}
	}
}

func TestWalkRateLimitedRetainsCursor(t *testing.T) {
	sf := &scriptedFetch{t: t, script: []any{
		&catalog.RateLimitedError{RetryAfter: 5 * time.Second},
		(*catalog.Cursor)(nil), // success, done
	}}

	var delivered []fakePage
	ctl, slept := newTestController(&fakeTokens{}, 5)
	pages, err := ctl.Walk(context.Background(), catalog.Cursor{Offset: 10, Limit: 5}, sf.fetch,
		func(p fakePage) error { delivered = append(delivered, p); return nil })
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	// Exactly one page retained for that cursor position, no duplicates.
	if pages != 1 || len(delivered) != 1 {
		t.Fatalf("pages = %d delivered = %d, want 1", pages, len(delivered))
	}
	if len(sf.cursors) != 2 || sf.cursors[0].Offset != 10 || sf.cursors[1].Offset != 10 {
		t.Errorf("cursors = %+v, want same offset refetched", sf.cursors)
	}
	// Observed wait honors the server hint verbatim.
	if len(slept.waits) != 1 || slept.waits[0] != 5*time.Second {
		t.Errorf("waits = %v, want [5s]", slept.waits)
	}
}

func TestWalkUnauthorizedRefreshesCredential(t *testing.T) {
	sf := &scriptedFetch{t: t, script: []any{
		&catalog.UnauthorizedError{},
		(*catalog.Cursor)(nil),
	}}

	tokens := &fakeTokens{}
	ctl, slept := newTestController(tokens, 5)
	pages, err := ctl.Walk(context.Background(), catalog.Cursor{Offset: 4, Limit: 2}, sf.fetch,
		func(fakePage) error { return nil })
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if pages != 1 {
		t.Fatalf("pages = %d, want 1", pages)
	}
	if tokens.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", tokens.refreshes)
	}
	// Same cursor retained across the refresh, no backoff sleep.
	if sf.cursors[1].Offset != 4 {
		t.Errorf("refetched offset %d, want 4", sf.cursors[1].Offset)
	}
	if len(slept.waits) != 0 {
		t.Errorf("waits = %v, want none", slept.waits)
	}
}

func TestWalkTransientExponentialBackoff(t *testing.T) {
	boom := &catalog.TransientError{Err: errors.New("connection reset")}
	sf := &scriptedFetch{t: t, script: []any{boom, boom, boom, (*catalog.Cursor)(nil)}}

	ctl, slept := newTestController(&fakeTokens{}, 5)
	pages, err := ctl.Walk(context.Background(), catalog.InitialCursor(50), sf.fetch,
		func(fakePage) error { return nil })
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if pages != 1 {
		t.Fatalf("pages = %d, want 1", pages)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(slept.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", slept.waits, want)
	}
	for i := range want {
		if slept.waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, slept.waits[i], want[i])
		}
	}
}

func TestWalkRetriesExhaustedAborts(t *testing.T) {
	boom := &catalog.TransientError{Err: errors.New("connection reset")}
	sf := &scriptedFetch{t: t, script: []any{boom, boom, boom}}

	ctl, _ := newTestController(&fakeTokens{}, 3)
	pages, err := ctl.Walk(context.Background(), catalog.InitialCursor(50), sf.fetch,
		func(fakePage) error { return nil })
	if err == nil {
		t.Fatal("want abort error")
	}
	if pages != 0 {
		t.Errorf("pages = %d, want 0", pages)
	}
	if !strings.Contains(err.Error(), "retries exhausted") {
		t.Errorf("err = %v", err)
	}
}

func TestWalkSuccessResetsAttemptCount(t *testing.T) {
	boom := &catalog.TransientError{Err: errors.New("timeout")}
	next := &catalog.Cursor{Offset: 2, Limit: 2}
	// Two failures, a success, then two more failures, then done. With
	// maxAttempts=3 this only completes if the success resets the count.
	sf := &scriptedFetch{t: t, script: []any{
		boom, boom, next,
		boom, boom, (*catalog.Cursor)(nil),
	}}

	ctl, _ := newTestController(&fakeTokens{}, 3)
	pages, err := ctl.Walk(context.Background(), catalog.Cursor{Offset: 0, Limit: 2}, sf.fetch,
		func(fakePage) error { return nil })
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
}

func TestWalkMalformedAbortsImmediately(t *testing.T) {
	sf := &scriptedFetch{t: t, script: []any{
		&catalog.MalformedResponseError{Reason: "truncated body"},
	}}

	ctl, slept := newTestController(&fakeTokens{}, 5)
	_, err := ctl.Walk(context.Background(), catalog.InitialCursor(50), sf.fetch,
		func(fakePage) error { return nil })
	if err == nil {
		t.Fatal("want error")
	}
	if len(slept.waits) != 0 {
		t.Errorf("malformed response should not back off, waits = %v", slept.waits)
	}
}

func TestWalkCredentialRefreshFailureAborts(t *testing.T) {
	sf := &scriptedFetch{t: t, script: []any{&catalog.UnauthorizedError{}}}

	tokens := &fakeTokens{refreshErr: errors.New("invalid client secret")}
	ctl, _ := newTestController(tokens, 5)
	_, err := ctl.Walk(context.Background(), catalog.InitialCursor(50), sf.fetch,
		func(fakePage) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "credential refresh") {
		t.Fatalf("err = %v, want credential refresh failure", err)
	}
}

func TestWalkContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sf := &scriptedFetch{t: t, script: []any{(*catalog.Cursor)(nil)}}
	ctl, _ := newTestController(&fakeTokens{}, 5)
	_, err := ctl.Walk(ctx, catalog.InitialCursor(50), sf.fetch,
		func(fakePage) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
