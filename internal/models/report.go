// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package models

import (
	"time"

	"github.com/google/uuid"
)

// ResourceStatus is the terminal status of one resource id within a run.
type ResourceStatus string

// Resource statuses reported per artist id at end of run.
const (
	ResourceSucceeded ResourceStatus = "succeeded"
	ResourceAborted   ResourceStatus = "aborted"
)

// ResourceOutcome records how one resource id fared during a run.
type ResourceOutcome struct {
	ResourceID string         `json:"resource_id"`
	Status     ResourceStatus `json:"status"`
	Pages      int            `json:"pages"`
	Cause      string         `json:"cause,omitempty"`
}

// SkippedRecord describes one malformed source record that was logged and
// skipped during normalization. Skips never abort the surrounding page.
type SkippedRecord struct {
	ResourceID string `json:"resource_id"`
	Entity     string `json:"entity"`
	Cause      string `json:"cause"`
}

// RunReport is the structured summary returned by every ingestion run.
//
// A run never surfaces a bare success/fail boolean: all failures are captured
// here as values, and the entry point returns the report even when every
// resource id aborted.
type RunReport struct {
	RunID      uuid.UUID         `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Resources  []ResourceOutcome `json:"resources"`
	Skipped    []SkippedRecord   `json:"skipped,omitempty"`

	// Aggregate row counts after deduplication.
	Artists      int `json:"artists"`
	Genres       int `json:"genres"`
	Albums       int `json:"albums"`
	Tracks       int `json:"tracks"`
	ArtistAlbums int `json:"artist_albums"`
	ArtistGenres int `json:"artist_genres"`

	// DuplicatesDropped counts candidate rows discarded by first-occurrence-wins.
	DuplicatesDropped int `json:"duplicates_dropped"`
}

// Duration returns the wall-clock duration of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded returns the resource ids that completed all pages.
func (r *RunReport) Succeeded() []string {
	var ids []string
	for _, res := range r.Resources {
		if res.Status == ResourceSucceeded {
			ids = append(ids, res.ResourceID)
		}
	}
	return ids
}

// Aborted returns the resource ids that exhausted retries or hit a terminal
// credential failure.
func (r *RunReport) Aborted() []string {
	var ids []string
	for _, res := range r.Resources {
		if res.Status == ResourceAborted {
			ids = append(ids, res.ResourceID)
		}
	}
	return ids
}
