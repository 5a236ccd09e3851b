// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

// Package metrics provides Prometheus collectors for pipeline observability.
//
// Collectors are registered via promauto at package load and exported at the
// /metrics endpoint of the trigger service:
//
//   - catalog_fetch_outcomes_total: fetch results by outcome kind
//   - ingest_pages_fetched_total: successfully delivered pages
//   - ingest_backoff_waits_total: transitions into AwaitingBackoff
//   - ingest_credential_refreshes_total: transitions into RefreshingCredential
//   - ingest_resources_total: per-run resource outcomes by status
//   - ingest_run_duration_seconds: run wall-clock histogram
//   - normalize_rows_total / normalize_skipped_total: normalizer throughput
//   - aggregate_duplicates_dropped_total: first-occurrence-wins discards
//   - sink_rows_flushed_total: rows written to the relational sink by table
//   - circuit_breaker_state / _transitions_total: upstream breaker health
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchOutcomes counts catalog API fetch results by outcome kind:
	// success, rate_limited, unauthorized, transient, malformed.
	FetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fetch_outcomes_total",
			Help: "Total catalog API fetches by outcome kind",
		},
		[]string{"outcome"},
	)

	// PagesFetched counts pages successfully delivered to the normalizer.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_pages_fetched_total",
			Help: "Total pages successfully fetched and delivered",
		},
		[]string{"resource"}, // "albums", "tracks", "artist"
	)

	// BackoffWaits counts controller transitions into AwaitingBackoff.
	BackoffWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_backoff_waits_total",
			Help: "Total backoff waits by failure kind",
		},
		[]string{"kind"}, // "rate_limited", "transient"
	)

	// CredentialRefreshes counts controller transitions into RefreshingCredential.
	CredentialRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_credential_refreshes_total",
			Help: "Total credential refreshes triggered by 401 responses",
		},
	)

	// ResourceOutcomes counts terminal per-resource statuses across runs.
	ResourceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_resources_total",
			Help: "Total per-resource ingestion outcomes",
		},
		[]string{"status"}, // "succeeded", "aborted"
	)

	// RunDuration observes ingestion run wall-clock time.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // Runs can take minutes
		},
	)

	// RowsNormalized counts candidate rows emitted by the normalizer.
	RowsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normalize_rows_total",
			Help: "Total candidate rows emitted by the normalizer",
		},
		[]string{"entity"},
	)

	// RecordsSkipped counts malformed source records rejected per-record.
	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normalize_skipped_total",
			Help: "Total malformed source records skipped",
		},
		[]string{"entity"},
	)

	// DuplicatesDropped counts rows discarded by first-occurrence-wins dedup.
	DuplicatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregate_duplicates_dropped_total",
			Help: "Total duplicate candidate rows dropped by the aggregator",
		},
		[]string{"entity"},
	)

	// RowsFlushed counts rows written to the relational sink.
	RowsFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_rows_flushed_total",
			Help: "Total rows flushed to the relational sink",
		},
		[]string{"table"},
	)

	// CircuitBreakerState tracks breaker state: 0=closed, 1=open, 2=half-open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
