// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

// Package aggregate merges candidate rows from many pages and artists into
// final per-entity tables.
//
// Dedup policy is first-occurrence-wins: within each unique key, the
// earliest-arrived row is kept and later duplicates are silently dropped
// (and counted). Tables are incremental - adding a batch costs amortized
// O(1) per row with no rescans of accumulated state - and idempotent:
// adding the same batch twice yields the same table as adding it once.
//
// The Store type serializes all mutation behind one mutex so fetch workers
// can run in parallel while the genre counter and the dedup tables stay
// single-writer, and the accumulated tables remain consistent and flushable
// under mid-run cancellation.
package aggregate

import (
	"github.com/catalogus-dev/catalogus/internal/metrics"
)

// KeyFunc derives the unique key for a row.
type KeyFunc[T any] func(T) string

// Table accumulates rows of one entity with first-occurrence-wins dedup.
//
// Not safe for concurrent use on its own; Store provides the serialization.
type Table[T any] struct {
	entity  string
	key     KeyFunc[T]
	rows    map[string]T
	order   []string
	dropped int
}

// NewTable creates an empty table for the named entity.
// The entity name labels the duplicate-drop metric.
func NewTable[T any](entity string, key KeyFunc[T]) *Table[T] {
	return &Table[T]{
		entity: entity,
		key:    key,
		rows:   make(map[string]T),
	}
}

// Add merges a batch of candidate rows into the table and returns the number
// of rows actually kept. Rows whose key is already present are dropped.
func (t *Table[T]) Add(batch ...T) int {
	kept := 0
	for _, row := range batch {
		k := t.key(row)
		if _, exists := t.rows[k]; exists {
			t.dropped++
			metrics.DuplicatesDropped.WithLabelValues(t.entity).Inc()
			continue
		}
		t.rows[k] = row
		t.order = append(t.order, k)
		kept++
	}
	return kept
}

// Rows returns the kept rows in arrival order.
func (t *Table[T]) Rows() []T {
	out := make([]T, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.rows[k])
	}
	return out
}

// Len returns the number of kept rows.
func (t *Table[T]) Len() int {
	return len(t.order)
}

// Dropped returns the number of duplicate rows discarded so far.
func (t *Table[T]) Dropped() int {
	return t.dropped
}
