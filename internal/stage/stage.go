// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

// Package stage persists raw fetched pages as append-only newline-delimited
// JSON before any normalization runs. Staged files make reruns cheap: a
// failed or interrupted run can be replayed from disk without re-hitting
// the upstream catalog, and the relational sink's insert-or-ignore loaders
// make the replay idempotent.
package stage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// Record kinds written by the runner.
const (
	KindArtist    = "artist"
	KindAlbumPage = "album_page"
	KindTrackPage = "track_page"
)

// Record is one staged line: a raw page plus enough envelope to route it
// back through the normalizer on replay.
type Record struct {
	Kind       string          `json:"kind"`
	ResourceID string          `json:"resource_id"`
	StagedAt   time.Time       `json:"staged_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewRecord wraps a page value into a staged record, marshaling the payload
// eagerly so encode errors surface at stage time rather than replay time.
func NewRecord(kind, resourceID string, payload any) (Record, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("stage: marshal %s payload: %w", kind, err)
	}
	return Record{
		Kind:       kind,
		ResourceID: resourceID,
		StagedAt:   time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Writer appends records as one JSON object per line.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps an io.Writer. The caller owns the underlying stream and
// must call Flush before closing it.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteLine appends one record. Lines are self-delimiting: a partial final
// line from a crashed run is detectable (and skippable) on read.
func (w *Writer) WriteLine(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("stage: marshal record: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("stage: write record: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("stage: write delimiter: %w", err)
	}
	return nil
}

// Flush drains buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("stage: flush: %w", err)
	}
	return nil
}

// Scanner reads records back one line at a time.
type Scanner struct {
	s *bufio.Scanner
}

// maxLineBytes bounds a single staged page. Upstream pages are capped at 50
// items so 4 MiB is generous headroom.
const maxLineBytes = 4 << 20

// NewScanner wraps an io.Reader.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64<<10), maxLineBytes)
	return &Scanner{s: s}
}

// ReadLine decodes the next record into rec. It returns io.EOF when the
// stream is exhausted and skips blank lines.
func (sc *Scanner) ReadLine(rec *Record) error {
	for sc.s.Scan() {
		line := sc.s.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, rec); err != nil {
			return fmt.Errorf("stage: decode record: %w", err)
		}
		return nil
	}
	if err := sc.s.Err(); err != nil {
		return fmt.Errorf("stage: scan: %w", err)
	}
	return io.EOF
}

// Replay feeds every staged record to fn in write order. A decode error on
// a single line aborts the replay; blank lines are skipped.
func Replay(r io.Reader, fn func(Record) error) error {
	sc := NewScanner(r)
	for {
		var rec Record
		err := sc.ReadLine(&rec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// File is a file-backed writer for one run's staged pages.
type File struct {
	f *os.File
	*Writer
	path string
}

// CreateFile opens an append-only staging file under dir named after the
// run ID, creating dir if needed.
func CreateFile(dir, runID string) (*File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("stage: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, runID+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("stage: open %s: %w", path, err)
	}
	return &File{f: f, Writer: NewWriter(f), path: path}, nil
}

// OpenFile opens an existing staging file for replay.
func OpenFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stage: open %s: %w", path, err)
	}
	return f, nil
}

// Path is the staging file's location on disk.
func (f *File) Path() string { return f.path }

// Close flushes buffered lines and closes the file.
func (f *File) Close() error {
	if err := f.Flush(); err != nil {
		f.f.Close()
		return err
	}
	if err := f.f.Close(); err != nil {
		return fmt.Errorf("stage: close %s: %w", f.path, err)
	}
	return nil
}
