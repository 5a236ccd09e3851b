// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package weekly

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/catalogus-dev/catalogus/internal/models"
)

// WriteFiles emits one JSON file per week under dir, named
// week_<year>_<NN>.json, creating dir if needed. Each file is an
// independent unit suitable for separate partition storage.
func WriteFiles(dir string, year int, files []models.WeeklyFile) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("weekly: create dir %s: %w", dir, err)
	}
	for i, file := range files {
		path := filepath.Join(dir, fmt.Sprintf("week_%d_%02d.json", year, i+1))
		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return fmt.Errorf("weekly: marshal week %d: %w", i+1, err)
		}
		if err := os.WriteFile(path, data, 0o640); err != nil {
			return fmt.Errorf("weekly: write %s: %w", path, err)
		}
	}
	return nil
}

// Rows flattens generated files into WeeklyStream and WeeklyDownload rows
// for the relational sink. WeekID is the 1-based week number.
func Rows(files []models.WeeklyFile) ([]models.WeeklyStream, []models.WeeklyDownload) {
	var streams []models.WeeklyStream
	var downloads []models.WeeklyDownload
	for _, file := range files {
		for _, entry := range file.Songs {
			d := entry.WeeklyData
			streams = append(streams, models.WeeklyStream{
				WeekID:        d.Week,
				SongID:        entry.SongID,
				WeekStartDate: d.WeekStartDate,
				WeekEndDate:   d.WeekEndDate,
				Streams:       d.TotalWeeklyStreams,
			})
			downloads = append(downloads, models.WeeklyDownload{
				WeekID:        d.Week,
				SongID:        entry.SongID,
				WeekStartDate: d.WeekStartDate,
				WeekEndDate:   d.WeekEndDate,
				Downloads:     d.TotalWeeklyDownloads,
			})
		}
	}
	return streams, downloads
}
