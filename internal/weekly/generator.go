// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

/* generator.go - Synthetic Weekly Metrics Generator
 *
 * Fabricates plausible weekly stream and download figures per song for a
 * full 52-week year. Generation is pure given the seed: per song and week,
 * means and standard deviations are drawn uniformly, the weekly totals are
 * sampled from the resulting normal distributions, and negative samples are
 * clamped to zero rather than resampled.
 *
 * Week boundaries align to the weekday of January 1: week 1 starts on
 * Jan 1 minus its Monday-based weekday offset, and every week spans exactly
 * seven days. The generated year therefore always has 52 complete weeks
 * regardless of where Jan 1 falls.
 */
//nolint:staticcheck // file-level doc comment
package weekly

import (
	"math/rand"
	"time"

	"github.com/catalogus-dev/catalogus/internal/models"
)

// WeeksPerYear is the fixed number of generated weeks.
const WeeksPerYear = 52

// Sampling bounds for the per-song, per-week distribution parameters.
const (
	downloadsMeanMin = 30000
	downloadsMeanMax = 70000
	downloadsStdMin  = 10000
	downloadsStdMax  = 30000
	streamsMeanMin   = 400000
	streamsMeanMax   = 800000
	streamsStdMin    = 150000
	streamsStdMax    = 300000
)

// Generator produces synthetic weekly metrics. Not safe for concurrent use;
// the rand source is unsynchronized.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator with a deterministic source. The same
// seed, song list, and year always produce identical output.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // synthetic data, not security-sensitive
	}
}

// YearStart returns the start date of week 1: January 1 of the year pulled
// back to the Monday on or before it.
func YearStart(year int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(jan1.Weekday()) + 6) % 7 // Monday-based weekday
	return jan1.AddDate(0, 0, -offset)
}

// WeekBounds returns the inclusive start and end dates of the given week
// number (1-based) within the year's generated calendar.
func WeekBounds(year, week int) (start, end time.Time) {
	start = YearStart(year).AddDate(0, 0, (week-1)*7)
	end = start.AddDate(0, 0, 6)
	return start, end
}

const dateLayout = "2006-01-02"

// GenerateYear produces one file payload per week, each holding one entry
// per input song. Songs appear in input order within every week.
func (g *Generator) GenerateYear(songIDs []string, year int) []models.WeeklyFile {
	files := make([]models.WeeklyFile, 0, WeeksPerYear)
	for week := 1; week <= WeeksPerYear; week++ {
		start, end := WeekBounds(year, week)

		songs := make([]models.WeeklySongEntry, 0, len(songIDs))
		for _, id := range songIDs {
			songs = append(songs, models.WeeklySongEntry{
				SongID: id,
				WeeklyData: models.WeeklyData{
					Week:                 week,
					WeekStartDate:        start.Format(dateLayout),
					WeekEndDate:          end.Format(dateLayout),
					TotalWeeklyDownloads: g.sampleDownloads(),
					TotalWeeklyStreams:   g.sampleStreams(),
				},
			})
		}
		files = append(files, models.WeeklyFile{Songs: songs})
	}
	return files
}

func (g *Generator) sampleDownloads() int64 {
	mean := g.uniform(downloadsMeanMin, downloadsMeanMax)
	std := g.uniform(downloadsStdMin, downloadsStdMax)
	return clampSample(g.rng.NormFloat64()*std + mean)
}

func (g *Generator) sampleStreams() int64 {
	mean := g.uniform(streamsMeanMin, streamsMeanMax)
	std := g.uniform(streamsStdMin, streamsStdMax)
	return clampSample(g.rng.NormFloat64()*std + mean)
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// clampSample floors negative draws to zero rather than resampling, so the
// output distribution keeps a point mass at zero instead of being shifted.
func clampSample(v float64) int64 {
	if v < 0 {
		return 0
	}
	return int64(v)
}
