// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package models

// WeeklyStream is one week of stream counts for one song.
// (WeekID, SongID) is unique; the week spans exactly 7 days.
type WeeklyStream struct {
	WeekID        int    `json:"week_id"`
	SongID        string `json:"song_id"`
	WeekStartDate string `json:"week_start_date"`
	WeekEndDate   string `json:"week_end_date"`
	Streams       int64  `json:"streams"`
}

// WeeklyDownload is one week of download counts for one song.
// (WeekID, SongID) is unique; the week spans exactly 7 days.
type WeeklyDownload struct {
	WeekID        int    `json:"week_id"`
	SongID        string `json:"song_id"`
	WeekStartDate string `json:"week_start_date"`
	WeekEndDate   string `json:"week_end_date"`
	Downloads     int64  `json:"downloads"`
}

// WeeklyData is the per-song payload inside a weekly metrics file.
type WeeklyData struct {
	Week                 int    `json:"week"`
	WeekStartDate        string `json:"week_start_date"`
	WeekEndDate          string `json:"week_end_date"`
	TotalWeeklyDownloads int64  `json:"total_weekly_downloads"`
	TotalWeeklyStreams   int64  `json:"total_weekly_streams"`
}

// WeeklySongEntry pairs a song with its metrics for one week.
type WeeklySongEntry struct {
	SongID     string     `json:"song_id"`
	WeeklyData WeeklyData `json:"weekly_data"`
}

// WeeklyFile is the top-level shape of one weekly metrics file.
// One file is emitted per week, suitable for separate partition storage.
type WeeklyFile struct {
	Songs []WeeklySongEntry `json:"songs"`
}
