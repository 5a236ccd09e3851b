// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

// Package config loads and validates Catalogus configuration.
//
// Configuration is layered with Koanf v2: built-in defaults, then an optional
// YAML file, then environment variables (highest priority). The loaded Config
// is validated with go-playground/validator before use.
package config

import "time"

// Config is the root configuration for all Catalogus components.
type Config struct {
	Catalog  CatalogConfig  `koanf:"catalog" validate:"required"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Database DatabaseConfig `koanf:"database"`
	Stage    StageConfig    `koanf:"stage"`
	Weekly   WeeklyConfig   `koanf:"weekly"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// CatalogConfig configures access to the upstream music catalog API.
type CatalogConfig struct {
	// URL is the base URL of the catalog API, e.g. https://api.example.com/v1.
	URL string `koanf:"url" validate:"omitempty,url"`

	// TokenURL is the credential endpoint used to mint and refresh the
	// bearer token. Tokens have a finite lifetime; the ingest controller
	// refreshes them on HTTP 401.
	TokenURL string `koanf:"token_url" validate:"omitempty,url"`

	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// Timeout bounds each HTTP request to the catalog API.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestsPerSecond paces outgoing requests client-side, independent of
	// any 429 handling. Zero disables pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`

	// PageSize is the limit parameter sent on paginated listings.
	PageSize int `koanf:"page_size" validate:"gt=0,lte=50"`
}

// IngestConfig configures the ingestion run loop.
type IngestConfig struct {
	// ArtistIDs is the default resource id list for a run. A trigger request
	// may supply its own list.
	ArtistIDs []string `koanf:"artist_ids"`

	// Workers sets the number of concurrent per-artist workers.
	// 1 means strictly sequential; each artist's own pages are always
	// fetched in order regardless of this setting.
	Workers int `koanf:"workers" validate:"gte=1"`

	// RetryAttempts caps recoverable-failure retries per page fetch.
	RetryAttempts int `koanf:"retry_attempts" validate:"gte=1"`

	// RetryBaseDelay is the first exponential backoff delay for transient
	// network failures. Server-provided Retry-After hints override it.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"gt=0"`

	// FetchTracks also walks each album's track listing.
	FetchTracks bool `koanf:"fetch_tracks"`
}

// DatabaseConfig configures the DuckDB sink.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty means in-memory.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`
}

// StageConfig configures the newline-delimited JSON staging store where raw
// pages land before normalization.
type StageConfig struct {
	// Dir is the directory holding one NDJSON object per run.
	Dir string `koanf:"dir"`

	// Enabled toggles staging. Disabled runs normalize pages directly.
	Enabled bool `koanf:"enabled"`
}

// WeeklyConfig configures the synthetic weekly metrics generator.
type WeeklyConfig struct {
	// Year is the target year for generated weeks.
	Year int `koanf:"year" validate:"gte=1900,lte=2200"`

	// OutputDir receives one JSON file per week.
	OutputDir string `koanf:"output_dir"`

	// Seed makes generation deterministic when non-zero.
	Seed int64 `koanf:"seed"`
}

// ServerConfig configures the run-trigger HTTP service (serve mode).
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RateLimitReqs/-Window throttle the trigger endpoint.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied.
// Defaults are loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL:               "",
			TokenURL:          "",
			ClientID:          "",
			ClientSecret:      "",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0, // Unpaced; rely on server 429 hints
			PageSize:          50,
		},
		Ingest: IngestConfig{
			ArtistIDs:      nil,
			Workers:        1, // Sequential by default; correctness never requires parallelism
			RetryAttempts:  5,
			RetryBaseDelay: 1 * time.Second,
			FetchTracks:    true,
		},
		Database: DatabaseConfig{
			Path:      "/data/catalogus.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Stage: StageConfig{
			Dir:     "/data/stage",
			Enabled: true,
		},
		Weekly: WeeklyConfig{
			Year:      time.Now().Year(),
			OutputDir: "/data/weekly",
			Seed:      0,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3858,
			Timeout:         30 * time.Second,
			RateLimitReqs:   60,
			RateLimitWindow: 1 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
