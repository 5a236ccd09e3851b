// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "zero catalog timeout",
			mutate: func(c *Config) { c.Catalog.Timeout = 0 },
		},
		{
			name:   "page size over limit",
			mutate: func(c *Config) { c.Catalog.PageSize = 500 },
		},
		{
			name:   "zero workers",
			mutate: func(c *Config) { c.Ingest.Workers = 0 },
		},
		{
			name:   "zero retry attempts",
			mutate: func(c *Config) { c.Ingest.RetryAttempts = 0 },
		},
		{
			name:   "invalid log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "invalid log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:   "token url without credentials",
			mutate: func(c *Config) { c.Catalog.TokenURL = "https://auth.example.com/token" },
		},
		{
			name: "staging enabled without dir",
			mutate: func(c *Config) {
				c.Stage.Enabled = true
				c.Stage.Dir = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
catalog:
  url: https://api.example.com/v1
  page_size: 20
ingest:
  retry_attempts: 3
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("INGEST_RETRY_ATTEMPTS", "7")
	t.Setenv("INGEST_ARTIST_IDS", "a1, a2,a3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// File overrides defaults
	if cfg.Catalog.URL != "https://api.example.com/v1" {
		t.Errorf("catalog.url = %q, want file value", cfg.Catalog.URL)
	}
	if cfg.Catalog.PageSize != 20 {
		t.Errorf("catalog.page_size = %d, want 20", cfg.Catalog.PageSize)
	}

	// Env overrides file
	if cfg.Ingest.RetryAttempts != 7 {
		t.Errorf("ingest.retry_attempts = %d, want env override 7", cfg.Ingest.RetryAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}

	// Comma-separated env slice
	want := []string{"a1", "a2", "a3"}
	if len(cfg.Ingest.ArtistIDs) != len(want) {
		t.Fatalf("ingest.artist_ids = %v, want %v", cfg.Ingest.ArtistIDs, want)
	}
	for i, id := range want {
		if cfg.Ingest.ArtistIDs[i] != id {
			t.Errorf("artist_ids[%d] = %q, want %q", i, cfg.Ingest.ArtistIDs[i], id)
		}
	}

	// Untouched defaults survive layering
	if cfg.Catalog.Timeout != 30*time.Second {
		t.Errorf("catalog.timeout = %v, want default 30s", cfg.Catalog.Timeout)
	}
}

func TestEnvTransformFuncSkipsUnknownKeys(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("unknown env var should map to empty string, got %q", got)
	}
	if got := envTransformFunc("CATALOG_URL"); got != "catalog.url" {
		t.Errorf("CATALOG_URL mapped to %q", got)
	}
	if got := envTransformFunc("duckdb_path"); got != "database.path" {
		t.Errorf("duckdb_path mapped to %q", got)
	}
}
