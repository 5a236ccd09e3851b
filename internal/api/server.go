// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

// Package api exposes the run-trigger HTTP surface using Chi router.
//
// The surface is deliberately small: a trigger endpoint that starts an
// ingestion run, a report endpoint for the last finished run, health, and
// Prometheus metrics. Concurrent runs against the same tables are unsafe,
// so the trigger holds a single-flight guard and answers 409 while a run
// is in flight.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/catalogus-dev/catalogus/internal/config"
	"github.com/catalogus-dev/catalogus/internal/logging"
	"github.com/catalogus-dev/catalogus/internal/models"
)

// RunStarter starts one ingestion run. Satisfied by *ingest.Runner.
type RunStarter interface {
	Run(ctx context.Context, artistIDs []string) (*models.RunReport, error)
}

// Server is the trigger service.
type Server struct {
	runner         RunStarter
	cfg            *config.ServerConfig
	defaultArtists []string

	mu         sync.Mutex
	running    bool
	lastReport *models.RunReport
}

// NewServer wires the trigger service. defaultArtists is used when a
// trigger request carries no artist id list of its own.
func NewServer(runner RunStarter, cfg *config.ServerConfig, defaultArtists []string) *Server {
	return &Server{
		runner:         runner,
		cfg:            cfg,
		defaultArtists: defaultArtists,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow)).
			Post("/runs", s.handleTriggerRun)
		r.Get("/runs/latest", s.handleLatestRun)
	})

	return r
}

// ListenAndServe blocks serving the trigger surface until ctx is canceled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logging.Info().Str("addr", addr).Msg("Trigger service listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("trigger service: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("trigger service shutdown: %w", err)
		}
		return ctx.Err()
	}
}

// triggerRequest is the optional POST /runs body.
type triggerRequest struct {
	ArtistIDs []string `json:"artist_ids"`
}

// triggerResponse acknowledges an accepted run.
type triggerResponse struct {
	Status  string   `json:"status"`
	Artists []string `json:"artists"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	artistIDs := req.ArtistIDs
	if len(artistIDs) == 0 {
		artistIDs = s.defaultArtists
	}
	if len(artistIDs) == 0 {
		writeError(w, http.StatusBadRequest, "no artist ids configured or supplied")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "an ingestion run is already in flight")
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.executeRun(artistIDs)

	writeJSON(w, http.StatusAccepted, triggerResponse{Status: "accepted", Artists: artistIDs})
}

// executeRun owns the single-flight flag for the duration of one run. The
// run is detached from the trigger request's lifetime on purpose: the
// report lands in lastReport, not in the HTTP response.
func (s *Server) executeRun(artistIDs []string) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report, err := s.runner.Run(context.Background(), artistIDs)
	if err != nil {
		logging.Error().Err(err).Msg("Triggered run failed")
	}
	if report != nil {
		s.mu.Lock()
		s.lastReport = report
		s.mu.Unlock()
	}
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	report := s.lastReport
	running := s.running
	s.mu.Unlock()

	if report == nil {
		if running {
			writeError(w, http.StatusNotFound, "a run is in flight, no report yet")
			return
		}
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode response")
	}
}

// requestLogging logs one line per request with method, path, and status.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}
