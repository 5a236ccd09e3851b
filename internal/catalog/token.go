// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/catalogus-dev/catalogus/internal/config"
	"github.com/catalogus-dev/catalogus/internal/logging"
)

// TokenSource supplies the bearer credential for catalog API requests.
//
// Token returns the current credential, minting one if none is cached.
// Refresh discards any cached credential and mints a new one; the ingest
// controller calls it after an Unauthorized outcome.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token and fails Refresh. Useful for
// tests and for pre-issued long-lived credentials.
type StaticTokenSource struct {
	Value string
}

// Token returns the fixed token.
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	return s.Value, nil
}

// Refresh fails: a static token cannot be re-minted.
func (s *StaticTokenSource) Refresh(_ context.Context) (string, error) {
	return "", fmt.Errorf("static token cannot be refreshed")
}

// ClientCredentialsSource mints bearer tokens from a client-credentials
// endpoint and caches them until shortly before expiry.
//
// Thread Safety: safe for concurrent use; minting is serialized.
type ClientCredentialsSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// tokenResponse is the credential endpoint's wire shape.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// expirySlack is subtracted from the reported token lifetime so a token is
// never handed out in its final seconds.
const expirySlack = 30 * time.Second

// NewClientCredentialsSource creates a token source for the configured
// credential endpoint.
func NewClientCredentialsSource(cfg *config.CatalogConfig) *ClientCredentialsSource {
	return &ClientCredentialsSource{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Token returns the cached credential, minting a fresh one when the cache is
// empty or within the expiry slack.
func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires) {
		return s.token, nil
	}
	return s.mintLocked(ctx)
}

// Refresh discards the cached credential and mints a new one.
func (s *ClientCredentialsSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	return s.mintLocked(ctx)
}

// mintLocked requests a new token. Caller must hold s.mu.
func (s *ClientCredentialsSource) mintLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access_token")
	}

	s.token = tr.AccessToken
	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime > expirySlack {
		lifetime -= expirySlack
	}
	s.expires = time.Now().Add(lifetime)

	logging.Debug().Time("expires", s.expires).Msg("Minted catalog API credential")

	return s.token, nil
}
