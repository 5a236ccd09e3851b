// Catalogus - Music Catalog ETL and Weekly Metrics Pipeline
// Copyright 2026 Catalogus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/catalogus-dev/catalogus

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that configuration is structurally valid and that
// cross-field requirements hold. Struct tags cover ranges and formats;
// the checks below cover requirements tags cannot express.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Credential settings travel together: a token URL without client
	// credentials can never mint a token.
	if c.Catalog.TokenURL != "" && (c.Catalog.ClientID == "" || c.Catalog.ClientSecret == "") {
		return fmt.Errorf("catalog.client_id and catalog.client_secret are required when catalog.token_url is set")
	}

	if c.Stage.Enabled && c.Stage.Dir == "" {
		return fmt.Errorf("stage.dir is required when staging is enabled")
	}

	return nil
}
