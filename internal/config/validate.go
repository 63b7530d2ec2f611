// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/personachat/internal/logging"
)

// =============================================================================
// VALIDATION
// =============================================================================

// MinUsernameLength is the shortest accepted username, in runes.
const MinUsernameLength = 3

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns all problems at once as
// ValidateErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	// API
	if c.API.BaseURL == "" {
		add("api.base_url", "must not be empty")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil {
		add("api.base_url", fmt.Sprintf("invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https")
	} else if u.Host == "" {
		add("api.base_url", "missing host")
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be between 1 and 600")
	}
	if c.API.MaxRetries < 1 || c.API.MaxRetries > 10 {
		add("api.max_retries", "must be between 1 and 10")
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second", "must not be negative")
	}
	if c.API.Burst < 0 {
		add("api.burst", "must not be negative")
	}
	if c.API.InactivityTimeoutSecs < 0 || c.API.InactivityTimeoutSecs > 3600 {
		add("api.inactivity_timeout_secs", "must be between 0 and 3600")
	}

	// User
	if name := strings.TrimSpace(c.User.Username); name != "" && utf8.RuneCountInString(name) < MinUsernameLength {
		add("user.username", fmt.Sprintf("must be at least %d characters", MinUsernameLength))
	}

	// Quota
	if c.Quota.DailyLimit < 1 {
		add("quota.daily_limit", "must be at least 1")
	}

	// UI
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		add("ui.theme", fmt.Sprintf("unknown theme %q (want dark, light or auto)", c.UI.Theme))
	}

	// Logging
	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = defaults.API.MaxRetries
	}
	if c.API.Burst == 0 {
		c.API.Burst = defaults.API.Burst
	}
	if c.Quota.DailyLimit == 0 {
		c.Quota.DailyLimit = defaults.Quota.DailyLimit
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// Migrate normalizes values written by older releases or by hand.
func (c *Config) Migrate() error {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.User.Username = strings.TrimSpace(c.User.Username)
	c.User.DefaultPersona = strings.ToLower(strings.TrimSpace(c.User.DefaultPersona))

	// "warning" was accepted before levels were normalized
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	if c.Version != CurrentVersion {
		c.Version = CurrentVersion
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PERSONACHAT_API_URL: overrides api.base_url
//   - PERSONACHAT_USERNAME: overrides user.username
//   - PERSONACHAT_PERSONA: overrides user.default_persona
//   - PERSONACHAT_STREAMING: "1"/"true" or "0"/"false"
//   - PERSONACHAT_LOG_LEVEL: overrides logging.level
//   - PERSONACHAT_LOG_FILE: overrides logging.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PERSONACHAT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("PERSONACHAT_USERNAME"); v != "" {
		c.User.Username = v
	}
	if v := os.Getenv("PERSONACHAT_PERSONA"); v != "" {
		c.User.DefaultPersona = v
	}
	if v := os.Getenv("PERSONACHAT_STREAMING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.API.Streaming = b
		}
	}
	if v := os.Getenv("PERSONACHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PERSONACHAT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}
