// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration loading and saving for personachat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/personachat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// CurrentVersion is the schema version written by SaveTOML/SaveJSON.
const CurrentVersion = "1"

// Config is the main configuration structure.
type Config struct {
	Version string        `toml:"version" json:"version"`
	API     APIConfig     `toml:"api" json:"api"`
	User    UserConfig    `toml:"user" json:"user"`
	Quota   QuotaConfig   `toml:"quota" json:"quota"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// APIConfig configures the chat backend connection.
type APIConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8000
	BaseURL string `toml:"base_url" json:"base_url"`

	// Streaming selects the SSE endpoint; false uses the single-shot POST.
	Streaming bool `toml:"streaming" json:"streaming"`

	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries  int `toml:"max_retries" json:"max_retries"`

	// RequestsPerSecond limits outgoing requests. 0 disables the limiter.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`

	// InactivityTimeoutSecs fails a reply that stalls this long. 0 disables.
	InactivityTimeoutSecs int `toml:"inactivity_timeout_secs" json:"inactivity_timeout_secs"`

	// AcceptLegacyEvents treats tagless events carrying a session id or
	// quota as completion.
	AcceptLegacyEvents bool `toml:"accept_legacy_events" json:"accept_legacy_events"`
}

// Timeout returns TimeoutSecs as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// InactivityTimeout returns InactivityTimeoutSecs as a duration.
func (a APIConfig) InactivityTimeout() time.Duration {
	return time.Duration(a.InactivityTimeoutSecs) * time.Second
}

// UserConfig holds the remembered identity.
type UserConfig struct {
	Username       string `toml:"username" json:"username"`
	DefaultPersona string `toml:"default_persona" json:"default_persona"`
}

// QuotaConfig holds the client-side view of the daily allowance.
type QuotaConfig struct {
	DailyLimit int `toml:"daily_limit" json:"daily_limit"`
}

// UIConfig controls presentation.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme"` // "dark", "light", "auto"
	Markdown bool   `toml:"markdown" json:"markdown"`
	Compact  bool   `toml:"compact" json:"compact"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	File   string `toml:"file" json:"file"` // empty: <config dir>/personachat.log
	Pretty bool   `toml:"pretty" json:"pretty"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:               "http://localhost:8000",
			Streaming:             true,
			TimeoutSecs:           60,
			MaxRetries:            3,
			RequestsPerSecond:     0,
			Burst:                 1,
			InactivityTimeoutSecs: 90,
			AcceptLegacyEvents:    true,
		},
		User: UserConfig{},
		Quota: QuotaConfig{
			DailyLimit: 50,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
			Compact:  false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the personachat configuration directory path.
// PERSONACHAT_HOME overrides the default of ~/.personachat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PERSONACHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".personachat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the file Load would read, or the TOML path when
// neither exists.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// LogFile returns Logging.File, or the default log path inside ConfigDir.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "personachat.log")
	}
	return filepath.Join(dir, "personachat.log")
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: the file holds the username; keep it owner-only.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory.
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last. A file that exists but cannot be
// decoded is reported alongside the defaults so callers can warn and go on.
func Load() (*Config, error) {
	var loadErr error

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg := Default()
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg := Default()
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadTOML decodes a TOML file over cfg. Keys missing from the file keep
// the values already in cfg.
func LoadTOML(cfg *Config, path string) error {
	_ = ensureSecurePermissions(path)

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	_ = ensureSecurePermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with full validation.
// A .json suffix selects JSON; anything else is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// finish runs the post-decode pipeline shared by every loader.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with a short header.
// RELIABILITY: atomic write so a crash never leaves a half-written file.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# personachat configuration file\n")
	buf.WriteString("# Edit with care; `personachat config set <key> <value>` validates.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveToPath writes cfg in the format implied by the path suffix.
func SaveToPath(cfg *Config, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the configuration. Config holds only value
// fields, so a struct copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the configuration as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
