// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PERSONACHAT_HOME", dir)
	for _, name := range []string{
		"PERSONACHAT_API_URL", "PERSONACHAT_USERNAME", "PERSONACHAT_PERSONA",
		"PERSONACHAT_STREAMING", "PERSONACHAT_LOG_LEVEL", "PERSONACHAT_LOG_FILE",
	} {
		t.Setenv(name, "")
	}
	return dir
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %q, want %q", cfg.Version, CurrentVersion)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if !cfg.API.Streaming || !cfg.API.AcceptLegacyEvents {
		t.Error("streaming and legacy events should default on")
	}
	if cfg.API.InactivityTimeout() != 90*time.Second {
		t.Errorf("InactivityTimeout = %v", cfg.API.InactivityTimeout())
	}
	if cfg.Quota.DailyLimit != 50 {
		t.Errorf("DailyLimit = %d", cfg.Quota.DailyLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, "", false},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url", true},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url", true},
		{"missing host", func(c *Config) { c.API.BaseURL = "http://" }, "api.base_url", true},
		{"https ok", func(c *Config) { c.API.BaseURL = "https://chat.example.com/api" }, "", false},
		{"timeout zero", func(c *Config) { c.API.TimeoutSecs = 0 }, "api.timeout_secs", true},
		{"retries too many", func(c *Config) { c.API.MaxRetries = 11 }, "api.max_retries", true},
		{"negative rate", func(c *Config) { c.API.RequestsPerSecond = -1 }, "api.requests_per_second", true},
		{"inactivity disabled", func(c *Config) { c.API.InactivityTimeoutSecs = 0 }, "", false},
		{"inactivity negative", func(c *Config) { c.API.InactivityTimeoutSecs = -5 }, "api.inactivity_timeout_secs", true},
		{"short username", func(c *Config) { c.User.Username = "ab" }, "user.username", true},
		{"three rune username", func(c *Config) { c.User.Username = "ñoé" }, "", false},
		{"zero daily limit", func(c *Config) { c.Quota.DailyLimit = 0 }, "quota.daily_limit", true},
		{"invalid theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme", true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var errs ValidateErrors
			if !errors.As(err, &errs) {
				t.Fatalf("Validate() returned %T, want ValidateErrors", err)
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.UI.Theme = "neon"
	cfg.Quota.DailyLimit = -1

	var errs ValidateErrors
	if !errors.As(cfg.Validate(), &errs) {
		t.Fatal("expected ValidateErrors")
	}
	if len(errs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(errs), errs)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("api.base_url")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "http://localhost:8000" {
		t.Errorf("Get('api.base_url') = %v", val)
	}

	if err := cfg.Set("api.streaming", "false"); err != nil {
		t.Fatalf("Set(bool) error = %v", err)
	}
	if cfg.API.Streaming {
		t.Error("Set('api.streaming', 'false') did not apply")
	}

	if err := cfg.Set("api.requests_per_second", "2.5"); err != nil {
		t.Fatalf("Set(float) error = %v", err)
	}
	if cfg.API.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v", cfg.API.RequestsPerSecond)
	}

	if err := cfg.Set("quota.daily_limit", 25); err != nil {
		t.Fatalf("Set(int) error = %v", err)
	}
	if cfg.Quota.DailyLimit != 25 {
		t.Errorf("DailyLimit = %d", cfg.Quota.DailyLimit)
	}

	if err := cfg.Set("user.default-persona", "meher"); err != nil {
		t.Fatalf("Set(kebab) error = %v", err)
	}
	if cfg.User.DefaultPersona != "meher" {
		t.Errorf("DefaultPersona = %q", cfg.User.DefaultPersona)
	}

	if _, err := cfg.Get("invalid.key"); err == nil {
		t.Error("Get() with invalid key should return error")
	}
	if err := cfg.Set("api.timeout_secs", "soon"); err == nil {
		t.Error("Set() with non-integer should return error")
	}
	if err := cfg.Set("ui.markdown", "maybe"); err == nil {
		t.Error("Set() with non-boolean should return error")
	}
	if err := cfg.Set("api", "x"); err == nil {
		t.Error("Set() on a section should return error")
	}
	if _, err := cfg.Get(""); err == nil {
		t.Error("Get('') should return error")
	}
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	clone := original.Clone()
	clone.API.BaseURL = "http://other:9000"

	if original.API.BaseURL == clone.API.BaseURL {
		t.Error("Clone should create an independent copy")
	}
}

func TestMigrate_Normalizes(t *testing.T) {
	cfg := Default()
	cfg.Version = ""
	cfg.API.BaseURL = " http://localhost:8000/ "
	cfg.UI.Theme = "Light"
	cfg.Logging.Level = "WARNING"
	cfg.User.DefaultPersona = " Kabir "

	if err := cfg.Migrate(); err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.UI.Theme != "light" || cfg.Logging.Level != "warn" || cfg.User.DefaultPersona != "kabir" {
		t.Errorf("not normalized: %+v %+v %+v", cfg.UI, cfg.Logging, cfg.User)
	}
	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %q", cfg.Version)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PERSONACHAT_API_URL", "http://backend:8080")
	t.Setenv("PERSONACHAT_USERNAME", "asha")
	t.Setenv("PERSONACHAT_PERSONA", "meher")
	t.Setenv("PERSONACHAT_STREAMING", "0")
	t.Setenv("PERSONACHAT_LOG_LEVEL", "debug")
	t.Setenv("PERSONACHAT_LOG_FILE", "/tmp/pc.log")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.BaseURL != "http://backend:8080" || cfg.User.Username != "asha" || cfg.User.DefaultPersona != "meher" {
		t.Errorf("overrides not applied: %+v %+v", cfg.API, cfg.User)
	}
	if cfg.API.Streaming {
		t.Error("PERSONACHAT_STREAMING=0 should disable streaming")
	}
	if cfg.Logging.Level != "debug" || cfg.LogFile() != "/tmp/pc.log" {
		t.Errorf("logging overrides not applied: %+v", cfg.Logging)
	}
}

func TestApplyEnvOverrides_BadBoolIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("PERSONACHAT_STREAMING", "sometimes")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if !cfg.API.Streaming {
		t.Error("unparseable PERSONACHAT_STREAMING should leave the default")
	}
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestSaveTOML_LoadRoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.User.Username = "asha"
	cfg.User.DefaultPersona = "kabir"
	cfg.API.Streaming = false
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# personachat configuration file") {
		t.Error("missing header comment")
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0600 {
			t.Errorf("Mode = %v, want 0600", info.Mode().Perm())
		}
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.User.Username != "asha" || loaded.User.DefaultPersona != "kabir" || loaded.API.Streaming {
		t.Errorf("round trip lost values: %+v %+v", loaded.User, loaded.API)
	}
	if active, _ := ActivePath(); active != path {
		t.Errorf("ActivePath = %q, want %q", active, path)
	}
}

func TestLoadTOML_PartialKeepsDefaults(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "partial.toml")
	content := "[user]\nusername = \"asha\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.User.Username != "asha" {
		t.Errorf("Username = %q", cfg.User.Username)
	}
	if !cfg.API.Streaming || cfg.Quota.DailyLimit != 50 {
		t.Error("keys absent from the file should keep their defaults")
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.UI.Theme = "light"
	if err := SaveJSON(cfg, filepath.Join(dir, "config.json")); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("Theme = %q, want light", loaded.UI.Theme)
	}
}

func TestLoad_BrokenFileFallsBackWithError(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[api\nbroken"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err == nil {
		t.Error("expected a load error for a broken file")
	}
	if cfg == nil || cfg.API.BaseURL != Default().API.BaseURL {
		t.Error("defaults should still be returned")
	}
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected validation error")
	}
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	err := WatchWithDebounce(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			got <- cfg
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	updated := Default()
	updated.UI.Theme = "light"
	if err := SaveTOML(updated, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.UI.Theme != "light" {
			t.Errorf("reloaded Theme = %q, want light", cfg.UI.Theme)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 4)
	if err := WatchWithDebounce(ctx, path, 20*time.Millisecond, func(*Config, error) {
		calls <- struct{}{}
	}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-calls:
		t.Error("unrelated file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}
