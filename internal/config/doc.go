// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for personachat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Backend URL, streaming mode, timeouts and rate limit
//   - UserConfig: Remembered username and default persona
//   - ValidationError: One problem found by Validate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PERSONACHAT_*)
//   - ~/.personachat/config.toml
//   - ~/.personachat/config.json
//   - Built-in defaults
//
// There is no process-wide instance. Load once in main and pass the
// *Config to whatever needs it.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Change a value by key:
//
//	if err := cfg.Set("api.streaming", "false"); err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	err = config.Save(cfg)
//
// Reload on edit:
//
//	err := config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
