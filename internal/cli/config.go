// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The config command.
//
// Usage:
//
//	personachat config [show]         Effective configuration
//	personachat config get <key>      One value
//	personachat config set <key> <v>  Change the config file
//	personachat config list           Every key with its value
//	personachat config path           Config file location
//	personachat config reset          Write defaults

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/personachat/internal/config"
)

// ConfigEntry is one key in machine-readable output.
type ConfigEntry struct {
	Key   string      `json:"key" yaml:"key"`
	Value interface{} `json:"value" yaml:"value"`
}

// HandleConfig dispatches config subcommands.
func HandleConfig(env *Env, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(env, args)
	case "get":
		return configGet(env, args)
	case "set":
		return configSet(env, args)
	case "list":
		return configList(env, args)
	case "path":
		return configPath(env, args)
	case "reset":
		return configReset(env, args)
	default:
		return NewValidationErrorWithExample("config subcommand", args.Subcommand,
			"unknown subcommand", "personachat config [show|get|set|list|path|reset]")
	}
}

// configShow prints the effective configuration, flags and environment
// included.
func configShow(env *Env, args Args) error {
	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("config", env.Config))
	}
	return toml.NewEncoder(env.Out).Encode(env.Config)
}

func configGet(env *Env, args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "personachat config get ui.theme")
	}
	v, err := env.Config.Get(args.ConfigKey)
	if err != nil {
		return NewValidationError("key", args.ConfigKey, err.Error())
	}
	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("config", ConfigEntry{Key: args.ConfigKey, Value: v}))
	}
	fmt.Fprintln(env.Out, v)
	return nil
}

// configSet edits the file on disk. Environment and flag overrides are
// not written back.
func configSet(env *Env, args Args) error {
	if args.ConfigKey == "" || args.ConfigValue == "" {
		return ErrMissingArgument("key and value", "personachat config set ui.theme light")
	}
	path, err := config.ActivePath()
	if err != nil {
		return err
	}
	cfg, err := loadFileOnly(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(args.ConfigKey, args.ConfigValue); err != nil {
		return NewValidationError(args.ConfigKey, args.ConfigValue, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return NewValidationError(args.ConfigKey, args.ConfigValue, err.Error())
	}
	if err := config.SaveToPath(cfg, path); err != nil {
		return WrapError(err, "failed to save config")
	}
	if !args.Quiet {
		fmt.Fprintf(env.Err, "%s %s = %s\n", SuccessStyle.Render("[OK]"), args.ConfigKey, args.ConfigValue)
	}
	return nil
}

func configList(env *Env, args Args) error {
	keys := config.GetAllKeys()
	entries := make([]ConfigEntry, 0, len(keys))
	for _, k := range keys {
		v, err := env.Config.Get(k)
		if err != nil {
			continue
		}
		entries = append(entries, ConfigEntry{Key: k, Value: v})
	}
	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("config", entries))
	}
	for _, e := range entries {
		fmt.Fprintf(env.Out, "%s %v\n", RenderLabel(e.Key), e.Value)
	}
	return nil
}

func configPath(env *Env, args Args) error {
	path, err := config.ActivePath()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("config", map[string]interface{}{
			"path":   path,
			"exists": exists,
		}))
	}
	fmt.Fprintln(env.Out, path)
	if !exists && !args.Quiet {
		fmt.Fprintln(env.Err, DimStyle.Render("(not created yet; defaults are in use)"))
	}
	return nil
}

func configReset(env *Env, args Args) error {
	path, err := config.ActivePath()
	if err != nil {
		return err
	}
	if err := config.SaveToPath(config.Default(), path); err != nil {
		return WrapError(err, "failed to save config")
	}
	if !args.Quiet {
		fmt.Fprintf(env.Err, "%s defaults written to %s\n", SuccessStyle.Render("[OK]"), path)
	}
	return nil
}

// loadFileOnly reads path over the defaults without environment overrides.
// A missing file yields the defaults.
func loadFileOnly(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, WrapError(err, "failed to read "+path)
	}
	cfg.SetDefaults()
	return cfg, nil
}
