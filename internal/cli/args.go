// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing shared by every command.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits raw arguments into flags and positionals.
// It handles:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (declared up front, never consume a value)
//   - "--" ends flag parsing; everything after it is positional
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	known      map[string]bool // names declared boolean
	positional []string
	raw        []string
}

// NewArgParser parses raw. Names in boolNames are boolean flags; any other
// flag takes the next argument as its value when one is present.
//
// Example:
//
//	args := NewArgParser([]string{"ask", "--json", "-p", "kabir", "hi there"}, "json")
//	args.Positional(0)    // "ask"
//	args.Flag("p")        // "kabir"
//	args.BoolFlag("json") // true
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
		known:     make(map[string]bool, len(boolNames)),
		raw:       raw,
	}
	for _, n := range boolNames {
		p.known[strings.TrimLeft(n, "-")] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		// A lone "-" is positional (stdin by convention).
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(name, "="); ok {
			if p.known[k] {
				b, err := strconv.ParseBool(v)
				p.boolFlags[k] = err == nil && b
			} else {
				p.flags[k] = v
			}
			continue
		}

		if p.known[name] {
			p.boolFlags[name] = true
			continue
		}
		if next := i + 1; next < len(raw) && (!strings.HasPrefix(raw[next], "-") || raw[next] == "-") {
			p.flags[name] = raw[i+1]
			i++
			continue
		}
		// Undeclared flag with no value: treat as boolean.
		p.boolFlags[name] = true
	}
	return p
}

// Flag returns the value of a string flag, trying each name in turn.
// Returns "" if none is set.
func (p *ArgParser) Flag(names ...string) string {
	for _, n := range names {
		if v, ok := p.flags[strings.TrimLeft(n, "-")]; ok {
			return v
		}
	}
	return ""
}

// FlagOrDefault returns the flag value or def.
func (p *ArgParser) FlagOrDefault(def string, names ...string) string {
	if v := p.Flag(names...); v != "" {
		return v
	}
	return def
}

// FlagInt returns a flag as an integer.
func (p *ArgParser) FlagInt(names ...string) (int, error) {
	v := p.Flag(names...)
	if v == "" {
		return 0, fmt.Errorf("flag %s not set", strings.Join(names, "/"))
	}
	return strconv.Atoi(v)
}

// FlagIntOrDefault returns a flag as an integer, or def when it is unset
// or not a number.
func (p *ArgParser) FlagIntOrDefault(def int, names ...string) int {
	n, err := p.FlagInt(names...)
	if err != nil {
		return def
	}
	return n
}

// BoolFlag reports whether any of the named boolean flags is set.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, n := range names {
		if p.boolFlags[strings.TrimLeft(n, "-")] {
			return true
		}
	}
	return false
}

// HasFlag reports whether a flag was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, s := p.flags[name]
	_, b := p.boolFlags[name]
	return s || b
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalArgs returns all positional arguments.
func (p *ArgParser) PositionalArgs() []string {
	return append([]string(nil), p.positional...)
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// Raw returns the original arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}
