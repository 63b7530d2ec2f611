// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command enum, argument parsing and usage text.

package cli

import (
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// VERSION INFO
// =============================================================================

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI      Command = iota // Default: full-screen chat
	CmdChat                    // Line-mode chat REPL
	CmdAsk                     // Single message, print the reply
	CmdPersonas                // List personas
	CmdStats                   // Show remaining messages
	CmdSessions                // List the user's sessions
	CmdHistory                 // Show one session's conversation
	CmdHealth                  // Check the backend is reachable
	CmdConfig                  // Show or edit configuration
	CmdVersion                 // Print version
	CmdHelp                    // Print usage
)

var commandNames = map[string]Command{
	"tui":      CmdTUI,
	"chat":     CmdChat,
	"ask":      CmdAsk,
	"personas": CmdPersonas,
	"stats":    CmdStats,
	"sessions": CmdSessions,
	"history":  CmdHistory,
	"health":   CmdHealth,
	"config":   CmdConfig,
	"version":  CmdVersion,
	"help":     CmdHelp,
}

// String returns the command name.
func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}

// boolFlags are the flags that never take a value.
var boolFlags = []string{
	"no-stream", "json", "yaml", "q", "quiet", "v", "verbose", "h", "help", "version",
}

// =============================================================================
// ARGS
// =============================================================================

// Args holds parsed command-line arguments.
type Args struct {
	Command Command

	// Global flags
	User     string // -u, --user
	Persona  string // -p, --persona
	API      string // --api
	NoStream bool   // --no-stream
	JSON     bool   // --json
	YAML     bool   // --yaml
	Quiet    bool   // -q, --quiet
	Verbose  bool   // -v, --verbose

	// Command-specific
	Query       string // ask
	SessionID   string // history
	Export      string // history --export md|html
	Output      string // history -o, --output
	Subcommand  string // config
	ConfigKey   string
	ConfigValue string

	Raw []string
}

// Format returns the output format the flags select.
func (a Args) Format() Format {
	switch {
	case a.JSON:
		return FormatJSON
	case a.YAML:
		return FormatYAML
	default:
		return FormatText
	}
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses argv (without the program name). With no command it
// selects the TUI.
func Parse(argv []string) (Args, error) {
	p := NewArgParser(argv, boolFlags...)
	args := Args{
		User:     p.Flag("u", "user"),
		Persona:  p.Flag("p", "persona"),
		API:      p.Flag("api"),
		NoStream: p.BoolFlag("no-stream"),
		JSON:     p.BoolFlag("json"),
		YAML:     p.BoolFlag("yaml"),
		Quiet:    p.BoolFlag("q", "quiet"),
		Verbose:  p.BoolFlag("v", "verbose"),
		Raw:      argv,
	}

	if args.JSON && args.YAML {
		return args, NewValidationErrorWithExample("format", "", "--json and --yaml are exclusive", "personachat sessions --yaml")
	}

	if p.BoolFlag("h", "help") {
		args.Command = CmdHelp
		return args, nil
	}
	if p.BoolFlag("version") {
		args.Command = CmdVersion
		return args, nil
	}

	name := p.Positional(0)
	if name == "" {
		args.Command = CmdTUI
		return args, nil
	}
	cmd, ok := commandNames[strings.ToLower(name)]
	if !ok {
		return args, &UsageError{Command: name}
	}
	args.Command = cmd
	rest := p.PositionalArgs()[1:]

	switch cmd {
	case CmdAsk:
		args.Query = strings.TrimSpace(strings.Join(rest, " "))
	case CmdHistory:
		if len(rest) > 0 {
			args.SessionID = rest[0]
		}
		args.Export = p.Flag("export")
		if args.Export == "" && p.BoolFlag("export") {
			args.Export = "md"
		}
		args.Output = p.Flag("o", "output")
		if args.Output != "" && args.Export == "" {
			return args, NewValidationErrorWithExample("output", args.Output,
				"--output needs --export", "personachat history s1 --export html -o chat.html")
		}
	case CmdConfig:
		args.Subcommand = "show"
		if len(rest) > 0 {
			args.Subcommand = strings.ToLower(rest[0])
		}
		if len(rest) > 1 {
			args.ConfigKey = rest[1]
		}
		if len(rest) > 2 {
			args.ConfigValue = strings.Join(rest[2:], " ")
		}
	}
	return args, nil
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `personachat - chat with AI personas from the terminal

USAGE:
  personachat [command] [flags]

COMMANDS:
  (none), tui            Full-screen chat
  chat                   Line-mode chat
  ask <message>          Send one message and print the reply (reads stdin if empty)
  personas               List available personas
  stats                  Show messages left today
  sessions               List your chat sessions
  history <session-id>   Show a session's conversation
      --export <md|html> Export it to a file instead
  -o, --output <file>    Export file ("-" for stdout; default: generated name)
  health                 Check the backend is reachable
  config [show|get|set|list|path|reset] [key] [value]
  version                Print version information
  help                   Show this help

FLAGS:
  -u, --user <name>      Username (default: user.username)
  -p, --persona <key>    Persona key or name (default: user.default_persona)
      --api <url>        Backend URL (default: api.base_url)
      --no-stream        Wait for whole replies instead of streaming
      --json             JSON output
      --yaml             YAML output
  -q, --quiet            Only print replies and data
  -v, --verbose          Debug logging to stderr

EXAMPLES:
  personachat -u alice
  personachat ask -p kabir "what should I read next?"
  echo "hi" | personachat ask -u alice -p mira
  personachat sessions --yaml
  personachat history 8f2c --export html
  personachat config set ui.theme light
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "personachat %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
}
