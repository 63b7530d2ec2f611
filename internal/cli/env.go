// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// env.go - Dependencies shared by the command handlers.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/config"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/quota"
	"github.com/jeranaias/personachat/internal/render"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/turn"
)

// Env carries what every command needs. main builds one per run.
type Env struct {
	Config *config.Config
	Client *api.Client
	Logger zerolog.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// NewEnv returns an Env on the process's standard streams.
func NewEnv(cfg *config.Config, client *api.Client, log zerolog.Logger) *Env {
	return &Env{
		Config: cfg,
		Client: client,
		Logger: log,
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

// ApplyOverrides copies command-line flags over cfg.
func ApplyOverrides(cfg *config.Config, args Args) {
	if args.User != "" {
		cfg.User.Username = args.User
	}
	if args.Persona != "" {
		cfg.User.DefaultPersona = args.Persona
	}
	if args.API != "" {
		cfg.API.BaseURL = args.API
	}
	if args.NoStream {
		cfg.API.Streaming = false
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}
}

// NewClient builds an API client from cfg.
func NewClient(cfg *config.Config, log zerolog.Logger) *api.Client {
	return api.NewClient(cfg.API.BaseURL).
		WithTimeout(cfg.API.Timeout()).
		WithMaxRetries(cfg.API.MaxRetries).
		WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst).
		WithUserAgent(api.DefaultUserAgent + "/" + Version).
		WithLogger(log)
}

// NewSession builds a session on client with options from cfg.
func NewSession(cfg *config.Config, client session.Backend, log zerolog.Logger, onWarn func(int)) *session.Session {
	return session.New(client, session.Options{
		Streaming:  cfg.API.Streaming,
		DailyLimit: cfg.Quota.DailyLimit,
		Turn: turn.Options{
			InactivityTimeout: cfg.API.InactivityTimeout(),
			AcceptLegacy:      cfg.API.AcceptLegacyEvents,
		},
		OnQuotaWarning: onWarn,
		Logger:         log,
	})
}

// =============================================================================
// RESOLUTION HELPERS
// =============================================================================

// resolveUser returns the username from flags or config.
func (e *Env) resolveUser(command string) (string, error) {
	name := strings.TrimSpace(e.Config.User.Username)
	if name == "" {
		return "", ErrMissingArgument("user", fmt.Sprintf("personachat %s -u alice", command))
	}
	return session.NormalizeUsername(name)
}

// resolvePersona looks up the configured persona in the backend catalog.
func (e *Env) resolvePersona(ctx context.Context, command string) (persona.Persona, *persona.Catalog, error) {
	catalog, err := e.Client.ListPersonas(ctx)
	if err != nil {
		return persona.Persona{}, nil, WrapError(err, "failed to load personas")
	}
	key := e.Config.User.DefaultPersona
	if key == "" {
		return persona.Persona{}, catalog, ErrMissingArgument("persona",
			fmt.Sprintf("personachat %s -p %s", command, firstKey(catalog)))
	}
	p, err := catalog.Resolve(key)
	if err != nil {
		return persona.Persona{}, catalog, err
	}
	return p, catalog, nil
}

func firstKey(c *persona.Catalog) string {
	if keys := c.Keys(); len(keys) > 0 {
		return keys[0]
	}
	return "<key>"
}

// markdown returns a renderer for w, disabled when w is not a terminal.
func (e *Env) markdown(w io.Writer) *render.Markdown {
	theme := e.Config.UI.Theme
	if theme == render.ThemeAuto {
		theme = render.ThemeLight
		if DarkBackground() {
			theme = render.ThemeDark
		}
	}
	enabled := e.Config.UI.Markdown && isTerminalWriter(w)
	return render.NewMarkdown(theme, GetTerminalWidth()-2, enabled)
}

// warn prints a quota or status notice to stderr.
func (e *Env) warn(msg string) {
	fmt.Fprintf(e.Err, "%s %s\n", WarningStyle.Render("[!]"), msg)
}

// quotaWarner returns the session callback that prints the low-quota notice.
func (e *Env) quotaWarner(quiet bool) func(int) {
	if quiet {
		return nil
	}
	return func(remaining int) {
		e.warn(quota.WarningText(remaining))
	}
}

// stdinIsTerminal reports whether e.In is an interactive terminal.
func (e *Env) stdinIsTerminal() bool {
	f, ok := e.In.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
