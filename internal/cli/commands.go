// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - Read-only data commands: personas, stats, sessions, history.

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/quota"
	"github.com/jeranaias/personachat/internal/ui/styles"
	"github.com/jeranaias/personachat/internal/util"
)

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes a non-TUI command.
func Run(ctx context.Context, env *Env, args Args) error {
	switch args.Command {
	case CmdChat:
		return HandleChat(ctx, env, args)
	case CmdAsk:
		return HandleAsk(ctx, env, args)
	case CmdPersonas:
		return HandlePersonas(ctx, env, args)
	case CmdStats:
		return HandleStats(ctx, env, args)
	case CmdSessions:
		return HandleSessions(ctx, env, args)
	case CmdHistory:
		return HandleHistory(ctx, env, args)
	case CmdHealth:
		return HandleHealth(ctx, env, args)
	case CmdConfig:
		return HandleConfig(env, args)
	case CmdVersion:
		return HandleVersion(env, args)
	case CmdHelp:
		PrintUsage(env.Out)
		return nil
	default:
		return fmt.Errorf("command %s has no line-mode handler", args.Command)
	}
}

// =============================================================================
// PERSONAS
// =============================================================================

// PersonaEntry is one persona in machine-readable output.
type PersonaEntry struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Age         int    `json:"age" yaml:"age"`
	Description string `json:"description" yaml:"description"`
	Personality string `json:"personality" yaml:"personality"`
	ChatStyle   string `json:"chat_style,omitempty" yaml:"chat_style,omitempty"`
}

// HandlePersonas lists the personas the backend offers.
func HandlePersonas(ctx context.Context, env *Env, args Args) error {
	catalog, err := env.Client.ListPersonas(ctx)
	if err != nil {
		return WrapError(err, "failed to load personas")
	}

	if format := args.Format(); format != FormatText {
		entries := make([]PersonaEntry, 0, catalog.Len())
		for _, p := range catalog.List() {
			entries = append(entries, PersonaEntry{
				Key:         p.Key,
				Name:        p.Name,
				Age:         p.Age,
				Description: p.Description,
				Personality: p.Personality,
				ChatStyle:   p.ChatStyle,
			})
		}
		return Emit(env.Out, format, NewResponse("personas", entries))
	}

	if catalog.Len() == 0 {
		fmt.Fprintln(env.Out, DimStyle.Render("No personas available."))
		return nil
	}
	if !args.Quiet {
		fmt.Fprintln(env.Out, TitleStyle.Render("Personas"))
	}
	width := GetTerminalWidth() - 24
	for _, p := range catalog.List() {
		fmt.Fprintf(env.Out, "%s %s %s\n", p.Avatar(),
			RenderPersonaName(p.Key, util.PadRight(p.DisplayName(), 10)),
			DimStyle.Render("("+p.Key+")"))
		if p.Description != "" {
			fmt.Fprintf(env.Out, "   %s\n", util.TruncateWidth(p.Description, width))
		}
	}
	return nil
}

// =============================================================================
// STATS
// =============================================================================

// StatsResult is the data of a machine-readable stats response.
type StatsResult struct {
	User              string    `json:"user" yaml:"user"`
	RemainingMessages int       `json:"remaining_messages" yaml:"remaining_messages"`
	DailyLimit        int       `json:"daily_limit" yaml:"daily_limit"`
	Level             string    `json:"level" yaml:"level"`
	ResetsAt          time.Time `json:"resets_at" yaml:"resets_at"`
}

// HandleStats shows how many messages the user has left today.
func HandleStats(ctx context.Context, env *Env, args Args) error {
	user, err := env.resolveUser("stats")
	if err != nil {
		return err
	}
	stats, err := env.Client.Stats(ctx, user)
	if err != nil {
		return WrapError(err, "failed to load stats")
	}

	tracker := quota.NewTracker(env.Config.Quota.DailyLimit)
	tracker.SetLimit(stats.DailyLimit)
	tracker.Update(stats.RemainingMessages)
	resets := quota.NextReset(time.Now())

	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("stats", StatsResult{
			User:              user,
			RemainingMessages: stats.RemainingMessages,
			DailyLimit:        tracker.Limit(),
			Level:             tracker.Level().String(),
			ResetsAt:          resets,
		}))
	}

	percent := 0.0
	if limit := tracker.Limit(); limit > 0 {
		percent = float64(stats.RemainingMessages) / float64(limit) * 100
	}
	fmt.Fprintf(env.Out, "%s %s\n", RenderLabel("User:"), ValueStyle.Render(user))
	fmt.Fprintf(env.Out, "%s %s %s\n", RenderLabel("Today:"),
		RenderQuota(tracker.String(), tracker.Level()), styles.RenderProgressBar(20, percent))
	fmt.Fprintf(env.Out, "%s %s\n", RenderLabel("Resets:"), DimStyle.Render(resets.Format("Mon 15:04")))
	return nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// HandleSessions lists the user's chat sessions.
func HandleSessions(ctx context.Context, env *Env, args Args) error {
	user, err := env.resolveUser("sessions")
	if err != nil {
		return err
	}
	sessions, err := env.Client.Sessions(ctx, user)
	if err != nil {
		return WrapError(err, "failed to load sessions")
	}

	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("sessions", sessions))
	}

	if len(sessions) == 0 {
		fmt.Fprintln(env.Out, DimStyle.Render("No sessions yet."))
		return nil
	}
	if !args.Quiet {
		fmt.Fprintf(env.Out, "%s\n", TitleStyle.Render("Sessions for "+user))
	}
	for _, s := range sessions {
		active := "  "
		if s.IsActive {
			active = SuccessStyle.Render("● ")
		}
		fmt.Fprintf(env.Out, "%s%s  %s  %s  %s\n", active, s.ID,
			util.PadRight(s.Persona, 8),
			formatStamp(s.Started()),
			DimStyle.Render("last "+formatStamp(s.LastActive())))
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

// HandleHistory prints one session's recorded conversation.
func HandleHistory(ctx context.Context, env *Env, args Args) error {
	if args.SessionID == "" {
		return ErrMissingArgument("session-id", "personachat history <session-id>")
	}
	records, err := env.Client.Conversations(ctx, args.SessionID)
	if errors.Is(err, api.ErrNotFound) {
		return &NotFoundError{Resource: "session", ID: args.SessionID}
	}
	if err != nil {
		return WrapError(err, "failed to load history")
	}

	if args.Export != "" {
		return exportHistory(ctx, env, args, records)
	}

	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("history", records))
	}

	if len(records) == 0 {
		fmt.Fprintln(env.Out, DimStyle.Render("No messages in this session."))
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(env.Out, "%s %s %s\n", DimStyle.Render(formatStamp(r.Created())),
			UserPromptStyle.Render("you:"), r.Message)
		fmt.Fprintf(env.Out, "%s %s %s\n\n", DimStyle.Render(formatStamp(r.Created())),
			RenderPersonaName(r.Persona, r.Persona+":"), r.Response)
	}
	return nil
}

// formatStamp formats a backend timestamp, or "-" when it was missing.
func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthResult is the data of a machine-readable health response.
type HealthResult struct {
	URL     string `json:"url" yaml:"url"`
	Message string `json:"message" yaml:"message"`
}

// HandleHealth checks that the backend answers.
func HandleHealth(ctx context.Context, env *Env, args Args) error {
	msg, err := env.Client.Health(ctx)
	if err != nil {
		return WrapError(err, "backend at "+env.Client.BaseURL()+" is not healthy")
	}
	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("health", HealthResult{URL: env.Client.BaseURL(), Message: msg}))
	}
	fmt.Fprintf(env.Out, "%s %s %s\n", SuccessStyle.Render("[OK]"), env.Client.BaseURL(), DimStyle.Render(msg))
	return nil
}

// =============================================================================
// VERSION
// =============================================================================

// VersionInfo is the data of a machine-readable version response.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

// HandleVersion prints version information.
func HandleVersion(env *Env, args Args) error {
	if format := args.Format(); format != FormatText {
		return Emit(env.Out, format, NewResponse("version", VersionInfo{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
		}))
	}
	PrintVersion(env.Out)
	return nil
}
