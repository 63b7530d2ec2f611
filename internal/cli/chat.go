// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat REPL for personachat.
//
// USABILITY: line editing and input history via liner
//
// Usage:
//
//	personachat chat [-u alice] [-p kabir]
//
// Commands inside the REPL:
//
//	/personas           List personas
//	/persona <key>      Switch persona (starts a new conversation)
//	/stats              Show messages left today
//	/history            Show this conversation
//	/export [md|html]   Save this conversation to a file
//	/clear, /c          Clear the conversation
//	/help, /h           Show commands
//	/quit, /q           Exit
//
// Ctrl+C while a reply is streaming stops the reply.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/personachat/internal/config"
	"github.com/jeranaias/personachat/internal/export"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/render"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/turn"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader is the line editor the REPL reads from.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	c.LoadHistory()
	return c
}

// Prompt reads one line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory adds a line to the history.
func (c *ChatCLI) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// SaveHistory persists command history.
// SECURITY: history holds message text; the file is owner-only.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

type chatREPL struct {
	env       *Env
	args      Args
	sess      *session.Session
	catalog   *persona.Catalog
	input     lineReader
	interrupt <-chan os.Signal
	md        *render.Markdown
}

// HandleChat runs the line-mode chat.
func HandleChat(ctx context.Context, env *Env, args Args) error {
	in := NewChatCLI()
	defer in.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	r := newChatREPL(env, args, in, sigCh)
	defer r.sess.Close()
	return r.run(ctx)
}

func newChatREPL(env *Env, args Args, in lineReader, interrupt <-chan os.Signal) *chatREPL {
	return &chatREPL{
		env:       env,
		args:      args,
		sess:      NewSession(env.Config, env.Client, env.Logger, env.quotaWarner(args.Quiet)),
		input:     in,
		interrupt: interrupt,
		md:        env.markdown(env.Out),
	}
}

func (r *chatREPL) run(ctx context.Context) error {
	if ok, err := r.setup(ctx); err != nil || !ok {
		return err
	}

	for {
		text, err := r.input.Prompt(UserPromptStyle.Render(r.sess.User()+"> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.env.Out)
				r.printGoodbye()
				return nil
			}
			return err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		r.input.AppendHistory(text)

		if strings.HasPrefix(text, "/") {
			keepGoing, err := r.handleSlash(ctx, text)
			if err != nil {
				fmt.Fprintf(r.env.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				r.printGoodbye()
				return nil
			}
			continue
		}

		r.send(ctx, text)
	}
}

// setup establishes the user and persona. It returns false when input
// ended before both were chosen.
func (r *chatREPL) setup(ctx context.Context) (bool, error) {
	catalog, err := r.env.Client.ListPersonas(ctx)
	if err != nil {
		return false, WrapError(err, "failed to load personas")
	}
	r.catalog = catalog
	if catalog.Len() == 0 {
		return false, errors.New("the backend offers no personas")
	}

	if !r.args.Quiet {
		fmt.Fprintln(r.env.Out, TitleStyle.Render("personachat"))
		fmt.Fprintln(r.env.Out, RenderSeparator(30))
	}

	name := r.env.Config.User.Username
	for {
		if err := r.sess.SetUser(name); err == nil {
			break
		} else if name != "" {
			fmt.Fprintln(r.env.Err, WarningStyle.Render("Please enter at least 3 characters."))
		}
		name, err = r.input.Prompt("Your name: ")
		if err != nil {
			return false, nil
		}
	}
	if err := r.sess.RefreshStats(ctx); err != nil {
		r.env.Logger.Warn().Err(err).Msg("could not load stats")
	}

	p, err := catalog.Resolve(r.env.Config.User.DefaultPersona)
	if err != nil {
		r.printPersonas()
		for {
			choice, perr := r.input.Prompt("Choose a persona (number or name): ")
			if perr != nil {
				return false, nil
			}
			if p, err = r.pick(choice); err == nil {
				break
			}
			fmt.Fprintln(r.env.Err, WarningStyle.Render(err.Error()))
		}
	}
	if err := r.selectPersona(ctx, p); err != nil {
		return false, err
	}

	if !r.args.Quiet {
		fmt.Fprintln(r.env.Out, DimStyle.Render("Type a message and press Enter. /help for commands."))
	}
	return true, nil
}

// pick resolves a numbered or named choice from the persona list.
func (r *chatREPL) pick(choice string) (persona.Persona, error) {
	choice = strings.TrimSpace(choice)
	if n, err := strconv.Atoi(choice); err == nil {
		list := r.catalog.List()
		if n < 1 || n > len(list) {
			return persona.Persona{}, fmt.Errorf("choose 1 to %d", len(list))
		}
		return list[n-1], nil
	}
	return r.catalog.Resolve(choice)
}

func (r *chatREPL) selectPersona(ctx context.Context, p persona.Persona) error {
	greeting, err := r.sess.SelectPersona(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.env.Out)
	r.printSpeaker(p)
	fmt.Fprintln(r.env.Out, greeting)
	fmt.Fprintln(r.env.Out)
	return nil
}

// send runs one turn and prints the reply or its failure message.
func (r *chatREPL) send(ctx context.Context, text string) {
	p, _ := r.sess.Persona()

	// Drop interrupts delivered while the prompt was up.
	for drained := false; !drained; {
		select {
		case <-r.interrupt:
		default:
			drained = true
		}
	}

	r.printSpeaker(p)
	out, printer, err := runReply(ctx, r.sess, text, r.env.Out, r.interrupt)
	switch {
	case errors.Is(err, ErrReplyStopped):
		fmt.Fprintln(r.env.Out)
		fmt.Fprintln(r.env.Out, WarningStyle.Render("[Reply stopped]"))
	case errors.Is(err, turn.ErrQuotaExceeded):
		fmt.Fprintln(r.env.Out, ErrorStyle.Render(turn.MessageQuota))
	case err != nil:
		fmt.Fprintf(r.env.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
	default:
		var failure *turn.Failure
		if ferr := finishReply(r.env.Out, printer, out, r.md); errors.As(ferr, &failure) {
			fmt.Fprintln(r.env.Out, ErrorStyle.Render(failure.UserMessage()))
		}
	}
	fmt.Fprintln(r.env.Out)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlash processes slash commands.
// Returns (keepGoing, error) where keepGoing=false means exit.
func (r *chatREPL) handleSlash(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	command := strings.ToLower(parts[0])
	rest := strings.Join(parts[1:], " ")

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
	case "/personas":
		r.printPersonas()
	case "/persona", "/p":
		if rest == "" {
			return true, errors.New("usage: /persona <key>")
		}
		p, err := r.catalog.Resolve(rest)
		if err != nil {
			return true, err
		}
		return true, r.selectPersona(ctx, p)
	case "/stats", "/s":
		if err := r.sess.RefreshStats(ctx); err != nil {
			return true, err
		}
		q := r.sess.Quota()
		fmt.Fprintf(r.env.Out, "%s %s\n", RenderLabel("Quota:"), RenderQuota(q.String(), q.Level()))
	case "/history":
		r.printTranscript()
	case "/export", "/e":
		return true, r.exportTranscript(parts[1:])
	case "/clear", "/c":
		r.sess.Clear()
		fmt.Fprintln(r.env.Out, DimStyle.Render("[Conversation cleared]"))
	case "/quit", "/q", "/exit":
		return false, nil
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// exportTranscript saves the live transcript. args is [format] [path].
func (r *chatREPL) exportTranscript(args []string) error {
	format, path := "md", ""
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}
	exporter, err := export.ForFormat(format, exportOptions(r.env.Config))
	if err != nil {
		return err
	}
	p, _ := r.sess.Persona()
	conv := export.FromTranscript(r.sess.User(), p, r.sess.SessionID(), r.sess.Transcript())
	return writeExport(r.env.Out, conv, exporter, path, FormatText, false)
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *chatREPL) printSpeaker(p persona.Persona) {
	fmt.Fprintf(r.env.Out, "%s %s\n", p.Avatar(), RenderPersonaName(p.Key, p.DisplayName()))
}

func (r *chatREPL) printPersonas() {
	current, _ := r.sess.Persona()
	for i, p := range r.catalog.List() {
		marker := "  "
		if p.Key == current.Key {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Fprintf(r.env.Out, "%s%2d. %s %s  %s\n", marker, i+1, p.Avatar(),
			RenderPersonaName(p.Key, p.DisplayName()), DimStyle.Render(p.Preview()))
	}
}

func (r *chatREPL) printHelp() {
	commands := []struct{ cmd, desc string }{
		{"/personas", "List personas"},
		{"/persona <key>", "Switch persona"},
		{"/stats, /s", "Show messages left today"},
		{"/history", "Show this conversation"},
		{"/export [md|html] [file]", "Save this conversation"},
		{"/clear, /c", "Clear the conversation"},
		{"/quit, /q", "Exit chat"},
	}
	fmt.Fprintln(r.env.Out, TitleStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(r.env.Out, "  %-26s %s\n", c.cmd, DimStyle.Render(c.desc))
	}
	fmt.Fprintln(r.env.Out, DimStyle.Render("  Ctrl+C while a reply streams stops it."))
}

func (r *chatREPL) printTranscript() {
	for _, l := range r.sess.Transcript() {
		who := r.sess.User()
		if l.Role == session.RolePersona {
			who = l.Persona
			if p, ok := r.catalog.Get(l.Persona); ok {
				who = p.DisplayName()
			}
		} else if l.Role == session.RoleSystem {
			who = "*"
		}
		text := l.Text
		if l.Canceled {
			text += " " + DimStyle.Render("(stopped)")
		}
		fmt.Fprintf(r.env.Out, "%s %s: %s\n", DimStyle.Render(l.At.Format("15:04")), who, text)
	}
}

func (r *chatREPL) printGoodbye() {
	if r.args.Quiet {
		return
	}
	st := r.sess.Status()
	fmt.Fprintf(r.env.Out, "%s %s, %s\n", DimStyle.Render("Bye!"),
		session.FormatDuration(st.Duration), RenderQuota(st.Quota, st.Level))
}
