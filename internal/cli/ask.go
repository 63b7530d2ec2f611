// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - The ask command: one message, one reply.
//
// Usage:
//
//	personachat ask -u alice -p kabir "what should I read next?"
//	echo "hello" | personachat ask -u alice -p mira

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/personachat/internal/api"
)

// maxStdinBytes bounds a message read from a pipe. The backend limit is
// far lower; this only stops runaway input.
const maxStdinBytes = 64 * 1024

// AskResult is the data of a machine-readable ask response.
type AskResult struct {
	User              string `json:"user" yaml:"user"`
	Persona           string `json:"persona" yaml:"persona"`
	Message           string `json:"message" yaml:"message"`
	Response          string `json:"response" yaml:"response"`
	RemainingMessages *int   `json:"remaining_messages,omitempty" yaml:"remaining_messages,omitempty"`
	SessionID         string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// HandleAsk sends one message and prints the reply.
func HandleAsk(ctx context.Context, env *Env, args Args) error {
	query, err := env.askQuery(args.Query)
	if err != nil {
		return err
	}

	user, err := env.resolveUser("ask")
	if err != nil {
		return err
	}
	p, _, err := env.resolvePersona(ctx, "ask")
	if err != nil {
		return err
	}

	sess := NewSession(env.Config, env.Client, env.Logger, env.quotaWarner(args.Quiet))
	defer sess.Close()
	if err := sess.SetUser(user); err != nil {
		return err
	}
	if _, err := sess.SelectPersona(ctx, p); err != nil {
		return err
	}

	format := args.Format()
	if format != FormatText {
		out, _, err := runReply(ctx, sess, query, nil, nil)
		if err != nil {
			return err
		}
		if !out.OK() {
			return out.Err
		}
		res := AskResult{
			User:      user,
			Persona:   p.Key,
			Message:   query,
			Response:  out.Text,
			SessionID: out.SessionID,
		}
		if out.HasRemaining {
			n := out.Remaining
			res.RemainingMessages = &n
		}
		return Emit(env.Out, format, NewResponse("ask", res))
	}

	if !args.Quiet {
		fmt.Fprintf(env.Out, "%s %s\n", p.Avatar(), RenderPersonaName(p.Key, p.DisplayName()))
	}
	out, printer, err := runReply(ctx, sess, query, env.Out, nil)
	if err != nil {
		if printer != nil && printer.text() != "" {
			fmt.Fprintln(env.Out)
		}
		return err
	}
	return finishReply(env.Out, printer, out, env.markdown(env.Out))
}

// askQuery returns the message to send: the argument, or stdin when the
// argument is empty or "-" and stdin is not a terminal.
func (e *Env) askQuery(arg string) (string, error) {
	if arg != "" && arg != "-" {
		return arg, nil
	}
	if e.In == nil || e.stdinIsTerminal() {
		return "", ErrMissingArgument("message", `personachat ask "hello there"`)
	}
	data, err := io.ReadAll(io.LimitReader(e.In, maxStdinBytes))
	if err != nil {
		return "", WrapError(err, "failed to read stdin")
	}
	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", api.ErrEmptyMessage
	}
	return query, nil
}
