// personachat - chat with AI personas from the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/personachat/internal/cli"
	"github.com/jeranaias/personachat/internal/config"
	"github.com/jeranaias/personachat/internal/logging"
	"github.com/jeranaias/personachat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	args, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.DisplayError(os.Stderr, "", err, args.Format())
		return cli.GetExitCode(err)
	}

	cfg, loadErr := config.Load()
	if cfg == nil {
		cli.DisplayError(os.Stderr, args.Command.String(), loadErr, args.Format())
		return cli.ExitGeneralError
	}
	cli.ApplyOverrides(cfg, args)

	if args.Command == cli.CmdTUI {
		return runTUI(cfg, loadErr)
	}

	log := logging.NewWithComponent(logging.Config{
		Level:   cfg.Logging.Level,
		Pretty:  true,
		NoColor: !cli.ColorsEnabled(),
		Output:  os.Stderr,
	}, args.Command.String())
	if !args.Verbose && zerolog.WarnLevel > log.GetLevel() {
		log = log.Level(zerolog.WarnLevel)
	}
	if loadErr != nil {
		log.Warn().Err(loadErr).Msg("using default configuration")
	}

	// The chat REPL handles Ctrl+C itself: it stops the reply, not the program.
	sigs := []os.Signal{syscall.SIGTERM}
	if args.Command != cli.CmdChat {
		sigs = append(sigs, os.Interrupt)
	}
	ctx, stop := signal.NotifyContext(context.Background(), sigs...)
	defer stop()

	env := cli.NewEnv(cfg, cli.NewClient(cfg, log), log)
	if err := cli.Run(ctx, env, args); err != nil {
		cli.DisplayError(os.Stderr, args.Command.String(), err, args.Format())
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}

// runTUI starts the full-screen chat. Logs go to a file because the
// terminal belongs to the program.
func runTUI(cfg *config.Config, loadErr error) int {
	logCfg := logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty, NoColor: true}
	var logFile *os.File
	if f, err := logging.OpenFile(cfg.LogFile()); err == nil {
		logFile = f
		logCfg.Output = f
		defer logFile.Close()
	} else {
		logCfg.Level = "off"
	}
	log := logging.NewWithComponent(logCfg, "tui")
	if loadErr != nil {
		log.Warn().Err(loadErr).Msg("using default configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := cli.NewClient(cfg, log)
	sess := cli.NewSession(cfg, client, log, nil)
	defer sess.Close()

	m := chat.New(chat.Options{
		Session:  sess,
		Personas: client,
		Config:   cfg,
		Logger:   log,
		Context:  ctx,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if path, err := config.ActivePath(); err == nil {
		err := config.Watch(ctx, path, func(c *config.Config, err error) {
			p.Send(chat.ConfigReloadedMsg{Config: c, Err: err})
		})
		if err != nil {
			log.Warn().Err(err).Msg("config hot reload disabled")
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return cli.ExitGeneralError
	}
	return cli.ExitSuccess
}
