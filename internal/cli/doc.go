// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the line-mode commands of
// personachat. The full-screen chat lives in internal/ui/chat; everything
// else a script or a plain terminal needs is here.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed global and command-specific flags
//   - Env: Config, API client, logger and the standard streams
//   - Response: JSON/YAML envelope for --json and --yaml
//
// # Usage
//
//	args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, "", err, args.Format())
//	    os.Exit(cli.GetExitCode(err))
//	}
//	env := cli.NewEnv(cfg, cli.NewClient(cfg, log), log)
//	err = cli.Run(ctx, env, args)
//
// # Exit Codes
//
//   - 0: success
//   - 1: any other failure
//   - 2: backend unreachable or failed
//   - 3: daily message limit reached
//   - 64: bad usage
package cli
