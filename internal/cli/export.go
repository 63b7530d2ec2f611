// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export.go - Writing conversations to Markdown or HTML files.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/config"
	"github.com/jeranaias/personachat/internal/export"
)

// ExportResult is the data of a machine-readable export response.
type ExportResult struct {
	Path     string `json:"path" yaml:"path"`
	Format   string `json:"format" yaml:"format"`
	Messages int    `json:"messages" yaml:"messages"`
}

// exportOptions derives export options from the configuration.
func exportOptions(cfg *config.Config) *export.Options {
	opts := export.DefaultOptions()
	if cfg != nil && cfg.UI.Theme == "light" {
		opts.Theme = "light"
	}
	return opts
}

// exportHistory writes a session's recorded conversation to a file, or to
// stdout when the output is "-".
func exportHistory(ctx context.Context, env *Env, args Args, records []api.ConversationRecord) error {
	exporter, err := export.ForFormat(args.Export, exportOptions(env.Config))
	if err != nil {
		return NewValidationErrorWithExample("export", args.Export, err.Error(), "personachat history s1 --export md")
	}

	// Display names are cosmetic; fall back to keys when the catalog is unreachable.
	catalog, err := env.Client.ListPersonas(ctx)
	if err != nil {
		env.Logger.Debug().Err(err).Msg("persona catalog unavailable for export")
	}
	conv := export.FromRecords(args.SessionID, env.Config.User.Username, catalog, records)

	return writeExport(env.Out, conv, exporter, args.Output, args.Format(), args.Quiet)
}

// writeExport renders conv and reports where it went.
func writeExport(w io.Writer, conv *export.Conversation, exporter export.Exporter, output string, format Format, quiet bool) error {
	if output == "-" {
		content, err := exporter.Export(conv)
		if err != nil {
			return WrapError(err, "export failed")
		}
		_, err = w.Write(content)
		return err
	}

	path, err := export.WriteFile(conv, exporter, output)
	if err != nil {
		return WrapError(err, "export failed")
	}
	if format != FormatText {
		return Emit(w, format, NewResponse("export", ExportResult{
			Path:     path,
			Format:   exporter.MimeType(),
			Messages: len(conv.Messages),
		}))
	}
	if !quiet {
		fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Exported to"), path)
	}
	return nil
}
