// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for scripting.
//
// Every data command can print a Response envelope as JSON (--json) or
// YAML (--yaml). Human-readable messages go to stderr in those modes.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Format selects how command output is written.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "text"
	}
}

// Response is the envelope for machine-readable command output.
type Response struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success" yaml:"success"`

	// Command is the command that was executed
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Data contains the command-specific response data
	Data interface{} `json:"data" yaml:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error" yaml:"error"`

	// ErrorType classifies failures for scripts ("quota_exceeded", ...)
	ErrorType string `json:"error_type,omitempty" yaml:"error_type,omitempty"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// NewResponse creates a successful response.
func NewResponse(command string, data interface{}) *Response {
	return &Response{
		Success:   true,
		Command:   command,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(command string, err error) *Response {
	msg := err.Error()
	return &Response{
		Success:   false,
		Command:   command,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Emit writes v to w as JSON or YAML. FormatText is rejected; text output
// is written by each command.
func Emit(w io.Writer, format Format, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("emit: unsupported format %s", format)
	}
}
