// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/config"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/turn"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name: "flag with value",
			args: []string{"ask", "-p", "kabir", "hi"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "kabir", p.Flag("p", "persona"))
				assert.Equal(t, []string{"ask", "hi"}, p.PositionalArgs())
			},
		},
		{
			name: "flag with equals",
			args: []string{"--api=http://localhost:9000"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "http://localhost:9000", p.Flag("api"))
			},
		},
		{
			name: "declared bool does not swallow the command",
			args: []string{"--json", "personas"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("json"))
				assert.Equal(t, "personas", p.Positional(0))
			},
		},
		{
			name: "bool with explicit value",
			args: []string{"--json=false"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.False(t, p.BoolFlag("json"))
				assert.True(t, p.HasFlag("json"))
			},
		},
		{
			name: "double dash ends flags",
			args: []string{"ask", "--", "-p", "is not a flag"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "", p.Flag("p"))
				assert.Equal(t, 3, p.PositionalCount())
				assert.Equal(t, "-p", p.Positional(1))
			},
		},
		{
			name: "undeclared trailing flag is boolean",
			args: []string{"stats", "--debug"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("debug"))
			},
		},
		{
			name: "int flag",
			args: []string{"--limit", "7"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, 7, p.FlagIntOrDefault(1, "limit"))
				assert.Equal(t, 3, p.FlagIntOrDefault(3, "missing"))
			},
		},
		{
			name: "lone dash is positional",
			args: []string{"ask", "-"},
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "-", p.Positional(1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, "json")
			tt.validate(t, p)
		})
	}
}

// =============================================================================
// PARSE TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Args
	}{
		{"no args runs the tui", nil, Args{Command: CmdTUI}},
		{"user flag only", []string{"-u", "alice"}, Args{Command: CmdTUI, User: "alice"}},
		{"ask joins words", []string{"ask", "-p", "kabir", "what", "now?"},
			Args{Command: CmdAsk, Persona: "kabir", Query: "what now?"}},
		{"json before command", []string{"--json", "personas"}, Args{Command: CmdPersonas, JSON: true}},
		{"history", []string{"history", "s1"}, Args{Command: CmdHistory, SessionID: "s1"}},
		{"config defaults to show", []string{"config"}, Args{Command: CmdConfig, Subcommand: "show"}},
		{"config set", []string{"config", "set", "ui.theme", "light"},
			Args{Command: CmdConfig, Subcommand: "set", ConfigKey: "ui.theme", ConfigValue: "light"}},
		{"no-stream and verbose", []string{"chat", "--no-stream", "-v"},
			Args{Command: CmdChat, NoStream: true, Verbose: true}},
		{"help flag", []string{"stats", "--help"}, Args{Command: CmdHelp}},
		{"version flag", []string{"--version"}, Args{Command: CmdVersion}},
		{"case-insensitive command", []string{"STATS"}, Args{Command: CmdStats}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.argv)
			require.NoError(t, err)
			got.Raw = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]string{"frobnicate"})
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = Parse([]string{"sessions", "--json", "--yaml"})
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestParse_HistoryExport(t *testing.T) {
	args, err := Parse([]string{"history", "s1", "--export", "html", "-o", "out.html"})
	require.NoError(t, err)
	assert.Equal(t, "s1", args.SessionID)
	assert.Equal(t, "html", args.Export)
	assert.Equal(t, "out.html", args.Output)

	args, err = Parse([]string{"history", "s1", "--export", "md", "-o", "-"})
	require.NoError(t, err)
	assert.Equal(t, "-", args.Output)
	assert.Equal(t, "s1", args.SessionID)

	args, err = Parse([]string{"history", "s1", "--export"})
	require.NoError(t, err)
	assert.Equal(t, "md", args.Export)

	_, err = Parse([]string{"history", "s1", "-o", "out.md"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestNewClient_UserAgentCarriesVersion(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "1.2.3"

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		io.WriteString(w, `{"message":"ok"}`)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	_, err := NewClient(cfg, zerolog.Nop()).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "personachat/1.2.3", got)
}

func TestArgs_Format(t *testing.T) {
	assert.Equal(t, FormatText, Args{}.Format())
	assert.Equal(t, FormatJSON, Args{JSON: true}.Format())
	assert.Equal(t, FormatYAML, Args{YAML: true}.Format())
	assert.Equal(t, "yaml", FormatYAML.String())
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "ask", CmdAsk.String())
	assert.Equal(t, "tui", CmdTUI.String())
	assert.Equal(t, "unknown", Command(99).String())
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"quota sentinel", fmt.Errorf("send: %w", turn.ErrQuotaExceeded), ExitQuotaError},
		{"quota failure", &turn.Failure{Class: turn.ClassQuota, Err: turn.ErrQuotaExceeded}, ExitQuotaError},
		{"transport failure", &turn.Failure{Class: turn.ClassTransport, Err: turn.ErrStreamClosed}, ExitTransportError},
		{"transport sentinel", fmt.Errorf("%w: dial tcp", turn.ErrTransport), ExitTransportError},
		{"server error", fmt.Errorf("load: %w", api.ErrServer), ExitTransportError},
		{"validation", ErrMissingArgument("user", "personachat stats -u alice"), ExitUsageError},
		{"unknown persona", fmt.Errorf("%w: \"zed\"", persona.ErrUnknown), ExitUsageError},
		{"short username", session.ErrUsernameTooShort, ExitUsageError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "ask", &turn.Failure{Class: turn.ClassQuota, Err: turn.ErrQuotaExceeded}, FormatText)
	assert.Contains(t, buf.String(), turn.MessageQuota)

	buf.Reset()
	DisplayError(&buf, "history", &NotFoundError{Resource: "session", ID: "zz"}, FormatJSON)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "not_found", resp["error_type"])
	assert.Equal(t, "session not found: zz", resp["error"])
}

// =============================================================================
// OUTPUT TESTS (json_output.go)
// =============================================================================

func TestEmit(t *testing.T) {
	data := []PersonaEntry{{Key: "kabir", Name: "Kabir", Age: 16}}

	var buf bytes.Buffer
	require.NoError(t, Emit(&buf, FormatJSON, NewResponse("personas", data)))
	var j struct {
		Success bool           `json:"success"`
		Data    []PersonaEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &j))
	assert.True(t, j.Success)
	assert.Equal(t, data, j.Data)

	buf.Reset()
	require.NoError(t, Emit(&buf, FormatYAML, NewResponse("personas", data)))
	var y struct {
		Command string         `yaml:"command"`
		Data    []PersonaEntry `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &y))
	assert.Equal(t, "personas", y.Command)
	assert.Equal(t, data, y.Data)

	assert.Error(t, Emit(&buf, FormatText, data))
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

// backend is an httptest server speaking the chat service API.
type backend struct {
	chatEvents []string
	chatStatus int
	chats      []string
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"Persona Chatbot API is running"}`)
	})
	mux.HandleFunc("/personas", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"kabir": {"name": "Kabir", "age": 16, "description": "Gamer and meme lord", "personality": "Chill"},
			"mira": {"name": "Mira", "age": 17, "description": "Poet", "personality": "Dreamy"}
		}`)
	})
	mux.HandleFunc("/persona/select", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"session_id":"s1","persona":"kabir","message":"ok"}`)
	})
	mux.HandleFunc("/user/alice/stats", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"remaining_messages":30,"daily_limit":50}`)
	})
	mux.HandleFunc("/user/alice/sessions", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"sessions":[{"id":"s1","user_id":"u1","persona":"kabir","is_active":true,
			"session_start":"2025-01-02T03:04:05Z"}],"total_sessions":1}`)
	})
	mux.HandleFunc("/session/s1/conversations", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"conversations":[{"id":"c1","session_id":"s1","persona":"kabir",
			"message":"yo","response":"sup","token_count":9}],"total_messages":1}`)
	})
	mux.HandleFunc("/session/missing/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Session not found"}`)
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		b.chats = append(b.chats, r.URL.Query().Get("message"))
		if b.chatStatus != 0 {
			w.WriteHeader(b.chatStatus)
			io.WriteString(w, `{"detail":"Daily message limit exceeded"}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range b.chatEvents {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
	})
	return mux
}

var helloEvents = []string{
	`{"type":"chunk","response":"Hel"}`,
	`{"type":"chunk","response":"lo!"}`,
	`{"type":"complete","remaining_messages":41,"session_id":"s1"}`,
}

type testEnv struct {
	*Env
	out, errOut *bytes.Buffer
}

func newTestEnv(t *testing.T, b *backend) *testEnv {
	t.Helper()
	t.Setenv("PERSONACHAT_HOME", t.TempDir())
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.API.MaxRetries = 1
	cfg.User.Username = "alice"
	cfg.User.DefaultPersona = "kabir"
	cfg.UI.Markdown = false

	log := zerolog.Nop()
	te := &testEnv{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	te.Env = &Env{
		Config: cfg,
		Client: NewClient(cfg, log),
		Logger: log,
		In:     strings.NewReader(""),
		Out:    te.out,
		Err:    te.errOut,
	}
	return te
}

func TestHandleAsk_StreamsReply(t *testing.T) {
	b := &backend{chatEvents: helloEvents}
	env := newTestEnv(t, b)

	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi", Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, "Hello!\n", env.out.String())
	assert.Equal(t, []string{"hi"}, b.chats)
}

func TestHandleAsk_Header(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: helloEvents})

	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi"})
	require.NoError(t, err)
	assert.Contains(t, env.out.String(), "Kabir")
	assert.True(t, strings.HasSuffix(env.out.String(), "Hello!\n"))
}

func TestHandleAsk_ReadsStdin(t *testing.T) {
	b := &backend{chatEvents: helloEvents}
	env := newTestEnv(t, b)
	env.In = strings.NewReader("  piped message \n")

	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"piped message"}, b.chats)
}

func TestHandleAsk_JSON(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: helloEvents})

	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi", JSON: true})
	require.NoError(t, err)

	var resp struct {
		Success bool      `json:"success"`
		Data    AskResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Hello!", resp.Data.Response)
	assert.Equal(t, "kabir", resp.Data.Persona)
	require.NotNil(t, resp.Data.RemainingMessages)
	assert.Equal(t, 41, *resp.Data.RemainingMessages)
}

func TestHandleAsk_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t, &backend{chatStatus: http.StatusTooManyRequests})

	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi", Quiet: true})
	require.Error(t, err)
	assert.Equal(t, ExitQuotaError, GetExitCode(err))
	assert.Equal(t, turn.MessageQuota, userFacing(err))
}

func TestHandleAsk_StreamFailure(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: []string{`{"type":"chunk","response":"par"}`}})

	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi", Quiet: true})
	require.Error(t, err)
	assert.Equal(t, ExitTransportError, GetExitCode(err))
	assert.Equal(t, turn.MessageTrouble, userFacing(err))
}

func TestHandleAsk_LowQuotaWarning(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: []string{
		`{"type":"chunk","response":"ok"}`,
		`{"type":"complete","remaining_messages":2}`,
	}})

	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi"})
	require.NoError(t, err)
	assert.Contains(t, env.errOut.String(), "Only 2 messages left today!")
}

func TestHandleAsk_MissingInputs(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: helloEvents})
	env.Config.User.Username = ""
	err := HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	env = newTestEnv(t, &backend{chatEvents: helloEvents})
	env.Config.User.DefaultPersona = "zed"
	err = HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk, Query: "hi"})
	assert.ErrorIs(t, err, persona.ErrUnknown)

	env = newTestEnv(t, &backend{chatEvents: helloEvents})
	err = HandleAsk(context.Background(), env.Env, Args{Command: CmdAsk})
	assert.ErrorIs(t, err, api.ErrEmptyMessage)
}

func TestHandlePersonas(t *testing.T) {
	env := newTestEnv(t, &backend{})

	require.NoError(t, HandlePersonas(context.Background(), env.Env, Args{}))
	out := env.out.String()
	assert.Contains(t, out, "Kabir")
	assert.Contains(t, out, "(mira)")
	assert.Less(t, strings.Index(out, "Kabir"), strings.Index(out, "Mira"))

	env.out.Reset()
	require.NoError(t, HandlePersonas(context.Background(), env.Env, Args{YAML: true}))
	var resp struct {
		Data []PersonaEntry `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal(env.out.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "kabir", resp.Data[0].Key)
}

func TestHandleStats(t *testing.T) {
	env := newTestEnv(t, &backend{})

	require.NoError(t, HandleStats(context.Background(), env.Env, Args{}))
	assert.Contains(t, env.out.String(), "30/50 messages left")

	env.out.Reset()
	require.NoError(t, HandleStats(context.Background(), env.Env, Args{JSON: true}))
	var resp struct {
		Data StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.Equal(t, 30, resp.Data.RemainingMessages)
	assert.Equal(t, 50, resp.Data.DailyLimit)
	assert.Equal(t, "alice", resp.Data.User)
}

func TestHandleSessions(t *testing.T) {
	env := newTestEnv(t, &backend{})

	require.NoError(t, HandleSessions(context.Background(), env.Env, Args{}))
	assert.Contains(t, env.out.String(), "s1")
	assert.Contains(t, env.out.String(), "kabir")

	env.out.Reset()
	require.NoError(t, HandleSessions(context.Background(), env.Env, Args{YAML: true}))
	var resp struct {
		Data []api.SessionInfo `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal(env.out.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].IsActive)
}

func TestHandleHistory(t *testing.T) {
	env := newTestEnv(t, &backend{})

	require.NoError(t, HandleHistory(context.Background(), env.Env, Args{SessionID: "s1"}))
	assert.Contains(t, env.out.String(), "yo")
	assert.Contains(t, env.out.String(), "sup")

	err := HandleHistory(context.Background(), env.Env, Args{SessionID: "missing"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)

	err = HandleHistory(context.Background(), env.Env, Args{})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHandleHistory_Export(t *testing.T) {
	env := newTestEnv(t, &backend{})
	path := filepath.Join(t.TempDir(), "chat.md")

	args := Args{SessionID: "s1", Export: "md", Output: path}
	require.NoError(t, HandleHistory(context.Background(), env.Env, args))
	assert.Contains(t, env.out.String(), "Exported to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# alice chatting with Kabir")
	assert.Contains(t, string(data), "sup")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestHandleHistory_ExportStdout(t *testing.T) {
	env := newTestEnv(t, &backend{})

	args := Args{SessionID: "s1", Export: "html", Output: "-"}
	require.NoError(t, HandleHistory(context.Background(), env.Env, args))
	assert.True(t, strings.HasPrefix(env.out.String(), "<!DOCTYPE html>"))
	assert.Contains(t, env.out.String(), "<p>sup</p>")

	err := HandleHistory(context.Background(), env.Env, Args{SessionID: "s1", Export: "pdf"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHandleConfig_SetAndGet(t *testing.T) {
	env := newTestEnv(t, &backend{})

	err := HandleConfig(env.Env, Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigValue: "light"})
	require.NoError(t, err)

	path, err := config.ActivePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.Getenv("PERSONACHAT_HOME"), "config.toml"), path)
	saved, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "light", saved.UI.Theme)

	// Overrides from the environment are not written back.
	assert.Empty(t, saved.User.Username)

	err = HandleConfig(env.Env, Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigValue: "neon"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	env.out.Reset()
	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "get", ConfigKey: "user.username"}))
	assert.Equal(t, "alice\n", env.out.String())

	err = HandleConfig(env.Env, Args{Subcommand: "get", ConfigKey: "nope.nothing"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHandleConfig_ListAndPath(t *testing.T) {
	env := newTestEnv(t, &backend{})

	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "list", JSON: true}))
	var resp struct {
		Data []ConfigEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.Len(t, resp.Data, len(config.GetAllKeys()))

	env.out.Reset()
	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "path"}))
	assert.Contains(t, env.out.String(), "config.toml")

	err := HandleConfig(env.Env, Args{Subcommand: "explode"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRun_VersionAndHelp(t *testing.T) {
	env := newTestEnv(t, &backend{})

	require.NoError(t, Run(context.Background(), env.Env, Args{Command: CmdVersion}))
	assert.Contains(t, env.out.String(), "personachat "+Version)

	env.out.Reset()
	require.NoError(t, Run(context.Background(), env.Env, Args{Command: CmdHelp}))
	assert.Contains(t, env.out.String(), "USAGE:")

	assert.Error(t, Run(context.Background(), env.Env, Args{Command: CmdTUI}))
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, &backend{})
	require.NoError(t, Run(context.Background(), env.Env, Args{Command: CmdHealth}))
	assert.Contains(t, env.out.String(), "Persona Chatbot API is running")

	down := newTestEnv(t, &backend{})
	down.Client = api.NewClient("http://127.0.0.1:1").WithMaxRetries(1)
	err := HandleHealth(context.Background(), down.Env, Args{})
	require.Error(t, err)
	assert.Equal(t, ExitTransportError, GetExitCode(err))
}

// =============================================================================
// REPL TESTS (chat.go)
// =============================================================================

// scriptedInput feeds the REPL fixed lines, then io.EOF.
type scriptedInput struct {
	lines   []string
	history []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func TestChatREPL_Conversation(t *testing.T) {
	b := &backend{chatEvents: helloEvents}
	env := newTestEnv(t, b)
	in := &scriptedInput{lines: []string{"hey there", "/stats", "/history", "/quit"}}

	r := newChatREPL(env.Env, Args{Command: CmdChat}, in, nil)
	defer r.sess.Close()
	require.NoError(t, r.run(context.Background()))

	out := env.out.String()
	assert.Contains(t, out, persona.Greeting("kabir"))
	assert.Contains(t, out, "Hello!")
	assert.Contains(t, out, "30/50 messages left")
	assert.Contains(t, out, "hey there")
	assert.Equal(t, []string{"hey there"}, b.chats)
	assert.Equal(t, []string{"hey there", "/stats", "/history", "/quit"}, in.history)
}

func TestChatREPL_PromptsForMissingIdentity(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: helloEvents})
	env.Config.User.Username = ""
	env.Config.User.DefaultPersona = ""
	in := &scriptedInput{lines: []string{"al", "alice", "9", "2", "/persona kabir", "/quit"}}

	r := newChatREPL(env.Env, Args{Command: CmdChat, Quiet: true}, in, nil)
	defer r.sess.Close()
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, "alice", r.sess.User())
	p, ok := r.sess.Persona()
	require.True(t, ok)
	assert.Equal(t, "kabir", p.Key)
	assert.Contains(t, env.errOut.String(), "Please enter at least 3 characters.")
	assert.Contains(t, env.errOut.String(), "choose 1 to 2")
	assert.Contains(t, env.out.String(), persona.Greeting("mira"))
}

func TestChatREPL_SlashErrorsAndClear(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: helloEvents})
	in := &scriptedInput{lines: []string{"/persona", "/persona zed", "/bogus", "/clear"}}

	r := newChatREPL(env.Env, Args{Command: CmdChat}, in, nil)
	defer r.sess.Close()
	require.NoError(t, r.run(context.Background()))

	errs := env.errOut.String()
	assert.Contains(t, errs, "usage: /persona <key>")
	assert.Contains(t, errs, "unknown command: /bogus")
	assert.Contains(t, env.out.String(), "[Conversation cleared]")
	assert.Len(t, r.sess.Transcript(), 1)
}

func TestChatREPL_Export(t *testing.T) {
	env := newTestEnv(t, &backend{chatEvents: helloEvents})
	path := filepath.Join(t.TempDir(), "live.md")
	in := &scriptedInput{lines: []string{"hey there", "/export md " + path, "/export pdf"}}

	r := newChatREPL(env.Env, Args{Command: CmdChat, Quiet: true}, in, nil)
	defer r.sess.Close()
	require.NoError(t, r.run(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hey there")
	assert.Contains(t, string(data), "Hello!")
	assert.Contains(t, env.errOut.String(), "unsupported export format")
}

func TestChatREPL_QuotaExhausted(t *testing.T) {
	b := &backend{chatStatus: http.StatusTooManyRequests}
	env := newTestEnv(t, b)
	in := &scriptedInput{lines: []string{"one", "two"}}

	r := newChatREPL(env.Env, Args{Command: CmdChat, Quiet: true}, in, nil)
	defer r.sess.Close()
	require.NoError(t, r.run(context.Background()))

	// The second message never reaches the backend.
	assert.Equal(t, []string{"one"}, b.chats)
	assert.Equal(t, 2, strings.Count(env.out.String(), turn.MessageQuota))
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestVisualLines(t *testing.T) {
	assert.Equal(t, 1, visualLines("", 80))
	assert.Equal(t, 1, visualLines("hello", 80))
	assert.Equal(t, 2, visualLines("hello\nworld", 80))
	assert.Equal(t, 3, visualLines(strings.Repeat("x", 25), 10))
	assert.Equal(t, 2, visualLines("done\n", 80))
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &streamPrinter{w: &buf}
	p.render("Hel")
	p.render("Hello")
	p.render("Hello!")
	assert.Equal(t, "Hello!", buf.String())
	assert.Equal(t, "Hello!", p.text())
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	ApplyOverrides(cfg, Args{User: "bob", Persona: "mira", API: "http://x", NoStream: true, Verbose: true})
	assert.Equal(t, "bob", cfg.User.Username)
	assert.Equal(t, "mira", cfg.User.DefaultPersona)
	assert.Equal(t, "http://x", cfg.API.BaseURL)
	assert.False(t, cfg.API.Streaming)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
