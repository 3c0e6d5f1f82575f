// Package mcp provides the clicheck MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/deixis/clicheck"
	"github.com/deixis/clicheck/internal/metrics"
	"github.com/deixis/clicheck/internal/report"
	"github.com/deixis/clicheck/internal/suite"
	"github.com/deixis/clicheck/pkg/config"
	"github.com/deixis/clicheck/pkg/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu        sync.RWMutex
	engine    *suite.Engine
	workspace string

	store  report.Store
	logger *slog.Logger
}

// NewServer creates an MCP server with all clicheck tools registered.
// Relative suite paths resolve against workspace until the client
// announces a root.
func NewServer(cfg *config.Resolver, r *runner.Runner, store report.Store, workspace string, opts ...ServerOption) *mcp.Server {
	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	if so.metrics != nil {
		so.metrics.Instrument(r)
	}

	h := &handler{
		engine: &suite.Engine{
			Config:  cfg,
			Runner:  r,
			Metrics: so.metrics,
			Logger:  so.logger,
		},
		workspace: workspace,
		store:     store,
		logger:    so.logger,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "clicheck", Version: clicheck.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cli_exec",
		Description: `Run one command of a CLI under test and check its result.

The executable is a configured binary name (resolved through <NAME>_CLI_PATH or .clicheck.yaml)
or an explicit path. Without expectations the command must exit 0. Returns the exit code and
both output streams; failed expectations include a full diagnostic. Results are stored for
drill-down via cli_inspect.`,
	}, h.execHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cli_suite",
		Description: `Run a YAML test suite file and report pass/fail per case.

Use filter (a glob over case names) to run a subset. Integration cases are skipped on CI
unless RUN_INTEGRATION_TESTS=true. Results are stored for drill-down via cli_inspect.`,
	}, h.suiteHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cli_inspect",
		Description: `Drill into a case from a cli_exec or cli_suite run.

Use the run_id and a case name from the tool output. Returns the command line, exit code,
every failed expectation and the complete stdout and stderr.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cli_config",
		Description: "Show the resolved test configuration: environment, binaries, regions, data paths and limits.",
	}, h.configHandler)

	return s
}

// ServerOption configures the clicheck MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// WithMetrics records executions and assertions on m.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(o *serverOptions) {
		o.metrics = m
	}
}

// WithLogger sets the logger used by tool handlers.
func WithLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = l
	}
}

// updateWorkspaceFromRoots queries the client for MCP roots and reloads the
// configuration from the first file root. This is called during session
// initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.log().Warn("ignoring workspace root", "root", workspace, "error", err)
		return
	}
	cfg := config.NewResolver(loaded.Config, nil)

	h.mu.Lock()
	defer h.mu.Unlock()

	// Swap in a fresh runner so in-flight calls keep the one they started with.
	prev := h.engine.Runner
	r := cfg.Runner(prev.Logger)
	r.OnResult = prev.OnResult
	h.engine = &suite.Engine{
		Config:  cfg,
		Runner:  r,
		Metrics: h.engine.Metrics,
		Logger:  h.engine.Logger,
	}
	h.workspace = workspace
}

// snapshot returns the current engine and workspace.
func (h *handler) snapshot() (*suite.Engine, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine, h.workspace
}

// resolvePath makes p absolute against the workspace.
func (h *handler) resolvePath(workspace, p string) string {
	if p == "" || filepath.IsAbs(p) || workspace == "" {
		return p
	}
	return filepath.Join(workspace, p)
}

// resolveExecutable is resolvePath for executables. Bare names are left
// for PATH lookup.
func (h *handler) resolveExecutable(workspace, p string) string {
	if !strings.ContainsRune(p, filepath.Separator) {
		return p
	}
	return h.resolvePath(workspace, p)
}

func (h *handler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.New(slog.DiscardHandler)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
