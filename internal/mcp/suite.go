package mcp

import (
	"context"
	"fmt"

	"github.com/deixis/clicheck/internal/suite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type suiteParams struct {
	File     string `json:"file" jsonschema:"path of the suite YAML file, absolute or relative to the workspace"`
	Filter   string `json:"filter,omitempty" jsonschema:"glob over case names, e.g. 'appstack/*'"`
	Parallel int    `json:"parallel,omitempty" jsonschema:"maximum concurrent cases; overrides the suite's parallel setting"`
}

func (h *handler) suiteHandler(ctx context.Context, req *mcp.CallToolRequest, params suiteParams) (*mcp.CallToolResult, any, error) {
	if params.File == "" {
		return errorResult("file is required")
	}
	if params.Parallel < 0 {
		return errorResult("parallel must not be negative")
	}

	engine, workspace := h.snapshot()
	s, err := suite.Load(h.resolvePath(workspace, params.File))
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load suite: %v", err))
	}
	if params.Parallel > 0 {
		s.Parallel = params.Parallel
	}

	run, err := engine.Run(ctx, s, params.Filter)
	if err != nil {
		return errorResult(fmt.Sprintf("suite failed: %v", err))
	}
	h.save(run)

	return textResult(formatSuite(run))
}
