package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type configParams struct{}

func (h *handler) configHandler(ctx context.Context, req *mcp.CallToolRequest, _ configParams) (*mcp.CallToolResult, any, error) {
	engine, workspace := h.snapshot()

	var b strings.Builder
	if workspace != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", workspace)
	}
	if name, found := engine.Config.Profile(); found {
		fmt.Fprintf(&b, "Profile: %s\n", name)
	}
	fmt.Fprintln(&b)
	for _, e := range engine.Config.Summary() {
		fmt.Fprintf(&b, "%s: %s\n", e.Key, e.Value)
	}
	return textResult(b.String())
}
