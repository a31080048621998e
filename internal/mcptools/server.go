package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the run_action, get_status and
// detect_tools tools registered.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "polydeps",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_action",
		Description: "Run a verb (install, build, run, test, check, clean, reinstall, or a rust extra) for one ecosystem of the project. install and build are skipped when their inputs are unchanged.",
	}, svc.RunAction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Report, per ecosystem, whether install and build are up to date for the configured parameters, and which other parameter sets have been recorded.",
	}, svc.GetStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "detect_tools",
		Description: "Report the package manager or toolchain each ecosystem of the project resolves to, with the marker files that decided it.",
	}, svc.DetectTools)

	return server
}

// RunStdio runs the server on stdio, blocking until stdin is closed or ctx
// is cancelled. Tool output must not go to stdout while it runs.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
