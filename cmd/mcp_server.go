package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ca-srg/leakscope/internal/mcpserver"
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Serve the leak_search MCP tools over stdio",
	Long: `
Run an MCP server on stdin/stdout for MCP-compatible clients. The server exposes
two tools: "leak_search" (search and optionally correlate) and "list_sources".
Logs go to stderr. Use "leakscope serve" for the streamable HTTP transport.

Example client configuration:
  {"command": "leakscope", "args": ["mcp-server"]}
`,
	RunE: runMCPServer,
}

func runMCPServer(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return mcpserver.New(a.engine, Version, a.logger).RunStdio(ctx)
}
