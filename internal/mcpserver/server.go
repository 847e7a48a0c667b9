package mcpserver

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/record"
)

const implementationName = "leakscope-mcp-server"

// Searcher runs leak searches. *search.Engine satisfies it.
type Searcher interface {
	SearchText(ctx context.Context, text string, opts record.Options) (*record.ResultSet, error)
	Sources() []string
}

// Server exposes the search engine as MCP tools.
type Server struct {
	sdk      *mcp.Server
	searcher Searcher
	logger   *zap.Logger
}

// New creates an MCP server with the leak_search and list_sources tools registered.
func New(searcher Searcher, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		sdk:      mcp.NewServer(&mcp.Implementation{Name: implementationName, Version: version}, nil),
		searcher: searcher,
		logger:   logger,
	}
	s.sdk.AddTool(leakSearchTool(), s.handleLeakSearch)
	s.sdk.AddTool(listSourcesTool(), s.handleListSources)

	logger.Info("mcp server initialized",
		zap.String("version", version),
		zap.Strings("tools", []string{leakSearchToolName, listSourcesToolName}))
	return s
}

// SDK returns the underlying SDK server.
func (s *Server) SDK() *mcp.Server {
	return s.sdk
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.sdk
	}, nil)
}

// RunStdio serves a single client over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.sdk.Run(ctx, &mcp.StdioTransport{})
}
