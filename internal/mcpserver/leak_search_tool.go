package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/logger"
	"github.com/ca-srg/leakscope/internal/metrics"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/search"
)

const (
	leakSearchToolName  = "leak_search"
	listSourcesToolName = "list_sources"

	maxDeadlineMs = 300000
)

// leakSearchArgs are the leak_search tool arguments.
type leakSearchArgs struct {
	Query      string   `json:"query"`
	Correlate  bool     `json:"correlate,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	DeadlineMs int      `json:"deadline_ms,omitempty"`
}

func leakSearchTool() *mcp.Tool {
	return &mcp.Tool{
		Name: leakSearchToolName,
		Description: "Search every configured breach source for an identifier (email, username, " +
			"phone, domain, or a colon separated credential) and return ranked records. " +
			"Set correlate to group records that belong to the same identity with a risk level.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: fmt.Sprintf("Identifier to look up, at least %d characters", record.MinQueryLength),
				},
				"correlate": {
					Type:        "boolean",
					Description: "Group related records into identities with a risk level",
				},
				"sources": {
					Type:        "array",
					Description: "Restrict the search to these source names (see list_sources)",
					Items:       &jsonschema.Schema{Type: "string"},
				},
				"deadline_ms": {
					Type:        "integer",
					Description: fmt.Sprintf("Overall deadline in milliseconds (0 to %d), 0 for the server default", maxDeadlineMs),
				},
			},
			Required: []string{"query"},
		},
	}
}

func listSourcesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        listSourcesToolName,
		Description: "List the breach sources this server searches",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}
}

func (s *Server) handleLeakSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	metrics.RecordInvocation(ctx, metrics.ModeMCP)

	var args leakSearchArgs
	if req.Params.Arguments != nil {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
		}
	}
	if args.DeadlineMs < 0 || args.DeadlineMs > maxDeadlineMs {
		recordMCPMetrics(ctx, leakSearchToolName, time.Since(start), "invalid_query")
		return errorResult(fmt.Sprintf("deadline_ms must be between 0 and %d", maxDeadlineMs)), nil
	}

	log := s.logger.With(zap.String("tool", leakSearchToolName), logger.Query(args.Query))
	ctx = logger.WithContext(ctx, log)

	rs, err := s.searcher.SearchText(ctx, args.Query, record.Options{
		Correlate:    args.Correlate,
		SourceFilter: args.Sources,
		DeadlineMs:   args.DeadlineMs,
	})
	if err != nil {
		errType := errorType(err)
		recordMCPMetrics(ctx, leakSearchToolName, time.Since(start), errType)
		log.Warn("leak_search failed", zap.String("error_type", errType), zap.Error(err))
		if errType == "canceled" {
			return nil, err
		}
		return errorResult(err.Error()), nil
	}
	metrics.RecordSearch(ctx, rs)

	payload, err := json.Marshal(rs)
	if err != nil {
		recordMCPMetrics(ctx, leakSearchToolName, time.Since(start), "encode")
		return nil, fmt.Errorf("failed to encode result set: %w", err)
	}
	recordMCPMetrics(ctx, leakSearchToolName, time.Since(start), "")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary(rs)},
			&mcp.TextContent{Text: string(payload)},
		},
	}, nil
}

func (s *Server) handleListSources(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	payload, err := json.Marshal(map[string][]string{"sources": s.searcher.Sources()})
	if err != nil {
		return nil, err
	}
	recordMCPMetrics(ctx, listSourcesToolName, time.Since(start), "")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, search.ErrAllSourcesFailed):
		return "all_sources_failed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// summary is a one-line digest placed ahead of the JSON payload.
func summary(rs *record.ResultSet) string {
	var b strings.Builder
	if rs.Correlated {
		fmt.Fprintf(&b, "%d records in %d groups", rs.Len(), len(rs.Groups))
	} else {
		fmt.Fprintf(&b, "%d records", rs.Len())
	}
	if rs.Truncated {
		var degraded []string
		for _, st := range rs.Sources {
			if st.State != record.SourceOK {
				degraded = append(degraded, fmt.Sprintf("%s=%s", st.Name, st.State))
			}
		}
		fmt.Fprintf(&b, " (truncated: %s)", strings.Join(degraded, ", "))
	}
	return b.String()
}
