package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/httpapi"
	"github.com/ca-srg/leakscope/internal/mcpserver"
)

var (
	serveHost    string
	servePort    int
	serveNoMCP   bool
	serveAllowed []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (search, export, health, metrics, MCP)",
	Long: `
Start the HTTP API:

  POST /api/search     run a search (add ?format=csv to receive the export)
  POST /api/export     convert a result set JSON body to CSV
  GET  /api/sources    list configured sources
  GET  /healthz        per-source connectivity
  GET  /metrics        Prometheus metrics
  POST /mcp            MCP streamable HTTP transport (leak_search, list_sources)

Access is limited by HTTP_ALLOWED_IPS and HTTP_API_KEYS when set.

Examples:
  leakscope serve
  leakscope serve --host 0.0.0.0 --port 9000 --allowed-ips 10.0.0.0/8
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides HTTP_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides HTTP_PORT)")
	serveCmd.Flags().BoolVar(&serveNoMCP, "no-mcp", false, "Do not mount the MCP endpoint")
	serveCmd.Flags().StringSliceVar(&serveAllowed, "allowed-ips", nil, "Allowed client IPs or CIDR ranges (overrides HTTP_ALLOWED_IPS)")
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	if serveHost != "" {
		a.cfg.HTTPHost = serveHost
	}
	if servePort != 0 {
		a.cfg.HTTPPort = servePort
	}
	if len(serveAllowed) > 0 {
		a.cfg.HTTPAllowedIPs = serveAllowed
	}

	opts := httpapi.Options{
		Searcher:       a.engine,
		Health:         a.registry,
		APIKeys:        a.cfg.HTTPAPIKeys,
		AllowedIPs:     a.cfg.HTTPAllowedIPs,
		TrustedProxies: a.cfg.HTTPTrustedProxies,
		Logger:         a.logger,
	}
	if !serveNoMCP {
		opts.MCP = mcpserver.New(a.engine, Version, a.logger).Handler()
	}

	router, err := httpapi.NewRouter(opts)
	if err != nil {
		return err
	}

	if len(a.cfg.HTTPAllowedIPs) == 0 && len(a.cfg.HTTPAPIKeys) == 0 {
		a.logger.Warn("HTTP API has no IP allowlist or API keys configured",
			zap.String("host", a.cfg.HTTPHost))
	}

	srv := httpapi.NewServer(a.cfg, router, a.logger)
	return srv.Run(ctx)
}
