package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	sourcesCheck   bool
	sourcesTimeout time.Duration
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and optionally check connectivity",
	Long: `
List the sources declared in the sources file in search order. With --check each
source is pinged and the command fails when any source is unreachable.

Examples:
  leakscope sources
  leakscope sources --check --timeout 3s
`,
	RunE: runSources,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesCheck, "check", false, "Ping every source")
	sourcesCmd.Flags().DurationVar(&sourcesTimeout, "timeout", 5*time.Second, "Connectivity check timeout")
}

func runSources(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sources file: %s\n\n", a.cfg.SourcesFile)

	var results map[string]error
	if sourcesCheck {
		checkCtx, cancel := context.WithTimeout(ctx, sourcesTimeout)
		defer cancel()
		results = a.registry.Check(checkCtx)
	}

	failed := 0
	for _, b := range a.registry.Bindings() {
		limit := "default"
		if b.Limit > 0 {
			limit = fmt.Sprint(b.Limit)
		}
		line := fmt.Sprintf("  %-24s limit=%s", b.Name(), limit)
		if sourcesCheck {
			if err := results[b.Name()]; err != nil {
				failed++
				line += fmt.Sprintf("  UNREACHABLE (%v)", err)
			} else {
				line += "  ok"
			}
		}
		fmt.Fprintln(out, line)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources unreachable", failed, a.registry.Len())
	}
	return nil
}
