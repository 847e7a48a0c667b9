package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ca-srg/leakscope/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show invocation counts and per-source outcomes",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadAppConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := initStats(cfg, nil); err != nil {
		return fmt.Errorf("failed to open stats store: %w", err)
	}
	defer metrics.Close()

	store := metrics.Current()
	totals, err := store.Totals(ctx)
	if err != nil {
		return err
	}
	outcomes, err := store.SourceOutcomes(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Invocations:")
	for _, mode := range metrics.Modes() {
		fmt.Fprintf(out, "  %-8s %d\n", mode, totals[mode])
	}

	fmt.Fprintln(out, "\nSource outcomes:")
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "  (none recorded)")
		return nil
	}
	for _, o := range outcomes {
		fmt.Fprintf(out, "  %-24s %-8s %d\n", o.Source, o.State, o.Count)
	}
	return nil
}
