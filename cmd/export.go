package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/export"
	"github.com/ca-srg/leakscope/internal/metrics"
	"github.com/ca-srg/leakscope/internal/types"
)

var (
	exportInput  string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert a saved result set (search --json) to CSV",
	Long: `
Read a result set previously written with "leakscope search --json" and write
the spreadsheet-ready CSV export. Use "-" for stdin or stdout. Both paths
accept s3://bucket/key (EXPORT_S3_REGION, EXPORT_S3_ENDPOINT).

Examples:
  leakscope export --input user1.json --output user1.csv
  leakscope search -q user1 --correlate --json | leakscope export > user1.csv
  leakscope export -i s3://cases/user1.json -o s3://cases/user1.csv
`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportInput, "input", "i", "-", "Result set JSON file or s3:// path, - for stdin")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "CSV file or s3:// path to write, - for stdout")
}

// runExport needs no sources, so it skips the full application bootstrap and
// only opens the stats store.
func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, cfgErr := loadAppConfig()
	if cfgErr != nil {
		cfg = &types.Config{}
	}
	log := zap.L()

	in, err := openInput(ctx, cfg, log, exportInput, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	rs, err := export.Decode(in)
	if err != nil {
		return err
	}

	if cfgErr == nil {
		if err := initStats(cfg, log); err == nil {
			defer metrics.Close()
		}
	}
	metrics.RecordInvocation(ctx, metrics.ModeExport)

	if exportOutput == "-" {
		return export.Write(cmd.OutOrStdout(), rs)
	}
	if err := saveCSV(ctx, cfg, log, exportOutput, rs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records to %s\n", rs.Len(), exportOutput)
	return nil
}
