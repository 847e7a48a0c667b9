package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/logger"
	"github.com/ca-srg/leakscope/internal/metrics"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/search"
)

var (
	searchQuery      string
	searchCorrelate  bool
	searchSources    []string
	searchDeadlineMs int
	searchJSON       bool
	searchCSVPath    string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search every configured source for an identifier",
	Long: `
Search all configured breach sources concurrently for an email, username, phone
number, domain, or colon separated credential. Sources that fail or miss the
deadline are reported and the result is marked truncated.

Examples:
  leakscope search -q user1@example.com
  leakscope search -q user1@example.com --correlate
  leakscope search -q "+1 555 0100" --source combolists --deadline-ms 2000
  leakscope search -q user1 --correlate --csv user1.csv
  leakscope search -q user1 --json > user1.json
`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Identifier to search for (required)")
	searchCmd.Flags().BoolVarP(&searchCorrelate, "correlate", "c", false, "Group records into identities with a risk level")
	searchCmd.Flags().StringSliceVarP(&searchSources, "source", "s", nil, "Restrict the search to these sources")
	searchCmd.Flags().IntVar(&searchDeadlineMs, "deadline-ms", 0, "Overall deadline in milliseconds (0 uses SEARCH_DEFAULT_DEADLINE)")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, "Print the result set as JSON")
	searchCmd.Flags().StringVar(&searchCSVPath, "csv", "", "Also export the result set to this CSV file or s3://bucket/key")

	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	metrics.RecordInvocation(ctx, metrics.ModeSearch)
	ctx = logger.WithContext(ctx, a.logger.With(logger.Query(searchQuery)))

	rs, err := a.engine.SearchText(ctx, searchQuery, record.Options{
		Correlate:    searchCorrelate,
		SourceFilter: searchSources,
		DeadlineMs:   searchDeadlineMs,
	})
	if err != nil {
		var failed *search.AllSourcesFailedError
		if errors.As(err, &failed) {
			printSourceFailures(cmd.ErrOrStderr(), failed)
		}
		return fmt.Errorf("search failed: %w", err)
	}
	metrics.RecordSearch(ctx, rs)

	if searchCSVPath != "" {
		metrics.RecordInvocation(ctx, metrics.ModeExport)
		if err := saveCSV(ctx, a.cfg, a.logger, searchCSVPath, rs); err != nil {
			return err
		}
		a.logger.Info("exported result set", zap.String("path", searchCSVPath), zap.Int("records", rs.Len()))
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rs); err != nil {
			return fmt.Errorf("failed to marshal JSON output: %w", err)
		}
		return nil
	}
	printResultSet(out, rs)
	return nil
}

func printSourceFailures(w io.Writer, failed *search.AllSourcesFailedError) {
	fmt.Fprintln(w, "No source produced a result:")
	for _, f := range failed.Failures {
		fmt.Fprintf(w, "  %s: %s (%v)\n", f.Source, f.Type, f.Err)
	}
}

func printResultSet(w io.Writer, rs *record.ResultSet) {
	fmt.Fprintf(w, "\nQuery: %s\n", rs.Query.Text())
	fmt.Fprintf(w, "Result Set: %s\n", rs.ID)
	if rs.Truncated {
		fmt.Fprintln(w, "Partial results: some sources did not complete")
	}

	fmt.Fprintln(w, "\nSources:")
	for _, st := range rs.Sources {
		line := fmt.Sprintf("  %-20s %-8s %4d hits  %v", st.Name, st.State, st.Hits, st.Duration.Round(time.Millisecond))
		if st.Error != "" {
			line += "  " + st.Error
		}
		fmt.Fprintln(w, line)
	}

	if rs.Len() == 0 {
		fmt.Fprintln(w, "\n(no records found)")
		return
	}

	if !rs.Correlated {
		fmt.Fprintf(w, "\nRecords (%d):\n", rs.Len())
		for i, rec := range rs.Records {
			printRecord(w, i+1, rec, "  ")
		}
		return
	}

	fmt.Fprintf(w, "\nIdentities (%d groups, %d records):\n", len(rs.Groups), rs.Len())
	n := 0
	for i, g := range rs.Groups {
		fmt.Fprintf(w, "\n  Group %d  risk=%s  sources=%s\n", i+1, g.Risk, strings.Join(g.Sources, ","))
		if len(g.SharedFields) > 0 {
			shared := make([]string, 0, len(g.SharedFields))
			for f, values := range g.SharedFields {
				shared = append(shared, fmt.Sprintf("%s=%s", f, strings.Join(values, "|")))
			}
			sort.Strings(shared)
			fmt.Fprintf(w, "  Shared: %s\n", strings.Join(shared, ", "))
		}
		for _, rec := range g.Members {
			n++
			printRecord(w, n, rec, "    ")
		}
	}
}

func printRecord(w io.Writer, n int, rec record.Record, indent string) {
	fmt.Fprintf(w, "%s%d. [%s] %s  score=%.4f\n", indent, n, rec.Source, rec.ID, rec.Score)
	for _, f := range rec.FieldKeys() {
		if f == record.FieldContext {
			continue
		}
		fmt.Fprintf(w, "%s   %s: %s\n", indent, f, rec.Get(f))
	}
	for _, h := range rec.Highlights {
		fmt.Fprintf(w, "%s   > %s\n", indent, h)
	}
}
