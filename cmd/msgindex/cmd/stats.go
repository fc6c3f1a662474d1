package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/output"
	"github.com/Aman-CERP/msgindex/internal/telemetry"
	"github.com/Aman-CERP/msgindex/internal/ui"
)

func newStatsCmd(g *globals) *cobra.Command {
	var asJSON, noColor bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Show document and segment counts of the index. The index is
optimized when it consists of a single segment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			view := ui.StatsView{Backend: s.kind, Stats: s.backend.GetStats(ctx)}
			switch {
			case s.svc != nil:
				view.IndexPath, view.State = s.svc.IndexPath(), s.svc.IndexState()
			case s.client != nil:
				if st, err := s.client.Status(ctx); err == nil {
					view.IndexPath, view.State = st.IndexPath, st.IndexState
				}
			}

			r := ui.NewStatsRenderer(cmd.OutOrStdout(), noColor)
			if asJSON {
				return r.RenderJSON(view)
			}
			return r.Render(view)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	cmd.AddCommand(newStatsQueriesCmd(g))
	return cmd
}

type queriesOptions struct {
	days  int
	limit int
	json  bool
}

func newStatsQueriesCmd(g *globals) *cobra.Command {
	var opts queriesOptions

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Show recorded search telemetry",
		Long: `Show query types, latency buckets, top search terms and queries
that matched nothing, as recorded by searches over the last days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !g.cfg.Telemetry.Enabled {
				output.New(cmd.OutOrStdout()).Warning("Query telemetry is disabled (telemetry.enabled: false)")
				return nil
			}
			st, err := telemetry.OpenSQLiteMetricsStore(g.cfg.Telemetry.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := telemetry.LoadReport(st, opts.days, opts.limit, time.Now())
			if err != nil {
				return err
			}
			if opts.json {
				return output.New(cmd.OutOrStdout()).JSON(rep)
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.days, "days", 7, "Days of history to include")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "Number of terms and zero-result queries to show")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print as JSON")
	return cmd
}

func printReport(w io.Writer, rep telemetry.Report) {
	fmt.Fprintf(w, "Queries %s .. %s: %d\n", rep.From, rep.To, rep.TotalQueries())
	if rep.TotalQueries() == 0 {
		return
	}

	fmt.Fprintln(w, "\nBy type:")
	types := make([]string, 0, len(rep.QueryTypeCounts))
	for t := range rep.QueryTypeCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-12s %d\n", t, rep.QueryTypeCounts[telemetry.QueryType(t)])
	}

	fmt.Fprintln(w, "\nLatency:")
	for _, b := range []telemetry.LatencyBucket{
		telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100,
		telemetry.BucketP500, telemetry.BucketP1000,
	} {
		if n := rep.Latency[b]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", b, n)
		}
	}

	if len(rep.TopTerms) > 0 {
		fmt.Fprintln(w, "\nTop terms:")
		for _, t := range rep.TopTerms {
			fmt.Fprintf(w, "  %-20s %d\n", t.Term, t.Count)
		}
	}
	if len(rep.ZeroResultQueries) > 0 {
		fmt.Fprintln(w, "\nNo results:")
		for _, q := range rep.ZeroResultQueries {
			fmt.Fprintf(w, "  %s\n", q)
		}
	}
}
