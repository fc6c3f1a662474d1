package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/output"
)

type searchOptions struct {
	limit int
	json  bool
}

func newSearchCmd(g *globals) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the message index",
		Long: `Search messages with the query-string dialect.

Unfielded terms match any of sender, recipients, subject, body and id.
Fields are Sender, Recipient, Subject, Body and Id. AND, OR and NOT
combine terms; quotes group phrases; * and ? are wildcards.

Examples:
  msgindex search budget
  msgindex search 'Sender:alice AND Subject:"quarterly report"'
  msgindex search 'meet* NOT cancelled' --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.backend.Search(cmd.Context(), query, opts.limit)
			slog.Debug("cli_search",
				slog.String("backend", s.kind),
				slog.Int("hits", len(res.Hits)),
				slog.Uint64("total", res.TotalHits))

			out := output.New(cmd.OutOrStdout())
			if opts.json {
				return out.JSON(res)
			}
			out.SearchResult(query, res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of hits (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")
	return cmd
}
