package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/mcp"
)

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index as MCP tools on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing
search_messages, add_message, update_message, delete_message,
rebuild_index, optimize_index and index_stats.

Add it to an MCP client configuration as:
  {"command": "msgindex", "args": ["mcp"]}

Logs go to the log file only; stdout carries the protocol.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{stdioAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := mcp.NewServer(s.backend)
			if err != nil {
				return err
			}
			if s.metrics != nil {
				srv.SetMetrics(s.metrics)
				go func() { _ = s.metrics.Run(ctx) }()
			}
			return srv.Serve(ctx, "stdio")
		},
	}
}
