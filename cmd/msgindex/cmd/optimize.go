package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/output"
)

func newOptimizeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Merge the index into a single segment",
		Long: `Merge all index segments into one and drop deleted documents.
Searches keep working while the merge runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.backend.OptimizeIndex(cmd.Context()); err != nil {
				return err
			}
			st := s.backend.GetStats(cmd.Context())
			out := output.New(cmd.OutOrStdout())
			if st.Available() {
				out.Successf("Optimized: %d documents in %d segment(s)", st.NumDocs, st.NumSegments)
			} else {
				out.Success("Optimized")
			}
			return nil
		},
	}
}
