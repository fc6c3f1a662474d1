package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/preflight"
)

func newDoctorCmd(g *globals) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the index can be opened and written",
		Long: `Run preflight checks against the configured index directory:
free disk space, write permission, the open file limit and whether the
index write lock is held by another process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := c.RunAll(cmd.Context(), g.cfg.Index.Path)
			c.PrintResults(results)

			if c.HasCriticalFailures(results) {
				return fmt.Errorf("%s has critical problems", g.cfg.Index.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	return cmd
}
