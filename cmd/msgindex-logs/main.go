// Command msgindex-logs prints and follows the msgindex JSON log.
//
//	msgindex-logs                   last 50 entries
//	msgindex-logs -f                follow new entries
//	msgindex-logs --level warn      warnings and errors only
//	msgindex-logs --event mbox_synced
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/config"
	"github.com/Aman-CERP/msgindex/internal/logging"
	"github.com/Aman-CERP/msgindex/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	event   string
	filter  string
	noColor bool
	logFile string
}

func newRootCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "msgindex-logs",
		Short: "View msgindex logs",
		Long: `View and follow the msgindex log (~/.msgindex/logs/msgindex.log, or
$MSGINDEX_HOME/logs/msgindex.log).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runLogs(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.event, "event", "", "Only show this event name")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Regex matched against the raw line")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file path")

	return cmd
}

func runLogs(ctx context.Context, opts logsOptions, out, errOut io.Writer) error {
	path, err := logging.FindLogFile(opts.logFile, config.HomeDir())
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Event:   opts.event,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, out)

	_, _ = fmt.Fprintf(errOut, "Log file: %s\n---\n", path)

	if !opts.follow {
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return err
		}
		viewer.Print(entries)
		return nil
	}

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case e := <-entries:
			_, _ = fmt.Fprintln(out, viewer.FormatEntry(e))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(errOut, "\n---\nStopped.")
			return <-errCh
		}
	}
}
