// Package cmd implements the msgindex command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/config"
	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
	"github.com/Aman-CERP/msgindex/internal/logging"
	"github.com/Aman-CERP/msgindex/pkg/version"
)

// stdioAnnotation marks commands whose stdout carries a protocol; they
// log to file only.
const stdioAnnotation = "msgindex/stdio"

// globals are the persistent flags and the state PersistentPreRunE builds.
type globals struct {
	debug    bool
	noDaemon bool
	dir      string

	cfg            *config.Config
	loggingCleanup func()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "msgindex",
		Short: "Full-text index and search for short messages",
		Long: `msgindex keeps a local full-text index of short messages (sender,
recipients, subject, body, timestamp) and serves it to the command line,
to other processes through a background daemon, and to AI assistants over MCP.

When a daemon is running it owns the index and every command is routed
through it; otherwise commands open the index directly.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			g.teardown()
			return nil
		},
	}
	root.SetVersionTemplate("msgindex {{.Version}}\n")

	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "Debug logging, mirrored to stderr")
	root.PersistentFlags().BoolVar(&g.noDaemon, "no-daemon", false, "Open the index directly even if a daemon is running")
	root.PersistentFlags().StringVar(&g.dir, "dir", "", "Directory to read .msgindex.yaml from (default: current directory)")

	root.AddCommand(
		newAddCmd(g),
		newUpdateCmd(g),
		newDeleteCmd(g),
		newSearchCmd(g),
		newRebuildCmd(g),
		newOptimizeCmd(g),
		newStatsCmd(g),
		newServeCmd(g),
		newDaemonCmd(g),
		newMCPCmd(g),
		newDoctorCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI with SIGINT and SIGTERM cancelling the context.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := NewRootCmd()
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		debug, _ := root.PersistentFlags().GetBool("debug")
		_, _ = fmt.Fprintln(root.ErrOrStderr(), formatError(err, debug, wantsJSON(cmd)))
	}
	return err
}

// formatError renders err with its hint and code, or as a JSON object for
// commands run with --json.
func formatError(err error, debug, asJSON bool) string {
	r := msgerrors.ReportOf(err)
	if asJSON {
		if data, jerr := r.JSON(); jerr == nil {
			return string(data)
		}
	}
	return r.Text(debug)
}

func wantsJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup("json")
	return f != nil && f.Value.String() == "true"
}

func (g *globals) setup(cmd *cobra.Command) error {
	dir, err := g.workDir()
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	g.cfg = cfg

	logCfg := logging.DefaultConfig(config.HomeDir())
	logCfg.Level = cfg.Logging.Level
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	if g.debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	install := logging.Install
	if isStdio(cmd) {
		install = logging.InstallStdioSafe
	}
	cleanup, err := install(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	g.loggingCleanup = cleanup

	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("index", cfg.Index.Path),
		slog.String("version", version.Version))
	return nil
}

func (g *globals) teardown() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

func isStdio(cmd *cobra.Command) bool {
	_, ok := cmd.Annotations[stdioAnnotation]
	return ok
}
