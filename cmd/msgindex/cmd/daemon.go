package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/daemon"
	"github.com/Aman-CERP/msgindex/internal/output"
)

// Background start polls the socket this often, this many times.
const (
	startPollInterval = 100 * time.Millisecond
	startPollAttempts = 50
	stopTimeout       = 10 * time.Second
)

func newDaemonCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background index daemon",
		Long: `The daemon keeps the index open and owns its write lock. While it
runs, every msgindex command is routed through its socket.`,
	}
	cmd.AddCommand(newDaemonStartCmd(g), newDaemonStopCmd(g), newDaemonStatusCmd(g))
	return cmd
}

func newDaemonStartCmd(g *globals) *cobra.Command {
	var (
		foreground bool
		watch      string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch == "" {
				watch = g.cfg.Watch.MboxPath
			}
			if foreground {
				return runServe(cmd.Context(), g.cfg, watch, cmd.ErrOrStderr())
			}
			return startBackground(cmd, g, watch)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in the foreground")
	cmd.Flags().StringVar(&watch, "watch", "", "mbox file to keep in sync (default: watch.mbox_path)")
	return cmd
}

// startBackground re-executes this binary as a detached foreground daemon
// and waits for its socket to answer.
func startBackground(cmd *cobra.Command, g *globals, watch string) error {
	out := output.New(cmd.OutOrStdout())
	client := daemon.NewClient(daemon.FromConfig(g.cfg))
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	args := []string{"daemon", "start", "--foreground"}
	if g.dir != "" {
		args = append(args, "--dir", g.dir)
	}
	if watch != "" {
		args = append(args, "--watch", watch)
	}

	bg := exec.Command(exe, args...)
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bg.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	// Reap the child and notice an early exit.
	exited := make(chan error, 1)
	go func() { exited <- bg.Wait() }()

	for range startPollAttempts {
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exit status 0")
			}
			return fmt.Errorf("daemon exited during startup: %w (see msgindex-logs)", err)
		case <-time.After(startPollInterval):
		}
		if client.IsRunning() {
			out.Successf("Daemon started (pid %d)", bg.Process.Pid)
			return nil
		}
	}
	return fmt.Errorf("daemon did not answer within %s", startPollInterval*startPollAttempts)
}

func newDaemonStopCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			err := daemon.Stop(daemon.FromConfig(g.cfg), stopTimeout)
			switch {
			case errors.Is(err, daemon.ErrNotRunning):
				out.Status("", "Daemon is not running")
				return nil
			case err != nil:
				return err
			}
			out.Success("Daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			client := daemon.NewClient(daemon.FromConfig(g.cfg))

			st := &daemon.StatusResult{}
			if client.IsRunning() {
				var err error
				if st, err = client.Status(cmd.Context()); err != nil {
					return fmt.Errorf("query daemon status: %w", err)
				}
			}
			if asJSON {
				return out.JSON(st)
			}
			if !st.Running {
				out.Status("", "Daemon is not running")
				out.Status("", "Run 'msgindex daemon start' to start it")
				return nil
			}
			out.Successf("Daemon running (pid %d, up %s)", st.PID, st.Uptime)
			out.Status("", fmt.Sprintf("Index: %s (%s, %d documents)", st.IndexPath, st.IndexState, st.NumDocs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
