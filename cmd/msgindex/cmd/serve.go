package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/msgindex/internal/config"
	"github.com/Aman-CERP/msgindex/internal/daemon"
	"github.com/Aman-CERP/msgindex/internal/logging"
	"github.com/Aman-CERP/msgindex/internal/output"
	"github.com/Aman-CERP/msgindex/internal/watcher"
)

func newServeCmd(g *globals) *cobra.Command {
	var watch string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hold the index open and serve it on the daemon socket",
		Long: `Open the index and serve it to other msgindex commands over a Unix
socket until interrupted. With --watch, the given mbox file is imported
at startup and re-imported (upsert by id) whenever it changes.

This is the same process 'msgindex daemon start' runs in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch == "" {
				watch = g.cfg.Watch.MboxPath
			}
			return runServe(cmd.Context(), g.cfg, watch, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&watch, "watch", "", "mbox file to import and keep in sync (default: watch.mbox_path)")
	return cmd
}

// runServe runs the daemon, the optional mbox sync and the telemetry
// flusher until ctx is cancelled or one of them fails.
func runServe(ctx context.Context, cfg *config.Config, watchPath string, status io.Writer) error {
	dcfg := daemon.FromConfig(cfg)
	if daemon.NewClient(dcfg).IsRunning() {
		return fmt.Errorf("%w on %s", daemon.ErrAlreadyRunning, dcfg.SocketPath)
	}

	s, err := openLocal(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := daemon.NewDaemon(dcfg, daemon.WithHandler(s.svc))
	if err != nil {
		return err
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return d.Start(gctx)
	})
	eg.Go(func() error {
		select {
		case <-d.Ready():
			out := output.New(status)
			out.Successf("Serving %s", s.svc.IndexPath())
			out.Status("", "Socket: "+dcfg.SocketPath)
			out.Status("", "Logs:   "+logging.LogPath(config.HomeDir()))
		case <-gctx.Done():
		}
		return nil
	})
	if s.metrics != nil {
		eg.Go(func() error {
			return s.metrics.Run(gctx)
		})
	}
	if watchPath != "" {
		ms := watcher.NewSync(watchPath, s.svc, watcher.Options{DebounceWindow: cfg.WatchDebounce()})
		ms.ImportOnStart = true
		eg.Go(func() error {
			return ms.Run(gctx)
		})
	}

	err = eg.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		slog.Info("serve_stopped")
		return nil
	}
	return err
}
