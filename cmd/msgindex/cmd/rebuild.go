package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/daemon"
	"github.com/Aman-CERP/msgindex/internal/mailbox"
	"github.com/Aman-CERP/msgindex/internal/profiling"
	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/store"
	"github.com/Aman-CERP/msgindex/internal/ui"
)

type rebuildOptions struct {
	samples bool
	mbox    string
	append  bool
	plain   bool
	profile string
}

func (o rebuildOptions) validate() error {
	switch {
	case o.samples && o.mbox != "":
		return errors.New("--samples and --mbox are mutually exclusive")
	case !o.samples && o.mbox == "":
		return errors.New("choose a source: --samples or --mbox FILE")
	}
	return nil
}

func newRebuildCmd(g *globals) *cobra.Command {
	var opts rebuildOptions

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the sample messages or an mbox file",
		Long: `Rebuild the index from a message source.

By default the index is recreated and holds only the imported messages.
With --append the messages are upserted by id into the existing index.
mbox entries without recipients, sender or text body are skipped.

Examples:
  msgindex rebuild --samples
  msgindex rebuild --mbox ~/Mail/archive.mbox
  msgindex rebuild --mbox new.mbox --append --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return runRebuild(cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.samples, "samples", false, "Rebuild from the built-in sample messages")
	cmd.Flags().StringVar(&opts.mbox, "mbox", "", "Rebuild from an mbox file")
	cmd.Flags().BoolVar(&opts.append, "append", false, "Upsert into the existing index instead of recreating it")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output even on a terminal")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Write CPU and heap profiles of the rebuild to this directory")
	return cmd
}

func runRebuild(cmd *cobra.Command, g *globals, opts rebuildOptions) error {
	ctx := cmd.Context()

	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	r := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(opts.plain)))
	if err := r.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = r.Stop() }()

	if opts.profile != "" {
		p, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		defer func() {
			if err := p.Stop(); err != nil {
				slog.Warn("profile_failed", slog.String("error", err.Error()))
			}
		}()
	}

	var stats ui.CompletionStats
	if s.client != nil {
		stats, err = rebuildRemote(cmd, s.client, r, opts)
	} else {
		stats, err = rebuildLocal(cmd, s.backend, r, opts)
	}
	if err != nil {
		r.AddError(ui.ErrorEvent{Item: "rebuild", Err: err})
		return err
	}
	r.Complete(stats)
	return nil
}

// rebuildRemote lets the daemon read the source itself so large mbox files
// are not shipped over the socket.
func rebuildRemote(cmd *cobra.Command, c *daemon.Client, r ui.Renderer, opts rebuildOptions) (ui.CompletionStats, error) {
	params := daemon.RebuildParams{Source: daemon.SourceSamples, Append: opts.append}
	if opts.mbox != "" {
		abs, err := filepath.Abs(opts.mbox)
		if err != nil {
			return ui.CompletionStats{}, fmt.Errorf("resolve %s: %w", opts.mbox, err)
		}
		params.Source, params.Path = daemon.SourceMbox, abs
	}

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageCommitting, Message: "rebuilding in daemon"})
	res, err := c.Rebuild(cmd.Context(), params)
	if err != nil {
		return ui.CompletionStats{}, err
	}
	return ui.FromReport(res.RebuildReport, res.MboxSkipped), nil
}

func rebuildLocal(cmd *cobra.Command, b service.Backend, r ui.Renderer, opts rebuildOptions) (ui.CompletionStats, error) {
	ctx := cmd.Context()

	var (
		msgs        []store.Message
		mboxSkipped int
	)
	if opts.mbox != "" {
		r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageReading, Message: "reading " + opts.mbox})
		mb, err := mailbox.ReadFile(ctx, opts.mbox, mailbox.Options{})
		if err != nil {
			return ui.CompletionStats{}, err
		}
		msgs, mboxSkipped = mb.Messages, mb.Skipped
		if mb.Skipped > 0 {
			r.AddError(ui.ErrorEvent{
				Item:   opts.mbox,
				Err:    fmt.Errorf("%d of %d entries skipped", mb.Skipped, mb.Entries),
				IsWarn: true,
			})
		}
	} else {
		r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageReading, Message: "sample messages"})
		msgs = service.SampleMessages(time.Now())
	}

	report, err := b.RebuildIndex(ctx, msgs, !opts.append, ui.ProgressFunc(r))
	if err != nil {
		return ui.CompletionStats{}, err
	}
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageCommitting, Current: len(msgs), Total: len(msgs)})
	return ui.FromReport(report, mboxSkipped), nil
}
