package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/msgindex/internal/config"
	"github.com/Aman-CERP/msgindex/internal/daemon"
	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/telemetry"
)

// Backend kinds reported to the user.
const (
	kindDaemon = "daemon"
	kindLocal  = "local"
)

// session is an opened backend plus whatever must be released with it.
type session struct {
	backend service.Backend
	kind    string

	svc     *service.Service
	client  *daemon.Client
	metrics *telemetry.QueryMetrics

	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// pingTimeout bounds the daemon probe so a dead socket does not stall
// every command.
const pingTimeout = 500 * time.Millisecond

// open routes through a live daemon, or opens the index in-process.
func (g *globals) open(ctx context.Context) (*session, error) {
	if !g.noDaemon {
		client := daemon.NewClient(daemon.FromConfig(g.cfg))
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := client.Ping(pctx)
		cancel()
		if err == nil {
			slog.Debug("backend_selected", slog.String("kind", kindDaemon))
			return &session{backend: client, kind: kindDaemon, client: client}, nil
		}
	}
	return openLocal(ctx, g.cfg)
}

// openLocal opens the index at cfg.Index.Path, seeding an empty index with
// the samples when configured. Telemetry failures only disable telemetry.
func openLocal(ctx context.Context, cfg *config.Config) (*session, error) {
	s := &session{kind: kindLocal}

	opts := service.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
	}
	if cfg.Telemetry.Enabled {
		if st, err := telemetry.OpenSQLiteMetricsStore(cfg.Telemetry.DBPath); err != nil {
			slog.Warn("telemetry_disabled",
				slog.String("path", cfg.Telemetry.DBPath),
				slog.String("error", err.Error()))
		} else {
			s.metrics = telemetry.NewQueryMetrics(st)
			s.closers = append(s.closers, st.Close, s.metrics.Close)
			opts.Recorder = s.metrics
		}
	}

	svc := service.New(cfg.Index.Path, opts)
	if err := svc.EnsureIndex(ctx, cfg.Index.SeedSamples); err != nil {
		_ = svc.Close()
		_ = s.Close()
		return nil, err
	}
	s.svc = svc
	s.backend = svc
	s.closers = append(s.closers, svc.Close)

	slog.Debug("backend_selected", slog.String("kind", kindLocal), slog.String("index", cfg.Index.Path))
	return s, nil
}
