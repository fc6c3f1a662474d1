// Package service is the operation boundary of the message index. Every
// transport (CLI, daemon, MCP) calls into the index through a Service.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
	"github.com/Aman-CERP/msgindex/internal/search"
	"github.com/Aman-CERP/msgindex/internal/store"
	"github.com/Aman-CERP/msgindex/internal/telemetry"
)

// Search limits applied when no configuration overrides them.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// QueryRecorder receives one event per executed search.
type QueryRecorder interface {
	Record(event telemetry.QueryEvent)
}

// Options configures a Service.
type Options struct {
	DefaultLimit int
	MaxLimit     int

	// Recorder is optional; nil disables query telemetry.
	Recorder QueryRecorder

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = DefaultSearchLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = MaxSearchLimit
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Backend is the operation contract shared by every way of reaching the
// index: a local Service or a client of the daemon that owns it.
type Backend interface {
	AddMessage(ctx context.Context, in NewMessage) (store.Message, error)
	UpdateMessage(ctx context.Context, id string, in NewMessage) (store.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) store.SearchResult
	RebuildIndex(ctx context.Context, msgs []store.Message, recreate bool, progress store.ProgressFunc) (store.RebuildReport, error)
	OptimizeIndex(ctx context.Context) error
	GetStats(ctx context.Context) store.IndexStats
}

var _ Backend = (*Service)(nil)

// Service implements the message operations on top of one Guardian.
type Service struct {
	guardian *store.Guardian
	executor *search.Executor
	opts     Options
}

// New creates a service owning the index at indexPath. The index is not
// opened until EnsureIndex or the first mutation.
func New(indexPath string, opts Options) *Service {
	g := store.NewGuardian(indexPath)
	return &Service{
		guardian: g,
		executor: search.NewExecutor(g),
		opts:     opts.withDefaults(),
	}
}

// Guardian exposes the underlying index owner.
func (s *Service) Guardian() *store.Guardian {
	return s.guardian
}

// EnsureIndex opens the index eagerly. When seed is true and the index holds
// no documents, it is rebuilt from the sample messages. Unavailability is
// returned so startup can abort.
func (s *Service) EnsureIndex(ctx context.Context, seed bool) error {
	if err := s.guardian.Open(); err != nil {
		return err
	}

	stats := s.guardian.Stats()
	if seed && stats.NumDocs == 0 {
		slog.Info("index_seeding", slog.Int("samples", len(SampleMessages(s.now()))))
		_, err := s.RebuildIndex(ctx, SampleMessages(s.now()), true, nil)
		return err
	}

	slog.Info("index_ready",
		slog.Int64("num_docs", stats.NumDocs),
		slog.Int64("max_docs", stats.MaxDocs),
		slog.Int("segments", stats.NumSegments))
	return nil
}

// AddMessage validates in, assigns a fresh id and timestamp, and indexes it.
func (s *Service) AddMessage(ctx context.Context, in NewMessage) (store.Message, error) {
	if err := ctx.Err(); err != nil {
		return store.Message{}, err
	}
	if err := in.Validate(); err != nil {
		return store.Message{}, err
	}

	msg := in.toMessage(s.opts.NewID(), s.now())
	if err := s.guardian.Add(msg); err != nil {
		return store.Message{}, err
	}
	slog.Info("message_added", slog.String("id", msg.ID))
	return msg, nil
}

// UpdateMessage replaces the message stored under id. A missing message is
// created.
func (s *Service) UpdateMessage(ctx context.Context, id string, in NewMessage) (store.Message, error) {
	if err := ctx.Err(); err != nil {
		return store.Message{}, err
	}
	if err := ValidateID(id); err != nil {
		return store.Message{}, err
	}
	if err := in.Validate(); err != nil {
		return store.Message{}, err
	}

	msg := in.toMessage(id, s.now())
	if err := s.guardian.Update(id, msg); err != nil {
		return store.Message{}, err
	}
	slog.Info("message_updated", slog.String("id", id))
	return msg, nil
}

// DeleteMessage removes the message stored under id. Deleting an unknown id
// succeeds.
func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.guardian.Delete(id); err != nil {
		return err
	}
	slog.Info("message_deleted", slog.String("id", id))
	return nil
}

// Search runs query with limit clamped to the configured bounds. Failures
// are reported in the result, never as an error.
func (s *Service) Search(ctx context.Context, query string, limit int) store.SearchResult {
	limit = ClampLimit(limit, s.opts.DefaultLimit, s.opts.MaxLimit)

	start := time.Now()
	res := s.executor.Search(ctx, query, limit)
	if res.Failed() {
		slog.Warn("search_reported_error",
			slog.String("query", query),
			slog.String("error", res.Error))
		return res
	}

	if s.opts.Recorder != nil {
		normalized := search.Normalize(query)
		s.opts.Recorder.Record(telemetry.QueryEvent{
			Query:       normalized,
			QueryType:   telemetry.QueryType(search.Classify(normalized)),
			ResultCount: int(res.TotalHits),
			Latency:     time.Since(start),
			Timestamp:   s.now(),
		})
	}
	return res
}

// RebuildIndex indexes msgs, replacing all existing documents when recreate
// is true. Messages are copied and their timestamps truncated to the stored
// precision.
func (s *Service) RebuildIndex(ctx context.Context, msgs []store.Message, recreate bool, progress store.ProgressFunc) (store.RebuildReport, error) {
	if err := ctx.Err(); err != nil {
		return store.RebuildReport{}, err
	}

	staged := make([]store.Message, len(msgs))
	for i, m := range msgs {
		m = m.Clone()
		m.Timestamp = truncate(m.Timestamp)
		staged[i] = m
	}
	return s.guardian.Rebuild(staged, recreate, progress)
}

// OptimizeIndex merges the index down to one segment. It is not
// cancellable once started.
func (s *Service) OptimizeIndex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.guardian.Optimize()
}

// GetStats reports live index statistics.
func (s *Service) GetStats(_ context.Context) store.IndexStats {
	return s.guardian.Stats()
}

// IndexPath returns the index directory.
func (s *Service) IndexPath() string {
	return s.guardian.Path()
}

// IndexState names the guardian's lifecycle state.
func (s *Service) IndexState() string {
	return s.guardian.State().String()
}

// Close disposes the index. The service cannot be used afterwards.
func (s *Service) Close() error {
	return s.guardian.Dispose()
}

func (s *Service) now() time.Time {
	return truncate(s.opts.Now())
}

// truncate converts t to UTC at microsecond precision, the resolution
// the index stores.
func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Microsecond)
}

// ClampLimit bounds limit to [1, max], substituting def for non-positive
// values.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// IsUnavailable reports whether err means the index cannot be served at all.
func IsUnavailable(err error) bool {
	return msgerrors.GetCode(err) == msgerrors.ErrCodeIndexUnavailable
}
