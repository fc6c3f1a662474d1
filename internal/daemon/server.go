package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/msgindex/internal/mailbox"
	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/store"
)

// connDeadline bounds reading a request and, separately, writing its
// response. The method itself runs until it finishes or ctx ends.
const connDeadline = 30 * time.Second

// Handler executes index operations, normally a *service.Service.
type Handler interface {
	service.Backend
}

// indexDescriber is implemented by handlers that can name their index.
type indexDescriber interface {
	IndexPath() string
	IndexState() string
}

// Server listens on a Unix socket and handles RPC requests, one request
// per connection.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    Handler
	started    time.Time
	grace      time.Duration
	ioTimeout  time.Duration
	ready      chan struct{}

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	return &Server{
		socketPath: socketPath,
		ioTimeout:  connDeadline,
		ready:      make(chan struct{}),
	}, nil
}

// SetHandler sets the handler for index operations.
func (s *Server) SetHandler(h Handler) {
	s.handler = h
}

// SetShutdownGracePeriod bounds how long ListenAndServe waits for
// in-flight connections after cancellation. Zero waits indefinitely.
func (s *Server) SetShutdownGracePeriod(d time.Duration) {
	s.grace = d
}

// Ready is closed once the socket accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A leftover socket from a crashed daemon would make Listen fail.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("daemon_listening", slog.String("socket", s.socketPath))
	close(s.ready)

	// Cancellation unblocks Accept by closing the listener.
	stopAccept := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stopAccept()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("daemon_accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.waitConnections()
	slog.Info("daemon_stopped", slog.String("socket", s.socketPath))
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (s *Server) waitConnections() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if s.grace <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(s.grace):
		slog.Warn("daemon_shutdown_grace_expired", slog.Duration("grace", s.grace))
	}
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(s.ioTimeout)); err != nil {
		slog.Warn("daemon_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	if err := conn.SetWriteDeadline(time.Now().Add(s.ioTimeout)); err != nil {
		slog.Warn("daemon_deadline_failed", slog.String("error", err.Error()))
	}
	if err := encoder.Encode(resp); err != nil {
		slog.Warn("daemon_write_failed",
			slog.String("method", req.Method),
			slog.String("error", err.Error()))
	}

	attrs := []any{
		slog.String("method", req.Method),
		slog.Duration("duration", time.Since(start)),
	}
	if resp.Error != nil {
		attrs = append(attrs, slog.Int("rpc_code", resp.Error.Code))
	}
	slog.Debug("daemon_request", attrs...)
}

// invalidParams wraps a params check failure. Methods return *Error
// values as-is; any other error goes through ErrorResponseFor.
func invalidParams(err error) error {
	return &Error{Code: ErrCodeInvalidParams, Message: err.Error()}
}

// method runs one RPC. Methods with needsHandler unset also answer when
// the server has no index behind it.
type method struct {
	run          func(ctx context.Context, s *Server, params json.RawMessage) (any, error)
	needsHandler bool
}

// typed decodes params into P before calling fn. Absent params decode as
// the zero value.
func typed[P any](fn func(ctx context.Context, s *Server, p *P) (any, error)) func(context.Context, *Server, json.RawMessage) (any, error) {
	return func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
		var p P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, &Error{Code: ErrCodeInvalidParams, Message: "failed to decode params"}
			}
		}
		return fn(ctx, s, &p)
	}
}

func noParams(fn func(ctx context.Context, s *Server) (any, error)) func(context.Context, *Server, json.RawMessage) (any, error) {
	return func(ctx context.Context, s *Server, _ json.RawMessage) (any, error) {
		return fn(ctx, s)
	}
}

var methods = map[string]method{
	MethodPing:          {run: noParams(rpcPing)},
	MethodStatus:        {run: noParams(rpcStatus)},
	MethodMessageAdd:    {run: typed(rpcAddMessage), needsHandler: true},
	MethodMessageUpdate: {run: typed(rpcUpdateMessage), needsHandler: true},
	MethodMessageDelete: {run: typed(rpcDeleteMessage), needsHandler: true},
	MethodSearch:        {run: typed(rpcSearch), needsHandler: true},
	MethodRebuild:       {run: typed(rpcRebuild), needsHandler: true},
	MethodOptimize:      {run: noParams(rpcOptimize), needsHandler: true},
	MethodStats:         {run: noParams(rpcStats), needsHandler: true},
}

// handleRequest dispatches req through the method table.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version")
	}

	m, ok := methods[req.Method]
	if !ok {
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
	if m.needsHandler && s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	result, err := m.run(ctx, s, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID}
		}
		return ErrorResponseFor(req.ID, err)
	}
	return NewSuccessResponse(req.ID, result)
}

func rpcPing(context.Context, *Server) (any, error) {
	return PingResult{Pong: true}, nil
}

func rpcStatus(ctx context.Context, s *Server) (any, error) {
	return s.getStatus(ctx), nil
}

func rpcAddMessage(ctx context.Context, s *Server, p *MessageParams) (any, error) {
	return s.handler.AddMessage(ctx, p.NewMessage)
}

func rpcUpdateMessage(ctx context.Context, s *Server, p *MessageParams) (any, error) {
	if err := p.Validate(true); err != nil {
		return nil, invalidParams(err)
	}
	return s.handler.UpdateMessage(ctx, p.ID, p.NewMessage)
}

func rpcDeleteMessage(ctx context.Context, s *Server, p *DeleteParams) (any, error) {
	if err := p.Validate(); err != nil {
		return nil, invalidParams(err)
	}
	if err := s.handler.DeleteMessage(ctx, p.ID); err != nil {
		return nil, err
	}
	return DeleteResult{ID: p.ID, Deleted: true}, nil
}

// rpcSearch never fails at the RPC level: problems travel in the result's
// Error field. Validate only clamps the limit.
func rpcSearch(ctx context.Context, s *Server, p *SearchParams) (any, error) {
	_ = p.Validate()
	return s.handler.Search(ctx, p.Query, p.Limit), nil
}

func rpcRebuild(ctx context.Context, s *Server, p *RebuildParams) (any, error) {
	if err := p.Validate(); err != nil {
		return nil, invalidParams(err)
	}

	var (
		msgs    []store.Message
		skipped int
	)
	switch p.Source {
	case SourceSamples:
		msgs = service.SampleMessages(time.Now())
	case SourceMbox:
		res, err := mailbox.ReadFile(ctx, p.Path, mailbox.Options{})
		if err != nil {
			return nil, err
		}
		msgs, skipped = res.Messages, res.Skipped
	case SourceMessages:
		msgs = p.Messages
	}

	report, err := s.handler.RebuildIndex(ctx, msgs, !p.Append, nil)
	if err != nil {
		return nil, err
	}
	return RebuildResult{RebuildReport: report, MboxSkipped: skipped}, nil
}

func rpcOptimize(ctx context.Context, s *Server) (any, error) {
	if err := s.handler.OptimizeIndex(ctx); err != nil {
		return nil, err
	}
	return OptimizeResult{Stats: s.handler.GetStats(ctx)}, nil
}

func rpcStats(ctx context.Context, s *Server) (any, error) {
	return s.handler.GetStats(ctx), nil
}

// getStatus returns the current server status.
func (s *Server) getStatus(ctx context.Context) StatusResult {
	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}

	if s.handler != nil {
		status.NumDocs = s.handler.GetStats(ctx).NumDocs
		if d, ok := s.handler.(indexDescriber); ok {
			status.IndexPath = d.IndexPath()
			status.IndexState = d.IndexState()
		}
	}
	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
