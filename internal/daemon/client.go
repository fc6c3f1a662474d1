package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/store"
)

var _ service.Backend = (*Client)(nil)

// Client talks to a running daemon. Each call dials its own connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{socketPath: cfg.SocketPath, timeout: cfg.Timeout}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, msgerrors.DaemonUnreachableError("cannot connect to daemon", err).
			WithDetail("socket", c.socketPath)
	}
	return conn, nil
}

// IsRunning reports whether the socket accepts connections.
func (c *Client) IsRunning() bool {
	conn, err := c.dial(context.Background())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks that the daemon answers requests.
func (c *Client) Ping(ctx context.Context) error {
	res, err := call[PingResult](ctx, c, MethodPing, nil)
	if err == nil && !res.Pong {
		err = fmt.Errorf("daemon answered ping without pong")
	}
	return err
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	st, err := call[StatusResult](ctx, c, MethodStatus, nil)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// AddMessage indexes a new message through the daemon.
func (c *Client) AddMessage(ctx context.Context, in service.NewMessage) (store.Message, error) {
	return call[store.Message](ctx, c, MethodMessageAdd, MessageParams{NewMessage: in})
}

// UpdateMessage replaces or inserts the message with the given id.
func (c *Client) UpdateMessage(ctx context.Context, id string, in service.NewMessage) (store.Message, error) {
	return call[store.Message](ctx, c, MethodMessageUpdate, MessageParams{ID: id, NewMessage: in})
}

// DeleteMessage removes the message with the given id.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	_, err := call[DeleteResult](ctx, c, MethodMessageDelete, DeleteParams{ID: id})
	return err
}

// Search runs a query on the daemon. Transport failures are reported in
// the result's Error field like any other search failure.
func (c *Client) Search(ctx context.Context, query string, limit int) store.SearchResult {
	res, err := call[store.SearchResult](ctx, c, MethodSearch, SearchParams{Query: query, Limit: limit})
	if err != nil {
		return store.SearchResult{Hits: []store.Hit{}, Error: err.Error()}
	}
	if res.Hits == nil {
		res.Hits = []store.Hit{}
	}
	return res
}

// Rebuild asks the daemon to rebuild its index from params.
func (c *Client) Rebuild(ctx context.Context, params RebuildParams) (RebuildResult, error) {
	if err := params.Validate(); err != nil {
		return RebuildResult{}, msgerrors.ValidationError(err.Error())
	}
	return call[RebuildResult](ctx, c, MethodRebuild, params)
}

// Optimize merges the daemon's index into one segment.
func (c *Client) Optimize(ctx context.Context) (store.IndexStats, error) {
	res, err := call[OptimizeResult](ctx, c, MethodOptimize, nil)
	return res.Stats, err
}

// Stats reports the daemon's index statistics.
func (c *Client) Stats(ctx context.Context) (store.IndexStats, error) {
	return call[store.IndexStats](ctx, c, MethodStats, nil)
}

// RebuildIndex sends msgs to the daemon for indexing. Progress is not
// reported over the socket; progress is called once when the daemon
// answers.
func (c *Client) RebuildIndex(ctx context.Context, msgs []store.Message, recreate bool, progress store.ProgressFunc) (store.RebuildReport, error) {
	if msgs == nil {
		msgs = []store.Message{}
	}
	res, err := c.Rebuild(ctx, RebuildParams{Source: SourceMessages, Messages: msgs, Append: !recreate})
	if err != nil {
		return res.RebuildReport, err
	}
	if progress != nil {
		progress(len(msgs), len(msgs))
	}
	return res.RebuildReport, nil
}

// OptimizeIndex merges the daemon's index into one segment.
func (c *Client) OptimizeIndex(ctx context.Context) error {
	_, err := c.Optimize(ctx)
	return err
}

// GetStats reports the daemon's index statistics, or UnavailableStats
// when the daemon cannot be reached.
func (c *Client) GetStats(ctx context.Context) store.IndexStats {
	stats, err := c.Stats(ctx)
	if err != nil {
		return store.UnavailableStats
	}
	return stats
}

// call runs one request/response exchange on a fresh connection and
// decodes the result as R. RPC errors come back as structured errors.
func call[R any](ctx context.Context, c *Client, method string, params any) (R, error) {
	var out R

	req := Request{JSONRPC: "2.0", Method: method, ID: uuid.NewString()}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return out, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = data
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return out, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	ctxDeadline, hasDeadline := ctx.Deadline()
	deadline := time.Now().Add(c.timeout)
	if hasDeadline && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return out, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return out, msgerrors.DaemonUnreachableError("failed to send request", err)
	}
	if isLongRunning(method) {
		// Only ctx bounds the wait; the zero time clears the deadline.
		var wait time.Time
		if hasDeadline {
			wait = ctxDeadline
		}
		if err := conn.SetReadDeadline(wait); err != nil {
			return out, fmt.Errorf("set deadline: %w", err)
		}
		// A cancel that fired before the reset above would be lost.
		if err := ctx.Err(); err != nil {
			return out, msgerrors.DaemonUnreachableError("request cancelled", err)
		}
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return out, msgerrors.DaemonUnreachableError("failed to receive response", err)
	}

	switch {
	case resp.ID != req.ID:
		return out, fmt.Errorf("%s: response id %q does not match request %q", method, resp.ID, req.ID)
	case resp.Error != nil:
		return out, resp.Error.AsMsgError()
	case len(resp.Result) == 0:
		return out, nil
	}
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}
