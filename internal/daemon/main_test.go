package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var socketSeq atomic.Uint64

// testSocketPath returns a short unique socket path; t.TempDir paths can
// exceed the Unix socket path limit.
func testSocketPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(os.TempDir(),
		fmt.Sprintf("msgindex-test-%d-%d.sock", os.Getpid(), socketSeq.Add(1)))
	t.Cleanup(func() { _ = os.Remove(path) })
	return path
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		SocketPath:          testSocketPath(t),
		PIDPath:             filepath.Join(t.TempDir(), "daemon.pid"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
	}
}

// newTestService opens an empty index in a temp directory.
func newTestService(t *testing.T) *service.Service {
	t.Helper()
	svc := service.New(filepath.Join(t.TempDir(), "index"), service.Options{})
	require.NoError(t, svc.EnsureIndex(context.Background(), false))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// startServer runs a server for h until the test ends.
func startServer(t *testing.T, h Handler) Config {
	t.Helper()
	return startServerWith(t, h, nil)
}

// startServerWith is startServer with a hook to adjust the server before
// it starts listening.
func startServerWith(t *testing.T, h Handler, tweak func(*Server)) Config {
	t.Helper()
	cfg := testConfig(t)

	srv, err := NewServer(cfg.SocketPath)
	require.NoError(t, err)
	if h != nil {
		srv.SetHandler(h)
	}
	if tweak != nil {
		tweak(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return cfg
}

// slowHandler delays optimize and stats calls on top of a real service.
type slowHandler struct {
	*service.Service
	optimizeDelay time.Duration
	statsDelay    time.Duration
}

func (h slowHandler) OptimizeIndex(ctx context.Context) error {
	time.Sleep(h.optimizeDelay)
	return h.Service.OptimizeIndex(ctx)
}

func (h slowHandler) GetStats(ctx context.Context) store.IndexStats {
	time.Sleep(h.statsDelay)
	return h.Service.GetStats(ctx)
}
