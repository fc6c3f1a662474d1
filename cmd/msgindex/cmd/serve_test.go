package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/msgindex/internal/config"
	"github.com/Aman-CERP/msgindex/internal/daemon"
	"github.com/Aman-CERP/msgindex/internal/store"
	"github.com/Aman-CERP/msgindex/internal/ui"
)

// startServe runs the daemon in-process until the test ends. The socket
// lives under a short temp dir to stay within the unix socket path limit.
func startServe(t *testing.T, env testEnv, watch string) *config.Config {
	t.Helper()
	sockDir, err := os.MkdirTemp("", "mi")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })
	t.Setenv("MSGINDEX_SOCKET", filepath.Join(sockDir, "d.sock"))

	cfg, err := config.Load(env.dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, watch, io.Discard) }()

	client := daemon.NewClient(daemon.FromConfig(cfg))
	require.Eventually(t, client.IsRunning, 5*time.Second, 20*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("serve did not stop")
		}
	})
	return cfg
}

func TestServe_RoutesCommandsThroughDaemon(t *testing.T) {
	// Given: a running daemon
	env := newTestEnv(t)
	startServe(t, env, "")

	// When: commands run without --no-daemon
	out, _, err := env.run(t, "", "stats", "--json")
	require.NoError(t, err)

	// Then: they report the daemon backend and its index
	var v ui.StatsView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, kindDaemon, v.Backend)
	assert.Equal(t, "active", v.State)
	assert.EqualValues(t, 6, v.Stats.NumDocs)

	_, _, err = env.run(t, "", "add", "--sender", "a@x", "--to", "b@x", "--subject", "Via socket", "--body", "marmalade")
	require.NoError(t, err)

	out, _, err = env.run(t, "", "search", "marmalade", "--json")
	require.NoError(t, err)
	var res store.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Via socket", res.Hits[0].Message.Subject)
}

func TestServe_RebuildFromMboxInDaemon(t *testing.T) {
	env := newTestEnv(t)
	startServe(t, env, "")
	path := writeMbox(t, env.dir)

	out, _, err := env.run(t, "", "rebuild", "--mbox", path, "--plain")

	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 1 indexed, 1 skipped")
}

func TestServe_RefusesSecondInstance(t *testing.T) {
	env := newTestEnv(t)
	cfg := startServe(t, env, "")

	err := runServe(context.Background(), cfg, "", io.Discard)

	assert.ErrorIs(t, err, daemon.ErrAlreadyRunning)
}

func TestServe_WatchImportsMbox(t *testing.T) {
	// Given: an mbox next to the project
	env := newTestEnv(t)
	path := writeMbox(t, env.dir)

	// When: serving with --watch
	startServe(t, env, path)

	// Then: its messages become searchable through the daemon
	assert.Eventually(t, func() bool {
		out, _, err := env.run(t, "", "search", "rocket", "--json")
		if err != nil {
			return false
		}
		var res store.SearchResult
		if json.Unmarshal([]byte(out), &res) != nil {
			return false
		}
		return len(res.Hits) == 1 && res.Hits[0].Message.ID == "launch-1@example.com"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDaemonStatus_NotRunning(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "daemon", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")

	out, _, err = env.run(t, "", "daemon", "status", "--json")
	require.NoError(t, err)
	var st daemon.StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.Running)
}

func TestDaemonStatus_Running(t *testing.T) {
	env := newTestEnv(t)
	startServe(t, env, "")

	out, _, err := env.run(t, "", "daemon", "status", "--json")
	require.NoError(t, err)

	var st daemon.StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Running)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.EqualValues(t, 6, st.NumDocs)
}

func TestDaemonStop_NotRunning(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "daemon", "stop")

	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}
