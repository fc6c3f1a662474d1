package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/msgindex/internal/daemon"
	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/store"
	"github.com/Aman-CERP/msgindex/internal/watcher"
)

// End-to-end tests across the service, the daemon socket and the mbox
// watcher, each on a real index in a temp directory.

func openService(t *testing.T, path string, seed bool) *service.Service {
	t.Helper()
	svc := service.New(path, service.Options{})
	require.NoError(t, svc.EnsureIndex(context.Background(), seed))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// serveDaemon exposes svc on a socket until the test ends and returns a
// client for it.
func serveDaemon(t *testing.T, svc *service.Service) *daemon.Client {
	t.Helper()
	sockDir, err := os.MkdirTemp("", "mi")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })

	cfg := daemon.Config{
		SocketPath:          filepath.Join(sockDir, "d.sock"),
		PIDPath:             filepath.Join(t.TempDir(), "d.pid"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: time.Second,
	}
	d, err := daemon.NewDaemon(cfg, daemon.WithHandler(svc))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	select {
	case <-d.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("daemon failed to start: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon did not start")
	}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return daemon.NewClient(cfg)
}

func ids(res store.SearchResult) []string {
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.Message.ID)
	}
	return out
}

func TestBackends_LocalAndDaemonAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a seeded index served over the socket
	svc := openService(t, filepath.Join(t.TempDir(), "index"), true)
	client := serveDaemon(t, svc)
	ctx := context.Background()

	queries := []string{
		"kickoff",
		"Sender:alice",
		"Subject:\"project kickoff\"",
		"index OR frontend",
		"alice NOT bob",
		"kick*",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			// When: the same query runs through both backends
			local := svc.Search(ctx, q, 10)
			remote := client.Search(ctx, q, 10)

			// Then: hits and errors match
			assert.Equal(t, local.Error, remote.Error)
			assert.Equal(t, local.TotalHits, remote.TotalHits)
			assert.Equal(t, ids(local), ids(remote))
		})
	}

	assert.Equal(t, svc.GetStats(ctx), client.GetStats(ctx))
}

func TestBackends_DaemonMutationsVisibleLocally(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	svc := openService(t, filepath.Join(t.TempDir(), "index"), false)
	client := serveDaemon(t, svc)
	ctx := context.Background()

	added, err := client.AddMessage(ctx, service.NewMessage{
		Sender:     "ops@example.com",
		Recipients: []string{"oncall@example.com"},
		Subject:    "Pager rotation",
		Body:       "Swap weekends with the platypus team.",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{added.ID}, ids(svc.Search(ctx, "platypus", 10)))

	_, err = client.UpdateMessage(ctx, added.ID, service.NewMessage{
		Sender:     "ops@example.com",
		Recipients: []string{"oncall@example.com"},
		Subject:    "Pager rotation",
		Body:       "Swap weekends with the narwhal team.",
	})
	require.NoError(t, err)
	assert.Empty(t, svc.Search(ctx, "platypus", 10).Hits)
	assert.Equal(t, []string{added.ID}, ids(svc.Search(ctx, "narwhal", 10)))

	require.NoError(t, client.DeleteMessage(ctx, added.ID))
	assert.EqualValues(t, 0, svc.GetStats(ctx).NumDocs)
}

func TestIndex_SurvivesReopen(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a message committed by one process lifetime
	path := filepath.Join(t.TempDir(), "index")
	first := service.New(path, service.Options{})
	require.NoError(t, first.EnsureIndex(context.Background(), false))
	m, err := first.AddMessage(context.Background(), service.NewMessage{
		Sender: "a@example.com", Recipients: []string{"b@example.com"},
		Subject: "Persisted", Body: "still here after restart",
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// When: a new service opens the same directory
	second := openService(t, path, true)

	// Then: the message is found with its fields intact and no samples
	// were seeded into the non-empty index
	res := second.Search(context.Background(), "restart", 10)
	require.Len(t, res.Hits, 1)
	got := res.Hits[0].Message
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Recipients, got.Recipients)
	assert.True(t, m.Timestamp.Equal(got.Timestamp))
	assert.EqualValues(t, 1, second.GetStats(context.Background()).NumDocs)
}

func TestIndex_StaleLockMarkerIsCleared(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an index left with a write lock marker by a crashed writer
	path := filepath.Join(t.TempDir(), "index")
	first := service.New(path, service.Options{})
	require.NoError(t, first.EnsureIndex(context.Background(), true))
	require.NoError(t, first.Close())
	require.NoError(t, os.WriteFile(filepath.Join(path, store.LockFileName), nil, 0o644))

	// When: reopening
	svc := openService(t, path, false)

	// Then: the index is writable again
	_, err := svc.AddMessage(context.Background(), service.NewMessage{
		Sender: "a@x", Recipients: []string{"b@x"}, Subject: "after crash", Body: "ok",
	})
	assert.NoError(t, err)
	assert.EqualValues(t, 7, svc.GetStats(context.Background()).NumDocs)
}

func TestSearch_ConcurrentWithRebuild(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	svc := openService(t, filepath.Join(t.TempDir(), "index"), true)
	ctx := context.Background()

	msgs := make([]store.Message, 0, 200)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 200 {
		msgs = append(msgs, store.Message{
			ID:         fmt.Sprintf("bulk-%03d", i),
			Sender:     "bulk@example.com",
			Recipients: []string{"list@example.com"},
			Subject:    "Bulk message",
			Body:       "kickoff reminder",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}

	before := svc.Search(ctx, "kickoff", 5)
	require.False(t, before.Failed(), before.Error)
	oldTotal, newTotal := before.TotalHits, uint64(len(msgs))

	// Readers see either the old or the new document set, never an error
	// and never an emptied index in between.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	failures := make(chan string, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res := svc.Search(ctx, "kickoff", 5)
				var failure string
				switch {
				case res.Failed():
					failure = res.Error
				case res.TotalHits != oldTotal && res.TotalHits != newTotal:
					failure = fmt.Sprintf("saw %d hits, want %d or %d", res.TotalHits, oldTotal, newTotal)
				}
				if failure != "" {
					select {
					case failures <- failure:
					default:
					}
					return
				}
			}
		}()
	}

	report, err := svc.RebuildIndex(ctx, msgs, true, nil)
	close(stop)
	wg.Wait()
	close(failures)

	require.NoError(t, err)
	assert.Equal(t, 200, report.Indexed)
	for f := range failures {
		t.Errorf("search during rebuild: %s", f)
	}
	assert.EqualValues(t, 200, svc.GetStats(ctx).NumDocs)
}

const watchEntry = `From ops@example.com Wed May  1 08:00:00 2024
Message-Id: <deploy-1@example.com>
From: Ops <ops@example.com>
To: dev@example.com
Subject: Deploy window
Date: Wed, 01 May 2024 08:00:00 +0000

Deploy freeze lifts Thursday.

`

func TestWatcher_SyncsThroughDaemonClient(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a daemon and an mbox watched with the client as backend
	svc := openService(t, filepath.Join(t.TempDir(), "index"), false)
	client := serveDaemon(t, svc)
	mbox := filepath.Join(t.TempDir(), "inbox.mbox")
	require.NoError(t, os.WriteFile(mbox, nil, 0o644))

	ms := watcher.NewSync(mbox, client, watcher.Options{DebounceWindow: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ms.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()
	time.Sleep(200 * time.Millisecond)

	// When: a message is appended to the mbox
	f, err := os.OpenFile(mbox, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(watchEntry)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: it becomes searchable through the daemon
	assert.Eventually(t, func() bool {
		return len(client.Search(context.Background(), "freeze", 10).Hits) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
