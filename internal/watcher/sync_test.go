package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/msgindex/internal/store"
)

const kickoffEntry = `From alice@example.com Mon Mar  4 09:00:00 2024
Message-Id: <kickoff-1@example.com>
From: Alice <alice@example.com>
To: bob@example.com
Subject: Project Kickoff
Date: Mon, 04 Mar 2024 09:00:00 +0000

Let's meet on Monday.

`

const replyEntry = `From bob@example.com Mon Mar  4 10:00:00 2024
Message-Id: <kickoff-2@example.com>
From: Bob <bob@example.com>
To: alice@example.com
Subject: Re: Project Kickoff
Date: Mon, 04 Mar 2024 10:00:00 +0000

Monday works.

`

type rebuildCall struct {
	ids      []string
	recreate bool
}

type fakeRebuilder struct {
	mu    sync.Mutex
	calls []rebuildCall
	err   error
}

func (f *fakeRebuilder) RebuildIndex(_ context.Context, msgs []store.Message, recreate bool, _ store.ProgressFunc) (store.RebuildReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	f.calls = append(f.calls, rebuildCall{ids: ids, recreate: recreate})
	if f.err != nil {
		return store.RebuildReport{}, f.err
	}
	return store.RebuildReport{Indexed: len(msgs), Recreate: recreate}, nil
}

func (f *fakeRebuilder) snapshot() []rebuildCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rebuildCall(nil), f.calls...)
}

func startSync(t *testing.T, s *Sync) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("sync did not stop")
			return nil
		}
	}
}

func TestSync_ImportsOnStartAndOnChange(t *testing.T) {
	// Given: an mbox with one message and a polling sync over it
	path := mboxPath(t)
	writeFile(t, path, kickoffEntry)
	backend := &fakeRebuilder{}
	opts := fastOptions()
	opts.ForcePolling = true

	var mu sync.Mutex
	var results []SyncResult
	s := NewSync(path, backend, opts)
	s.ImportOnStart = true
	s.OnSync = func(r SyncResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	stop := startSync(t, s)

	// Then: the initial import upserts the one message
	require.Eventually(t, func() bool { return s.Syncs() >= 1 }, 2*time.Second, 10*time.Millisecond)

	// When: a reply is appended
	time.Sleep(100 * time.Millisecond)
	appendFile(t, path, replyEntry)

	// Then: a second import sees both messages, never recreating
	require.Eventually(t, func() bool { return s.Syncs() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, stop())

	calls := backend.snapshot()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{"kickoff-1@example.com"}, calls[0].ids)
	assert.Equal(t, []string{"kickoff-1@example.com", "kickoff-2@example.com"}, calls[len(calls)-1].ids)
	for _, c := range calls {
		assert.False(t, c.recreate)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestSync_MissingFileReportsError(t *testing.T) {
	// Given: a sync over a file that does not exist
	backend := &fakeRebuilder{}
	opts := fastOptions()
	opts.ForcePolling = true
	s := NewSync(mboxPath(t), backend, opts)
	s.ImportOnStart = true

	got := make(chan SyncResult, 1)
	s.OnSync = func(r SyncResult) { got <- r }
	stop := startSync(t, s)
	defer func() { require.NoError(t, stop()) }()

	// Then: the start import fails without reaching the backend
	select {
	case r := <-got:
		assert.Error(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no sync result")
	}
	assert.Empty(t, backend.snapshot())
}

func TestSync_BackendErrorIsNotFatal(t *testing.T) {
	path := mboxPath(t)
	writeFile(t, path, kickoffEntry)
	backend := &fakeRebuilder{err: errors.New("index busy")}
	opts := fastOptions()
	opts.ForcePolling = true
	s := NewSync(path, backend, opts)
	s.ImportOnStart = true
	stop := startSync(t, s)

	require.Eventually(t, func() bool { return s.Syncs() >= 1 }, 2*time.Second, 10*time.Millisecond)

	// Run keeps going and returns cleanly on cancel
	assert.NoError(t, stop())
}

func TestRemoved(t *testing.T) {
	assert.False(t, removed(nil))
	assert.True(t, removed([]FileEvent{{Operation: OpModify}, {Operation: OpDelete}}))
	assert.False(t, removed([]FileEvent{{Operation: OpDelete}, {Operation: OpCreate}}))
}
