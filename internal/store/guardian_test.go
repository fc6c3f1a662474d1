package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
)

func newTestGuardian(t *testing.T) *Guardian {
	t.Helper()
	g := NewGuardian(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, g.Open())
	t.Cleanup(func() { _ = g.Dispose() })
	return g
}

func testMessage(id string) Message {
	return Message{
		ID:         id,
		Sender:     "Alice",
		Recipients: []string{"Bob"},
		Subject:    "Hi " + id,
		Body:       "test body for " + id,
		Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func hasDocument(t *testing.T, g *Guardian, id string) bool {
	t.Helper()
	var found bool
	err := g.Read(func(idx bleve.Index) error {
		doc, err := idx.Document(id)
		found = doc != nil
		return err
	})
	require.NoError(t, err)
	return found
}

func storedSubject(t *testing.T, g *Guardian, id string) string {
	t.Helper()
	var subject string
	err := g.Read(func(idx bleve.Index) error {
		req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
		req.Fields = []string{"*"}
		res, err := idx.Search(req)
		if err != nil {
			return err
		}
		if len(res.Hits) == 1 {
			subject = Decode(res.Hits[0].Fields).Subject
		}
		return nil
	})
	require.NoError(t, err)
	return subject
}

func TestGuardian_StartsUninitialized(t *testing.T) {
	g := NewGuardian(filepath.Join(t.TempDir(), "index"))

	assert.Equal(t, StateUninitialized, g.State())
	assert.Equal(t, IndexStats{}, g.Stats())
	assert.ErrorIs(t, g.Read(func(bleve.Index) error { return nil }), ErrNotReady)
	assert.NoError(t, g.Dispose())
}

func TestGuardian_Open_CreatesIndex(t *testing.T) {
	// Given: a directory that does not exist yet
	path := filepath.Join(t.TempDir(), "nested", "index")
	g := NewGuardian(path)
	defer func() { _ = g.Dispose() }()

	// When: opening
	require.NoError(t, g.Open())

	// Then: the index and the lock marker exist
	assert.Equal(t, StateActive, g.State())
	assert.True(t, IndexExists(path))
	assert.FileExists(t, filepath.Join(path, LockFileName))
}

func TestGuardian_FirstMutationOpensLazily(t *testing.T) {
	g := NewGuardian(filepath.Join(t.TempDir(), "index"))
	defer func() { _ = g.Dispose() }()

	require.NoError(t, g.Add(testMessage("lazy")))

	assert.Equal(t, StateActive, g.State())
	assert.EqualValues(t, 1, g.Stats().NumDocs)
}

func TestGuardian_Open_ClearsStaleLock(t *testing.T) {
	// Given: a stale marker from an unclean shutdown
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, LockFileName), nil, 0644))
	g := NewGuardian(path)
	defer func() { _ = g.Dispose() }()

	// When: opening
	err := g.Open()

	// Then: the marker is recovered and the index opens
	require.NoError(t, err)
	assert.Equal(t, StateActive, g.State())
}

func TestGuardian_Open_LiveLockIsFatal(t *testing.T) {
	// Given: an index held open by another guardian
	path := filepath.Join(t.TempDir(), "index")
	owner := NewGuardian(path)
	require.NoError(t, owner.Open())
	defer func() { _ = owner.Dispose() }()

	// When: a second guardian opens the same directory
	other := NewGuardian(path)
	err := other.Open()

	// Then: it fails with a fatal unavailable error
	require.Error(t, err)
	assert.Equal(t, msgerrors.ErrCodeIndexUnavailable, msgerrors.GetCode(err))
	assert.True(t, msgerrors.IsFatal(err))
	assert.Equal(t, StateUninitialized, other.State())
}

func TestGuardian_Add_VisibleAfterCommit(t *testing.T) {
	g := newTestGuardian(t)

	require.NoError(t, g.Add(testMessage("a1")))

	assert.True(t, hasDocument(t, g, "a1"))
	assert.Equal(t, "Hi a1", storedSubject(t, g, "a1"))
}

func TestGuardian_Add_EmptyIDIsWriteError(t *testing.T) {
	g := newTestGuardian(t)

	err := g.Add(testMessage(""))

	require.Error(t, err)
	assert.Equal(t, msgerrors.ErrCodeIndexWrite, msgerrors.GetCode(err))

	// The lock was released: the next mutation proceeds
	require.NoError(t, g.Add(testMessage("after")))
}

func TestGuardian_Update_ReplacesExisting(t *testing.T) {
	g := newTestGuardian(t)
	require.NoError(t, g.Add(testMessage("u1")))

	replacement := testMessage("ignored")
	replacement.Subject = "Updated subject"
	require.NoError(t, g.Update("u1", replacement))

	assert.EqualValues(t, 1, g.Stats().NumDocs)
	assert.Equal(t, "Updated subject", storedSubject(t, g, "u1"))
	assert.False(t, hasDocument(t, g, "ignored"))
}

func TestGuardian_Update_UpsertsMissing(t *testing.T) {
	g := newTestGuardian(t)

	require.NoError(t, g.Update("new-id", testMessage("whatever")))

	assert.True(t, hasDocument(t, g, "new-id"))
	assert.EqualValues(t, 1, g.Stats().NumDocs)
}

func TestGuardian_Delete_IsIdempotent(t *testing.T) {
	g := newTestGuardian(t)
	require.NoError(t, g.Add(testMessage("keep")))
	before := g.Stats()

	// Deleting a missing id succeeds and changes nothing
	require.NoError(t, g.Delete("missing"))
	require.NoError(t, g.Delete("missing"))
	assert.Equal(t, before.NumDocs, g.Stats().NumDocs)

	// Deleting an existing id removes it
	require.NoError(t, g.Delete("keep"))
	assert.False(t, hasDocument(t, g, "keep"))
	assert.EqualValues(t, 0, g.Stats().NumDocs)
}

func TestGuardian_ConcurrentAdds_AreSerialized(t *testing.T) {
	g := newTestGuardian(t)
	before := g.Stats().NumDocs

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = g.Add(testMessage(fmt.Sprintf("c%d", i)))
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, before+2, g.Stats().NumDocs)
}

func TestGuardian_ConcurrentReadsDuringWrites(t *testing.T) {
	g := newTestGuardian(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 20 {
			_ = g.Add(testMessage(fmt.Sprintf("w%d", i)))
		}
	}()
	go func() {
		defer wg.Done()
		for range 20 {
			stats := g.Stats()
			assert.GreaterOrEqual(t, stats.MaxDocs, stats.NumDocs)
			assert.GreaterOrEqual(t, stats.NumDocs, int64(0))
		}
	}()
	wg.Wait()

	assert.EqualValues(t, 20, g.Stats().NumDocs)
}

func TestGuardian_Rebuild_Recreate(t *testing.T) {
	// Given: an index with unrelated documents
	g := newTestGuardian(t)
	require.NoError(t, g.Add(testMessage("old-1")))
	require.NoError(t, g.Add(testMessage("old-2")))

	msgs := make([]Message, 6)
	for i := range msgs {
		msgs[i] = testMessage(fmt.Sprintf("sample-%03d", i+1))
	}

	// When: rebuilding with recreate
	var calls int
	report, err := g.Rebuild(msgs, true, func(done, total int) {
		calls++
		assert.Equal(t, 6, total)
	})

	// Then: only the rebuilt documents remain
	require.NoError(t, err)
	assert.Equal(t, 6, report.Indexed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 6, calls)
	assert.EqualValues(t, 6, g.Stats().NumDocs)
	assert.False(t, hasDocument(t, g, "old-1"))
}

func TestGuardian_Rebuild_RecreateKeepsReindexedIDs(t *testing.T) {
	// Given: an index whose documents partly reappear in the rebuild
	g := newTestGuardian(t)
	require.NoError(t, g.Add(testMessage("keep")))
	require.NoError(t, g.Add(testMessage("drop")))

	replacement := testMessage("keep")
	replacement.Subject = "replaced"

	// When: recreating from a set sharing one id
	_, err := g.Rebuild([]Message{replacement, testMessage("new")}, true, nil)

	// Then: the shared id holds the new content and the rest is gone
	require.NoError(t, err)
	assert.EqualValues(t, 2, g.Stats().NumDocs)
	assert.Equal(t, "replaced", storedSubject(t, g, "keep"))
	assert.False(t, hasDocument(t, g, "drop"))
	assert.True(t, hasDocument(t, g, "new"))
}

func TestGuardian_Rebuild_Append(t *testing.T) {
	g := newTestGuardian(t)
	require.NoError(t, g.Add(testMessage("existing")))

	_, err := g.Rebuild([]Message{testMessage("n1"), testMessage("existing")}, false, nil)

	require.NoError(t, err)
	assert.EqualValues(t, 2, g.Stats().NumDocs)
}

func TestGuardian_Rebuild_SkipsBadMessages(t *testing.T) {
	g := newTestGuardian(t)

	report, err := g.Rebuild([]Message{testMessage("good"), testMessage("")}, true, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 1, report.Skipped)
	assert.EqualValues(t, 1, g.Stats().NumDocs)
}

func TestGuardian_Optimize_MergesToOneSegment(t *testing.T) {
	g := newTestGuardian(t)
	for i := range 5 {
		require.NoError(t, g.Add(testMessage(fmt.Sprintf("o%d", i))))
	}
	require.NoError(t, g.Delete("o0"))

	require.NoError(t, g.Optimize())

	stats := g.Stats()
	assert.True(t, stats.IsOptimized)
	assert.LessOrEqual(t, stats.NumSegments, 1)
	assert.EqualValues(t, 4, stats.NumDocs)
}

func TestGuardian_Dispose_IsIdempotentAndTerminal(t *testing.T) {
	g := NewGuardian(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, g.Open())

	require.NoError(t, g.Dispose())
	require.NoError(t, g.Dispose())

	assert.Equal(t, StateDisposed, g.State())
	err := g.Add(testMessage("late"))
	assert.True(t, errors.Is(err, msgerrors.ErrDisposed))
	assert.True(t, errors.Is(g.Open(), msgerrors.ErrDisposed))
	assert.Equal(t, IndexStats{}, g.Stats())
}

func TestGuardian_Dispose_ReleasesLockForNextProcess(t *testing.T) {
	// Given: an index written and disposed
	path := filepath.Join(t.TempDir(), "index")
	first := NewGuardian(path)
	require.NoError(t, first.Add(testMessage("persisted")))
	require.NoError(t, first.Dispose())

	// When: a new guardian opens the same directory
	second := NewGuardian(path)
	require.NoError(t, second.Open())
	defer func() { _ = second.Dispose() }()

	// Then: committed documents survived
	assert.True(t, hasDocument(t, second, "persisted"))
}

func TestGuardian_Open_RecoversCorruptMeta(t *testing.T) {
	// Given: an index whose metadata was truncated
	path := filepath.Join(t.TempDir(), "index")
	first := NewGuardian(path)
	require.NoError(t, first.Open())
	require.NoError(t, first.Dispose())
	require.NoError(t, os.WriteFile(filepath.Join(path, metaFileName), []byte("{not json"), 0644))

	// When: reopening
	g := NewGuardian(path)
	defer func() { _ = g.Dispose() }()
	require.NoError(t, g.Open())

	// Then: a fresh, usable index is created
	require.NoError(t, g.Add(testMessage("fresh")))
	assert.EqualValues(t, 1, g.Stats().NumDocs)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "disposed", StateDisposed.String())
	assert.Equal(t, "unknown", State(42).String())
}
