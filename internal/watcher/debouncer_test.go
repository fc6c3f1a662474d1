package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func assertQuiet(t *testing.T, d *Debouncer, wait time.Duration) {
	t.Helper()
	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch: %+v", batch)
	case <-time.After(wait):
	}
}

func TestDebouncer_SingleEvent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.mbox", Operation: OpModify, Timestamp: time.Now()})

	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "a.mbox", batch[0].Path)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_Burst_EmitsOnce(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a burst of writes lands inside the window
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "a.mbox", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(5 * time.Millisecond)
	}

	// Then: one event comes out, and nothing after it
	batch := receive(t, d)
	require.Len(t, batch, 1)
	assertQuiet(t, d, 120*time.Millisecond)
}

func TestDebouncer_Merge(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		want   Operation
		cancel bool
	}{
		{"create then modify stays create", []Operation{OpCreate, OpModify}, OpCreate, false},
		{"create then delete cancels", []Operation{OpCreate, OpDelete}, 0, true},
		{"create then rename cancels", []Operation{OpCreate, OpRename}, 0, true},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, OpModify, false},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, OpDelete, false},
		{"modify then modify is modify", []Operation{OpModify, OpModify}, OpModify, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "a.mbox", Operation: op, Timestamp: time.Now()})
			}

			if tt.cancel {
				assertQuiet(t, d, 80*time.Millisecond)
				return
			}
			batch := receive(t, d)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_DistinctPaths_SortedBatch(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "b.mbox", Operation: OpModify})
	d.Add(FileEvent{Path: "a.mbox", Operation: OpCreate})

	batch := receive(t, d)
	require.Len(t, batch, 2)
	assert.Equal(t, "a.mbox", batch[0].Path)
	assert.Equal(t, "b.mbox", batch[1].Path)
}

func TestDebouncer_Stop(t *testing.T) {
	// Given: a debouncer with a pending event
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Path: "a.mbox", Operation: OpModify})

	// When: it is stopped twice
	d.Stop()
	d.Stop()

	// Then: output is closed with nothing pending, and Add is ignored
	_, ok := <-d.Output()
	assert.False(t, ok)
	assert.NotPanics(t, func() { d.Add(FileEvent{Path: "a.mbox"}) })
}
