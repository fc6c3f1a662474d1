package watcher

import (
	"time"
)

// Operation is the kind of change observed on the watched file.
type Operation int

const (
	// OpCreate means the file appeared.
	OpCreate Operation = iota
	// OpModify means the file content changed.
	OpModify
	// OpDelete means the file is gone.
	OpDelete
	// OpRename means the file was moved away from the watched path.
	OpRename
)

// String returns the upper-case name of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Removed reports whether the event leaves nothing at Path.
func (e FileEvent) Removed() bool {
	return e.Operation == OpDelete || e.Operation == OpRename
}

// Options configures a FileWatcher.
type Options struct {
	// DebounceWindow is how long to wait for quiet before emitting.
	DebounceWindow time.Duration

	// PollInterval is the stat interval when polling is in use.
	PollInterval time.Duration

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool

	// EventBufferSize is the capacity of the Events channel.
	EventBufferSize int
}

// DefaultOptions returns the defaults used by `serve --watch`.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 16,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = def.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = def.EventBufferSize
	}
	return o
}
