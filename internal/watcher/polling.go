package watcher

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// snapshot is the stat state of the watched file at one poll.
type snapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statSnapshot(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}

// diff returns the operation that takes prev to cur, if any.
func (prev snapshot) diff(cur snapshot) (Operation, bool) {
	switch {
	case !prev.exists && cur.exists:
		return OpCreate, true
	case prev.exists && !cur.exists:
		return OpDelete, true
	case cur.exists && (!cur.modTime.Equal(prev.modTime) || cur.size != prev.size):
		return OpModify, true
	default:
		return 0, false
	}
}

// poller detects changes by comparing successive stats of one path.
type poller struct {
	path string
	last snapshot
}

func newPoller(path string) (*poller, error) {
	s, err := statSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &poller{path: path, last: s}, nil
}

// check stats the file and returns an event when it changed since the last
// call.
func (p *poller) check(now time.Time) (FileEvent, bool, error) {
	cur, err := statSnapshot(p.path)
	if err != nil {
		return FileEvent{}, false, err
	}
	op, changed := p.last.diff(cur)
	p.last = cur
	if !changed {
		return FileEvent{}, false, nil
	}
	return FileEvent{Path: p.path, Operation: op, Timestamp: now}, true, nil
}
