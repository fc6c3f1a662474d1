// Package watcher follows a single mbox file and re-imports it when it
// changes.
//
// FileWatcher watches the file's parent directory with fsnotify so that
// atomic replacements (write to a temp file, rename over the target) are
// seen. When fsnotify cannot be set up, it falls back to stat polling.
// Raw events pass through a Debouncer before they are delivered.
//
// Sync ties a FileWatcher to the mailbox reader and an index backend:
//
//	s := watcher.NewSync(path, backend, watcher.DefaultOptions())
//	if err := s.Run(ctx); err != nil {
//	    return err
//	}
package watcher
