package preflight

import (
	"fmt"

	"github.com/Aman-CERP/msgindex/internal/store"
)

// CheckIndexLock reports who holds the index write lock. A held lock is a
// warning: reads still work, and mutations should go through the daemon.
func (c *Checker) CheckIndexLock(indexDir string) CheckResult {
	result := CheckResult{Name: "index_lock"}
	lock := store.NewWriteLock(indexDir)

	if !lock.Exists() {
		result.Status = StatusPass
		result.Message = "free"
		return result
	}

	held, err := lock.Held()
	switch {
	case err != nil:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot probe lock: %v", err)
	case held:
		result.Status = StatusWarn
		result.Message = "held by a running process"
		result.Details = "Writes from this process will fail; use the daemon or stop it with: msgindex daemon stop"
	default:
		result.Status = StatusPass
		result.Message = "stale marker, cleared on next open"
		result.Details = lock.Path()
	}
	return result
}
