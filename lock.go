package gitstore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const defaultLockTimeout = 30 * time.Second

// withRepoLock acquires the advisory file lock at <gitdir>/gitstore.lock,
// runs f, and releases the lock on every return path (including panics,
// via defer). Acquisition polls every 25ms up to timeout; on timeout it
// fails with a wrapped error so callers can distinguish contention from
// other I/O failures. gitdir == "" means an in-memory store, which has
// nothing else to race against across processes; f runs directly.
func withRepoLock[T any](gitdir string, timeout time.Duration, f func() (T, error)) (T, error) {
	if gitdir == "" {
		return f()
	}

	var zero T
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}

	lockPath := filepath.Join(gitdir, "gitstore.lock")
	fl := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return zero, fmt.Errorf("acquire repo lock %s: %w", lockPath, err)
	}
	if !locked {
		return zero, fmt.Errorf("acquire repo lock %s: timed out after %s", lockPath, timeout)
	}
	defer fl.Unlock()

	return f()
}
