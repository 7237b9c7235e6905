// ABOUTME: Single-instance guard using an advisory file lock in the data dir
// ABOUTME: Two operators sharing a state file would clobber each other's saves

package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another coven-operator instance is running")

// InstanceLockName is the lock file created inside the data directory.
const InstanceLockName = "operator.lock"

// AcquireInstanceLock takes a non-blocking exclusive lock in dir. The caller
// must Unlock the returned lock on shutdown.
func AcquireInstanceLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, InstanceLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, lock.Path())
	}
	return lock, nil
}
