// Package instance keeps a second launcher from running against the same
// configuration root.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another et-launcher instance is running")

type Lock struct {
	fileLock *flock.Flock
}

// Acquire takes an exclusive, non-blocking lock on path.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fileLock := flock.New(path)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return &Lock{fileLock: fileLock}, nil
}

// Release drops the lock. The lock file is left in place.
func (l *Lock) Release() error {
	return l.fileLock.Unlock()
}
