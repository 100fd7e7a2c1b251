// Package instance guards against two monitors serving the same memento
// root.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrRunning is returned when another monitor holds the lock.
var ErrRunning = errors.New("another monitor instance is running")

// Acquire takes the lock at path, creating its directory.
func Acquire(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	l := NewFileLock(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock: %s)", ErrRunning, path)
	}
	return l, nil
}
