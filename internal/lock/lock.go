// Package lock provides the single-writer advisory lock over the state
// document directory, enforcing the "concurrent orchestrators are not
// supported" resource rule.
package lock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// RunLock guards exclusive access to one orchestrator's state directory.
type RunLock struct {
	fl *flock.Flock
}

// Acquire takes a non-blocking exclusive lock on path. It returns an error
// naming the likely holder if the lock is already held — advisory only,
// sufficient because the orchestrator is assumed to be the sole writer.
func Acquire(path string) (*RunLock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("run lock %s is already held by another orchestrator process", path)
	}
	return &RunLock{fl: fl}, nil
}

// Release drops the lock. Safe to call on a nil *RunLock.
func (l *RunLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
