// Package runlock serializes pipeline passes within a process and across
// processes sharing a lock file.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 250 * time.Millisecond

// ErrBusy indicates another pass holds the lock.
var ErrBusy = errors.New("another narration pass is running")

// Lock is a mutex backed by an advisory file lock.
type Lock struct {
	mu   sync.Mutex
	path string
	file *flock.Flock
}

// New returns a lock on path. The file is created on first acquisition.
func New(path string) *Lock {
	return &Lock{path: path, file: flock.New(path)}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Run waits for the lock, runs fn and releases the lock.
func (l *Lock) Run(ctx context.Context, fn func(context.Context)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked, err := l.file.TryLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}

	if !locked {
		return fmt.Errorf("acquire lock %s: %w", l.path, ErrBusy)
	}

	defer func() { _ = l.file.Unlock() }()

	fn(ctx)

	return nil
}

// TryRun runs fn only if the lock is free, returning ErrBusy otherwise.
func (l *Lock) TryRun(ctx context.Context, fn func(context.Context)) error {
	if !l.mu.TryLock() {
		return ErrBusy
	}
	defer l.mu.Unlock()

	locked, err := l.file.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}

	if !locked {
		return ErrBusy
	}

	defer func() { _ = l.file.Unlock() }()

	fn(ctx)

	return nil
}
