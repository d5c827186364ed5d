package service

import (
	"errors"
	"sync"
)

// Sentinel errors that handlers map onto specific HTTP statuses
var (
	// ErrRunActive is returned when a correlation run is requested while
	// another run holds the lock. Runs are rejected, never queued.
	ErrRunActive = errors.New("a correlation run is already active")

	// ErrStateConflict is returned when an operation targets a host or
	// conflict whose state has moved on (merged away, already resolved)
	ErrStateConflict = errors.New("target state has changed since detection")

	// ErrAlreadyLinked is returned when linking a host that belongs to a
	// different device identity
	ErrAlreadyLinked = errors.New("host is already linked to another device identity")
)

// RunLock serializes correlation runs. TryAcquire fails immediately when
// a run is active instead of blocking.
type RunLock struct {
	mu     sync.Mutex
	active bool
}

// TryAcquire claims the lock, reporting false if a run already holds it
func (l *RunLock) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return false
	}
	l.active = true
	return true
}

// Release frees the lock for the next run
func (l *RunLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
}

// Active reports whether a run currently holds the lock
func (l *RunLock) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
