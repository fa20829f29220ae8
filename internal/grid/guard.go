package grid

// guard.go implements the single-flight "action in flight" flag shared by
// every row-level operation of a Controller.
//
// Unlike a queueing semaphore the guard never waits: a caller that finds it
// taken gets ErrBusy immediately.

import (
	"context"
	"sync"
	"time"
)

// ActionGuard is a one-slot non-blocking semaphore.
type ActionGuard struct {
	slot chan struct{}

	mu    sync.RWMutex
	owner string
	since time.Time
}

// NewActionGuard returns an idle guard.
func NewActionGuard() *ActionGuard {
	return &ActionGuard{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the guard for op without blocking.
// The caller MUST call Release when it returns true (use defer).
func (g *ActionGuard) TryAcquire(op string) bool {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.owner = op
		g.since = time.Now()
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees the guard. Calling it without a matching TryAcquire panics.
func (g *ActionGuard) Release() {
	g.mu.Lock()
	g.owner = ""
	g.since = time.Time{}
	g.mu.Unlock()

	select {
	case <-g.slot:
	default:
		panic("grid: ActionGuard released while idle")
	}
}

// Busy reports whether an operation holds the guard.
func (g *ActionGuard) Busy() bool {
	return len(g.slot) == 1
}

// GuardStatus is a snapshot of the guard for monitoring.
type GuardStatus struct {
	Busy  bool      `json:"busy"`
	Op    string    `json:"op,omitempty"`
	Since time.Time `json:"since,omitempty"`
}

// Status returns the current holder, if any.
func (g *ActionGuard) Status() GuardStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return GuardStatus{Busy: g.Busy(), Op: g.owner, Since: g.since}
}

// WaitForDrain blocks until the guard is idle or ctx is done.
// Used on shutdown so an in-flight write can finish.
func (g *ActionGuard) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
