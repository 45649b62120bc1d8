package tasks

import (
	"fmt"
	"sync/atomic"

	"github.com/desertthunder/crate/internal/shared"
	"github.com/gofrs/flock"
)

// RunGuard allows one ingest run at a time, within this process and, when given a lock
// file, across processes sharing the catalog.
type RunGuard struct {
	active atomic.Bool
	lock   *flock.Flock
}

// NewRunGuard creates a guard. An empty lockPath guards this process only.
func NewRunGuard(lockPath string) *RunGuard {
	g := &RunGuard{}
	if lockPath != "" {
		g.lock = flock.New(lockPath)
	}
	return g
}

// Acquire claims the guard or returns [shared.ErrRunActive]. The returned func releases it.
func (g *RunGuard) Acquire() (func(), error) {
	if !g.active.CompareAndSwap(false, true) {
		return nil, shared.ErrRunActive
	}

	if g.lock != nil {
		locked, err := g.lock.TryLock()
		if err != nil {
			g.active.Store(false)
			return nil, fmt.Errorf("failed to acquire run lock %s: %w", g.lock.Path(), err)
		}
		if !locked {
			g.active.Store(false)
			return nil, fmt.Errorf("%w: lock %s is held by another process", shared.ErrRunActive, g.lock.Path())
		}
	}

	return func() {
		if g.lock != nil {
			_ = g.lock.Unlock()
		}
		g.active.Store(false)
	}, nil
}

// Active reports whether this process holds the guard.
func (g *RunGuard) Active() bool {
	return g.active.Load()
}
