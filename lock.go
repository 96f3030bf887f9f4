package radio

import "sync"

// LockGuard holds a lock until Release is called. Release is idempotent, so a
// guard can be released early and still be released again by a deferred call:
//
//	g := radio.Lock(mu)
//	defer g.Release()
//
// Guards protect the shared packet buffer and are never held across a wait.
type LockGuard struct {
	l    sync.Locker
	held bool
}

// Lock acquires l and returns the guard owning it.
func Lock(l sync.Locker) *LockGuard {
	l.Lock()
	return &LockGuard{l: l, held: true}
}

// Release unlocks the guarded lock if it is still held.
func (g *LockGuard) Release() {
	if g == nil || !g.held {
		return
	}
	g.held = false
	g.l.Unlock()
}

// Held reports whether the guard still owns its lock.
func (g *LockGuard) Held() bool {
	return g != nil && g.held
}
