// Package lock provides keyed mutexes for per-entity critical sections.
//
// The engine serializes all writes touching one inspection (response
// upserts, guard evaluation + submit) on that inspection's lock, and close/
// reassign on the owning action's lock. Locks are process-local; cross-node
// serialization is the storage layer's concern.
package lock

import "sync"

// Keyed hands out one mutex per key. Mutexes are created on first use and
// kept for the process lifetime; key cardinality is bounded by live
// inspections/actions, which is small.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyed creates an empty keyed mutex set.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
//
//	defer locks.Lock(inspectionID)()
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
