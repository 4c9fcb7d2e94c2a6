// Package presence tracks which users currently hold a live connection.
//
// The registry is the single shared mutable structure in the process. It is
// constructed once in main and handed by reference to every connection task,
// never reached through a package-level variable. Operations hold the lock
// only for the duration of the map access and perform no I/O.
package presence

import (
	"sort"
	"sync"
)

// Registry maps user ids to an opaque live-connection handle. A user has at
// most one reachable handle at a time; binding again overwrites the prior
// handle (last-bind-wins).
type Registry[H comparable] struct {
	mu      sync.RWMutex
	entries map[int]H
}

func NewRegistry[H comparable]() *Registry[H] {
	return &Registry[H]{
		entries: make(map[int]H),
	}
}

// Bind records the handle for userId, replacing any existing entry.
func (r *Registry[H]) Bind(userId int, handle H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userId] = handle
}

// Unbind removes the entry for userId. Unbinding a user that was never
// bound is a no-op.
func (r *Registry[H]) Unbind(userId int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userId)
}

// UnbindIf removes the entry for userId only when it still holds handle.
// A connection closing after the user rebound elsewhere must not evict the
// newer handle.
func (r *Registry[H]) UnbindIf(userId int, handle H) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[userId]; ok && cur == handle {
		delete(r.entries, userId)
		return true
	}
	return false
}

// Lookup returns the handle bound to userId, if any.
func (r *Registry[H]) Lookup(userId int) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[userId]
	return h, ok
}

// Online reports whether userId is currently bound. It exists so callers
// that only need a presence decision depend on a narrower interface than
// the full registry.
func (r *Registry[H]) Online(userId int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userId]
	return ok
}

// Snapshot returns the ids of all currently bound users in ascending order.
func (r *Registry[H]) Snapshot() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Ints(ids)
	return ids
}
