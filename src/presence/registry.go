// Package presence tracks which connection currently represents each user.
package presence

import (
	"sort"
	"sync"
)

// Registry maps user ids to the id of their live connection.
// At most one connection is associated with a user at any time.
type Registry interface {
	// Register binds userID to connID, replacing any earlier binding.
	Register(userID, connID string)
	// Unregister removes the entry owned by connID. It reports the user
	// that was removed, or false when connID owns no entry.
	Unregister(connID string) (userID string, removed bool)
	// Lookup returns the connection currently bound to userID.
	Lookup(userID string) (connID string, ok bool)
	// Users returns the ids of all registered users, sorted.
	Users() []string
	// Len returns the number of registered users.
	Len() int
}

// MemoryRegistry is a process-local Registry. The zero value is not usable;
// call NewMemoryRegistry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	users map[string]string // userID -> connID
	conns map[string]string // connID -> userID
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		users: make(map[string]string),
		conns: make(map[string]string),
	}
}

func (r *MemoryRegistry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection previously represented someone else.
	if prev, ok := r.conns[connID]; ok && prev != userID {
		if r.users[prev] == connID {
			delete(r.users, prev)
		}
	}
	// The user was on another connection; that connection is orphaned.
	if old, ok := r.users[userID]; ok && old != connID {
		delete(r.conns, old)
	}

	r.users[userID] = connID
	r.conns[connID] = userID
}

func (r *MemoryRegistry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	if r.users[userID] != connID {
		return "", false
	}
	delete(r.users, userID)
	return userID, true
}

func (r *MemoryRegistry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.users[userID]
	return connID, ok
}

func (r *MemoryRegistry) Users() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
