// Package session maintains the volatile mapping between WebSocket
// connections and logical user identities. The mapping lives for the
// process lifetime only: a disconnect or restart erases it.
package session

import "sync"

// Registry is a thread-safe bidirectional map between connection ids and
// user ids. Binding a connection overwrites any prior association for that
// connection, and a user re-registering from a new connection simply takes
// over the user->connection direction (last bind wins).
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]string // connection id -> user id
	byUser map[string]string // user id -> connection id
}

// NewRegistry creates an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byUser: make(map[string]string),
	}
}

// Bind records a two-way association between connID and userID, replacing
// any prior association for that connection.
func (r *Registry) Bind(connID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[connID]; ok && r.byUser[prev] == connID {
		delete(r.byUser, prev)
	}
	r.byConn[connID] = userID
	r.byUser[userID] = connID
}

// Unbind removes both directions of the association for connID. Unbinding an
// unknown connection is a no-op. The user->connection direction is only
// removed when it still points at connID, so a rebind from a newer
// connection is not clobbered by a stale disconnect.
func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
	}
}

// UserIDFor returns the user id bound to connID, or "" if the connection is
// unbound.
func (r *Registry) UserIDFor(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// ConnectionFor returns the last-bound connection id for userID, or "" if
// the user has no live connection.
func (r *Registry) ConnectionFor(userID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

// Count returns the number of bound connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
