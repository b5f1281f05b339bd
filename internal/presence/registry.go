// Package presence tracks which live connection currently represents each user.
package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"hustlex/internal/domain"
)

// Handle is the server-side view of one live transport connection.
type Handle struct {
	ConnectionID string
	UserID       string // empty until the client joins or authenticates
	// Authenticated is set when UserID came from a verified token rather
	// than a client announcement.
	Authenticated bool
	ConnectedAt   time.Time
}

// Registry maps user ids to their active connection. A user has at most one
// entry; a newer connection replaces the older one.
type Registry struct {
	mu    sync.RWMutex
	users map[string]string  // userID -> connectionID
	conns map[string]*Handle // connectionID -> handle
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]string),
		conns: make(map[string]*Handle),
	}
}

// Connect registers a connection with no associated user.
func (r *Registry) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = &Handle{ConnectionID: connID, ConnectedAt: time.Now()}
}

// Bind associates userID with connID and makes connID the delivery target
// for userID. A connection bound through a verified token cannot be
// re-announced as a different user.
func (r *Registry) Bind(connID, userID string, authenticated bool) error {
	if userID == "" {
		return fmt.Errorf("bind %s: %w", connID, domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("bind %s: %w", connID, domain.ErrNotFound)
	}
	if h.Authenticated && h.UserID != userID {
		return domain.ErrIdentityMismatch
	}

	// The connection switched users: its previous owner is no longer
	// reachable through it.
	if h.UserID != "" && h.UserID != userID && r.users[h.UserID] == connID {
		delete(r.users, h.UserID)
	}

	h.UserID = userID
	h.Authenticated = h.Authenticated || authenticated
	r.users[userID] = connID
	return nil
}

// Lookup returns the live connection of userID, if any.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.users[userID]
	return connID, ok
}

// UserOf returns the user bound to connID, if any.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.conns[connID]
	if !ok || h.UserID == "" {
		return "", false
	}
	return h.UserID, true
}

// Handle returns a copy of the handle registered for connID.
func (r *Registry) Handle(connID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.conns[connID]
	if !ok {
		return Handle{}, false
	}
	return *h, true
}

// Disconnect drops connID. The presence entry of its user is removed only
// when it still points at connID, so a late disconnect of a replaced
// connection never clobbers the newer one. It returns the user that went
// offline, or "" when nobody did.
func (r *Registry) Disconnect(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.conns[connID]
	if !ok {
		return ""
	}
	delete(r.conns, connID)

	if h.UserID == "" || r.users[h.UserID] != connID {
		return ""
	}
	delete(r.users, h.UserID)
	return h.UserID
}

// IsOnline reports whether userID has a live connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// OnlineUsers returns the ids of all online users in sorted order.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns the number of live connections and of online users.
func (r *Registry) Stats() (connections, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.users)
}
