// Package registry holds the Gateway's live map from Node identifier to its
// registered QUIC connection.
package registry

import (
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/identifier"
	"github.com/reformc/rweb/internal/reformerr"
)

// Registry is the Gateway's identifier -> connection table. A Node may
// register more than one identifier over the same connection; registering
// any one of them that already belongs to a live connection rejects the
// whole batch, leaving the previous registration untouched.
type Registry struct {
	mu    sync.RWMutex
	conns map[identifier.ID]*quic.Conn
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{conns: make(map[identifier.ID]*quic.Conn)}
}

// RegisterAll inserts every id in ids bound to conn, or rejects the whole
// batch if any id is already registered to a different connection. A
// connection's entries stay in place until Unregister removes them, whether
// or not it is still open. Re-registering the same identifier set on the
// same connection is not treated as a conflict.
func (r *Registry) RegisterAll(ids []identifier.ID, conn *quic.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if existing, ok := r.conns[id]; ok && existing != conn {
			return reformerr.New(reformerr.CodeDuplicateRegistration, "identifier already registered: "+id.String())
		}
	}
	for _, id := range ids {
		r.conns[id] = conn
	}
	return nil
}

// Lookup returns the connection registered for id, if any.
func (r *Registry) Lookup(id identifier.ID) (*quic.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Unregister removes every identifier currently bound to conn. Called when
// a Node's connection closes.
func (r *Registry) Unregister(conn *quic.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conns {
		if c == conn {
			delete(r.conns, id)
		}
	}
}

// Len reports the number of registered identifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
