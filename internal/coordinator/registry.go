package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sendQueueSize bounds the per-connection outbound queue. A connection that
// falls this far behind is treated as unreachable and removed.
const sendQueueSize = 64

// member is one registered connection together with its transport and its
// FIFO outbound queue. The queue is drained by a single writer goroutine,
// which preserves publish order per connection.
type member struct {
	conn      *Connection
	transport Transport
	queue     chan Event
}

// Registry holds the set of currently connected realtime clients and their
// roles. All mutation goes through Admit, Promote, and Remove; reads are
// safe from any goroutine.
type Registry struct {
	mu      sync.RWMutex
	members map[ConnectionID]*member
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[ConnectionID]*member)}
}

// Admit registers a new connection with role viewer and an empty outbound
// queue. baseline, if non-nil, is enqueued before the member becomes visible
// to publishers, so a late joiner always sees the current-state snapshot
// before any delta.
func (r *Registry) Admit(t Transport, baseline *Event) *member {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := &member{
		conn: &Connection{
			ID:       ConnectionID(uuid.NewString()),
			Role:     RoleViewer,
			JoinedAt: time.Now().UTC(),
		},
		transport: t,
		queue:     make(chan Event, sendQueueSize),
	}
	if baseline != nil {
		m.queue <- *baseline
	}
	r.members[m.conn.ID] = m
	return m
}

// Promote sets the connection's role to broadcaster. Idempotent; a missing
// connection is a no-op. A promoted role is never demoted except by removal.
func (r *Registry) Promote(id ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.members[id]; ok {
		m.conn.Role = RoleBroadcaster
	}
}

// Remove deletes the connection and closes its outbound queue, which lets
// the writer goroutine drain and close the transport. Idempotent; reports
// whether the connection was registered.
func (r *Registry) Remove(id ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return false
	}
	delete(r.members, id)
	close(m.queue)
	return true
}

// Role reports the current role of the connection, if registered.
func (r *Registry) Role(id ConnectionID) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return "", false
	}
	return m.conn.Role, true
}

// CountByRole returns the number of registered connections with the given
// role. Reflects removals synchronously.
func (r *Registry) CountByRole(role Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, m := range r.members {
		if m.conn.Role == role {
			n++
		}
	}
	return n
}

// Size returns the total number of registered connections.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// snapshot returns a copy of the current member list so fan-out can iterate
// without holding the lock and without faulting on concurrent removal.
func (r *Registry) snapshot() []*member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}
