package chat

import (
	"sync"

	"github.com/uniadvisor/advisory-server/internal/store"
)

// EventKind is a notification pushed to a live connection.
type EventKind int

const (
	// EventNewMessage notifies the receiver about an inbound message.
	EventNewMessage EventKind = iota
	// EventMessageRead notifies the sender that their message was read.
	EventMessageRead
)

// Event is sent to connections to describe what happened.
type Event struct {
	Kind      EventKind
	Message   *store.Message // for EventNewMessage
	MessageID int64          // for EventMessageRead
	ReadBy    int64          // for EventMessageRead
}

// Conn is one live real-time connection as seen by the core layer. The
// transport drains Events and writes them to the socket.
type Conn struct {
	ID     string
	UserID int64
	Events chan *Event
}

// NewConn constructs a connection handle with an initialized event channel.
func NewConn(id string, userID int64) *Conn {
	return &Conn{
		ID:     id,
		UserID: userID,
		Events: make(chan *Event, 16),
	}
}

// send queues an event without blocking. Returns false if the buffer is
// full; a slow consumer loses the push and recovers via the unread API.
func (c *Conn) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Presence is the seam between the gateway and whatever tracks online
// users. A multi-instance deployment would back it with shared pub/sub;
// Registry is the single-instance implementation.
type Presence interface {
	Attach(c *Conn)
	Detach(c *Conn)
	Lookup(userID int64) (*Conn, bool)
	Push(userID int64, ev *Event) bool
}

// Registry is a process-wide map from user id to their live connection.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]*Conn
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]*Conn)}
}

// Attach registers the connection for its user. A prior connection for
// the same user is overwritten: last connection wins.
func (r *Registry) Attach(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.UserID] = c
}

// Detach removes the connection only if it is still the registered one,
// so a stale disconnect cannot evict a newer connection.
func (r *Registry) Detach(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[c.UserID]; ok && cur == c {
		delete(r.conns, c.UserID)
	}
}

// Lookup returns the live connection for a user, if any.
func (r *Registry) Lookup(userID int64) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Push delivers an event to the user's connection if one is attached.
// Returns false when the user is offline or the connection is backed up;
// the push is simply dropped either way.
func (r *Registry) Push(userID int64, ev *Event) bool {
	c, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	return c.send(ev)
}

var _ Presence = (*Registry)(nil)
