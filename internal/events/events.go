// Package events is the in-process broadcast layer that carries CRM
// mutations from REST handlers to connected SSE viewers. Delivery is
// synchronous, in-process only, and does not fan out across instances.
package events

import (
	"sync"
)

// Resource names a kind of CRM record.
type Resource string

const (
	ResourceContact Resource = "contact"
	ResourceCompany Resource = "company"
	ResourceProject Resource = "project"
)

// Resources lists every resource with its own channel.
var Resources = []Resource{ResourceContact, ResourceCompany, ResourceProject}

// Action is the mutation that produced an event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Type returns the wire event type, e.g. "contact.created".
func Type(r Resource, a Action) string {
	return string(r) + "." + string(a)
}

// Types returns the three mutation event types for a resource.
func Types(r Resource) []string {
	return []string{Type(r, ActionCreated), Type(r, ActionUpdated), Type(r, ActionDeleted)}
}

// Event is a single domain event. Data is the record (or {id} on delete).
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Listener receives published events. It runs on the publisher's
// goroutine and must not block.
type Listener func(Event)

// Channel is a named pub/sub bus with listeners keyed by event type.
type Channel struct {
	name string

	mu        sync.RWMutex
	nextID    uint64
	listeners map[string]map[uint64]Listener
}

// NewChannel creates an empty channel.
func NewChannel(name string) *Channel {
	return &Channel{
		name:      name,
		listeners: map[string]map[uint64]Listener{},
	}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Subscribe registers fn for each of the given event types. The returned
// Subscription removes every registration at once.
func (c *Channel) Subscribe(fn Listener, types ...string) *Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	for _, t := range types {
		if c.listeners[t] == nil {
			c.listeners[t] = map[uint64]Listener{}
		}
		c.listeners[t][id] = fn
	}
	c.mu.Unlock()

	return &Subscription{channel: c, id: id, types: types}
}

// Publish delivers ev to every listener registered for ev.Type. Listeners
// are snapshotted first so one may unsubscribe while being called.
func (c *Channel) Publish(ev Event) {
	c.mu.RLock()
	registered := c.listeners[ev.Type]
	fns := make([]Listener, 0, len(registered))
	for _, fn := range registered {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// ListenerCount returns the number of registrations for an event type.
func (c *Channel) ListenerCount(eventType string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners[eventType])
}

func (c *Channel) remove(id uint64, types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range types {
		if m := c.listeners[t]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(c.listeners, t)
			}
		}
	}
}

// Subscription is a handle to a set of listener registrations.
type Subscription struct {
	channel *Channel
	id      uint64
	types   []string
	once    sync.Once
}

// Unsubscribe removes the registrations. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.channel.remove(s.id, s.types)
	})
}

// Hub owns one channel per resource. It is created once by the server and
// passed to the handlers that publish and subscribe.
type Hub struct {
	channels map[Resource]*Channel
}

// NewHub creates the contacts, companies and projects channels.
func NewHub() *Hub {
	h := &Hub{channels: make(map[Resource]*Channel, len(Resources))}
	for _, r := range Resources {
		h.channels[r] = NewChannel(string(r))
	}
	return h
}

// Channel returns the channel for r, or nil for an unknown resource.
func (h *Hub) Channel(r Resource) *Channel {
	return h.channels[r]
}

// Publish emits a mutation event on the resource's channel.
func (h *Hub) Publish(r Resource, a Action, data any) {
	if ch := h.channels[r]; ch != nil {
		ch.Publish(Event{Type: Type(r, a), Data: data})
	}
}
