// Package notify implements the change-notification channel of a store.
//
// A publication carries only a Namespace naming the sub-state that changed.
// Listeners are expected to read the new state back through the store's
// accessors; the channel never transports state.
package notify

import "sync"

// Namespace tags which part of a store changed.
type Namespace string

const (
	None          Namespace = ""
	Subscriptions Namespace = "subscriptions"
	Events        Namespace = "events"
	Services      Namespace = "services"
	Methods       Namespace = "methods"
)

// Namespaces lists every tagged namespace.
var Namespaces = []Namespace{Subscriptions, Events, Services, Methods}

// Listener is called once per publication.
type Listener func(Namespace)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

type registration struct {
	id ListenerID
	fn Listener
}

// Channel is an ordered list of listeners with a synchronous Publish.
// The zero value is ready to use.
type Channel struct {
	mu        sync.Mutex
	listeners []registration
	nextID    ListenerID
}

// Add registers fn and returns its id.
func (c *Channel) Add(fn Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, registration{id: c.nextID, fn: fn})
	return c.nextID
}

// Remove unregisters a listener. It reports whether the id was registered.
func (c *Channel) Remove(id ListenerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.listeners {
		if r.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Publish calls every listener registered at the time of the call, in
// registration order, on the calling goroutine. Listeners may add or remove
// listeners; such changes apply from the next Publish.
func (c *Channel) Publish(ns Namespace) {
	c.mu.Lock()
	snapshot := make([]registration, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	for _, r := range snapshot {
		r.fn(ns)
	}
}
