package store

import (
	"sync"

	"github.com/grovetools/mwstate/logging"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/dispatcher"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/sirupsen/logrus"
)

// Store is the middleware store. Its state is mutated only by the callback it
// registers with the dispatcher; everything else reads through accessors,
// which return copies.
type Store struct {
	mu      sync.RWMutex
	state   *State
	changes notify.Channel

	dispatcher *dispatcher.Dispatcher
	token      dispatcher.Token
	logger     *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for consistency warnings.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store and registers it with d.
func New(d *dispatcher.Dispatcher, opts ...Option) *Store {
	s := &Store{
		state:      newState(),
		dispatcher: d,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("store")
	}
	s.token = d.Register(s.handle)
	return s
}

// DispatchToken returns the token of the store's dispatcher callback, for use
// with Dispatcher.WaitFor by stores that depend on this one.
func (s *Store) DispatchToken() dispatcher.Token {
	return s.token
}

// Close unregisters the store from its dispatcher. The store keeps its last
// state but no longer receives actions.
func (s *Store) Close() error {
	return s.dispatcher.Unregister(s.token)
}

// Reset empties all state and publishes an untagged change.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = newState()
	s.mu.Unlock()
	s.changes.Publish(notify.None)
}

// AddChangeListener registers fn to be called after every state change.
// fn runs synchronously on the dispatching goroutine and receives only the
// namespace that changed; it should re-query the accessors it cares about.
func (s *Store) AddChangeListener(fn notify.Listener) notify.ListenerID {
	return s.changes.Add(fn)
}

// RemoveChangeListener unregisters a listener added with AddChangeListener.
func (s *Store) RemoveChangeListener(id notify.ListenerID) bool {
	return s.changes.Remove(id)
}

// handle applies one action. Unrecognized actions change nothing and publish nothing.
func (s *Store) handle(p action.Payload) {
	ns, ok := s.apply(p.Action)
	if !ok {
		s.logger.WithField("type", string(p.Action.Kind())).Debug("Ignoring unrecognized action")
		return
	}
	s.changes.Publish(ns)
}

// apply mutates state under the write lock and reports the namespace to publish.
func (s *Store) apply(a action.Action) (notify.Namespace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch act := a.(type) {
	case action.SubscribeToMask:
		s.state.Subscriptions[act.Mask]++
		return notify.Subscriptions, true

	case action.UnsubscribeFromMask:
		count, ok := s.state.Subscriptions[act.Mask]
		switch {
		case !ok:
			s.logger.WithField("mask", act.Mask).
				Warnf("Tried to unsubscribe from '%s', but the store shows no active subscriptions", act.Mask)
		case count <= 1:
			delete(s.state.Subscriptions, act.Mask)
		default:
			s.state.Subscriptions[act.Mask] = count - 1
		}
		return notify.Subscriptions, true

	case action.MiddlewareEvent:
		events := make([]models.Event, 0, len(s.state.Events)+1)
		events = append(events, act.EventData.Clone())
		s.state.Events = append(events, s.state.Events...)
		return notify.Events, true

	case action.LogMiddlewareTaskQueue:
		// Reserved: task-queue tracking is not modelled yet.
		return notify.None, true

	case action.ReceiveRPCServices:
		s.state.Services = cloneServices(act.Services)
		return notify.Services, true

	case action.ReceiveRPCServiceMethods:
		s.state.Methods[act.Service] = cloneMethods(act.Methods)
		return notify.Methods, true

	case action.Unknown:
		return notify.None, false
	}
	return notify.None, false
}
