// Package dispatcher delivers actions to registered stores one at a time.
//
// A Dispatcher invokes every registered callback, in registration order, for
// each payload and refuses a second Dispatch while one is running. Callers that
// produce actions from several goroutines must funnel them through a single
// writer (see internal/daemon/engine).
package dispatcher

import (
	"fmt"
	"sync"

	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/pkg/action"
)

// Token identifies a registered callback.
type Token string

// Callback receives each dispatched payload.
type Callback func(action.Payload)

type entry struct {
	token    Token
	callback Callback
}

// Dispatcher is an ordered, single-writer broadcast of action payloads.
type Dispatcher struct {
	mu        sync.Mutex
	callbacks []entry
	lastID    int

	// Dispatch state. Only touched by the goroutine that owns the running dispatch.
	dispatching bool
	pending     map[Token]bool
	handled     map[Token]bool
	current     action.Payload
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a callback and returns its token.
func (d *Dispatcher) Register(cb Callback) Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastID++
	token := Token(fmt.Sprintf("ID_%d", d.lastID))
	d.callbacks = append(d.callbacks, entry{token: token, callback: cb})
	return token
}

// Unregister removes a callback.
func (d *Dispatcher) Unregister(token Token) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.callbacks {
		if e.token == token {
			d.callbacks = append(d.callbacks[:i:i], d.callbacks[i+1:]...)
			return nil
		}
	}
	return mwerrors.UnknownToken(string(token))
}

// IsDispatching reports whether a dispatch is running.
func (d *Dispatcher) IsDispatching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatching
}

// Dispatch delivers p to every registered callback and returns once all of
// them have finished. It fails without delivering anything if a dispatch is
// already running, whether the caller is a callback or another goroutine.
func (d *Dispatcher) Dispatch(p action.Payload) error {
	if p.Action == nil {
		return mwerrors.InvalidAction("nil", "payload carries no action")
	}
	d.mu.Lock()
	if d.dispatching {
		d.mu.Unlock()
		return mwerrors.DispatchInProgress().WithDetail("type", string(p.Action.Kind()))
	}
	d.dispatching = true
	d.current = p
	callbacks := make([]entry, len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.pending = make(map[Token]bool, len(callbacks))
	d.handled = make(map[Token]bool, len(callbacks))
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.dispatching = false
		d.pending = nil
		d.handled = nil
		d.current = action.Payload{}
		d.mu.Unlock()
	}()

	byToken := indexCallbacks(callbacks)
	for _, e := range callbacks {
		if d.handled[e.token] {
			continue
		}
		d.invoke(e.token, byToken)
	}
	return nil
}

// WaitFor runs the callbacks for tokens before the caller continues. It may
// only be called from inside a callback during a dispatch.
func (d *Dispatcher) WaitFor(tokens ...Token) error {
	d.mu.Lock()
	if !d.dispatching {
		d.mu.Unlock()
		return mwerrors.New(mwerrors.ErrCodeWaitOutsideDispatch, "WaitFor must be invoked while dispatching")
	}
	callbacks := make([]entry, len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.mu.Unlock()

	byToken := indexCallbacks(callbacks)
	for _, token := range tokens {
		if d.pending[token] {
			if !d.handled[token] {
				return mwerrors.CircularWait(string(token))
			}
			continue
		}
		if _, ok := byToken[token]; !ok {
			return mwerrors.UnknownToken(string(token))
		}
		if d.handled[token] {
			continue
		}
		d.invoke(token, byToken)
	}
	return nil
}

func (d *Dispatcher) invoke(token Token, byToken map[Token]Callback) {
	d.pending[token] = true
	byToken[token](d.current)
	d.handled[token] = true
}

func indexCallbacks(callbacks []entry) map[Token]Callback {
	m := make(map[Token]Callback, len(callbacks))
	for _, e := range callbacks {
		m[e.token] = e.callback
	}
	return m
}
