// Package store provides the middleware store: the client-side mirror of the
// remote middleware's subscriptions, RPC catalogue and recent events.
//
// The store is driven exclusively by actions delivered through a
// dispatcher.Dispatcher. After every recognized action it publishes a change
// tagged with the notify.Namespace of the sub-state that changed. Listeners
// receive only that tag and must read the new state back through the
// accessors; state is pulled, never pushed.
package store

import (
	"github.com/grovetools/mwstate/pkg/models"
)

// State is a point-in-time copy of everything the store holds.
type State struct {
	Subscriptions map[string]int                `json:"subscriptions"`
	Services      []models.RPCService           `json:"services"`
	Methods       map[string][]models.RPCMethod `json:"methods"`
	Events        []models.Event                `json:"events"`
}

func newState() *State {
	return &State{
		Subscriptions: make(map[string]int),
		Services:      []models.RPCService{},
		Methods:       make(map[string][]models.RPCMethod),
		Events:        []models.Event{},
	}
}
