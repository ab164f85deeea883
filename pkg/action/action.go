// Package action defines the closed set of actions that drive the middleware store.
//
// Every action is one of the concrete types in this file. The Action interface is
// sealed by an unexported method so that a type switch over the kinds below is
// the complete vocabulary; Unknown carries anything else a producer sends.
package action

import (
	"github.com/grovetools/mwstate/pkg/models"
)

// Kind is the wire name of an action type.
type Kind string

const (
	KindSubscribeToMask          Kind = "SUBSCRIBE_TO_MASK"
	KindUnsubscribeFromMask      Kind = "UNSUBSCRIBE_FROM_MASK"
	KindMiddlewareEvent          Kind = "MIDDLEWARE_EVENT"
	KindLogMiddlewareTaskQueue   Kind = "LOG_MIDDLEWARE_TASK_QUEUE"
	KindReceiveRPCServices       Kind = "RECEIVE_RPC_SERVICES"
	KindReceiveRPCServiceMethods Kind = "RECEIVE_RPC_SERVICE_METHODS"
)

// Kinds lists every known kind in declaration order.
var Kinds = []Kind{
	KindSubscribeToMask,
	KindUnsubscribeFromMask,
	KindMiddlewareEvent,
	KindLogMiddlewareTaskQueue,
	KindReceiveRPCServices,
	KindReceiveRPCServiceMethods,
}

// Action is a single state-changing instruction.
type Action interface {
	Kind() Kind
	sealed()
}

// SubscribeToMask records one more subscriber for Mask.
type SubscribeToMask struct {
	Mask string `json:"mask"`
}

// UnsubscribeFromMask releases one subscriber for Mask.
type UnsubscribeFromMask struct {
	Mask string `json:"mask"`
}

// MiddlewareEvent carries an event received from the middleware.
type MiddlewareEvent struct {
	EventData models.Event `json:"eventData"`
}

// LogMiddlewareTaskQueue is reserved for task-queue tracking. The store
// accepts it and publishes an untagged change but keeps no task state.
type LogMiddlewareTaskQueue struct{}

// ReceiveRPCServices replaces the known service list.
type ReceiveRPCServices struct {
	Services []models.RPCService `json:"services"`
}

// ReceiveRPCServiceMethods replaces the method list of a single service.
type ReceiveRPCServiceMethods struct {
	Service string             `json:"service"`
	Methods []models.RPCMethod `json:"methods"`
}

// Unknown is an action whose type is not part of this vocabulary.
// It is kept so newer producers never break decoding.
type Unknown struct {
	Type string `json:"type"`
	Raw  []byte `json:"-"`
}

func (SubscribeToMask) Kind() Kind          { return KindSubscribeToMask }
func (UnsubscribeFromMask) Kind() Kind      { return KindUnsubscribeFromMask }
func (MiddlewareEvent) Kind() Kind          { return KindMiddlewareEvent }
func (LogMiddlewareTaskQueue) Kind() Kind   { return KindLogMiddlewareTaskQueue }
func (ReceiveRPCServices) Kind() Kind       { return KindReceiveRPCServices }
func (ReceiveRPCServiceMethods) Kind() Kind { return KindReceiveRPCServiceMethods }
func (u Unknown) Kind() Kind                { return Kind(u.Type) }

func (SubscribeToMask) sealed()          {}
func (UnsubscribeFromMask) sealed()      {}
func (MiddlewareEvent) sealed()          {}
func (LogMiddlewareTaskQueue) sealed()   {}
func (ReceiveRPCServices) sealed()       {}
func (ReceiveRPCServiceMethods) sealed() {}
func (Unknown) sealed()                  {}

// Source identifies who produced an action.
type Source string

const (
	// SourceView marks actions that originate from user interaction.
	SourceView Source = "VIEW_ACTION"
	// SourceServer marks actions that originate from the middleware connection.
	SourceServer Source = "SERVER_ACTION"
)

// Payload is the envelope delivered to every registered dispatcher callback.
type Payload struct {
	Source Source
	Action Action
}

// ViewAction wraps a in a payload sourced from the UI.
func ViewAction(a Action) Payload {
	return Payload{Source: SourceView, Action: a}
}

// ServerAction wraps a in a payload sourced from the middleware.
func ServerAction(a Action) Payload {
	return Payload{Source: SourceServer, Action: a}
}
