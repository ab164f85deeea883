// Package middleware is a websocket client for the remote management
// service. It performs RPC calls and event subscriptions and reports every
// state change it observes as a SERVER_ACTION through an Emitter.
package middleware

import (
	"encoding/json"
)

// Frame namespaces and names used on the wire.
const (
	NamespaceRPC    = "rpc"
	NamespaceEvents = "events"

	NameCall        = "call"
	NameResponse    = "response"
	NameError       = "error"
	NameSubscribe   = "subscribe"
	NameUnsubscribe = "unsubscribe"
	NameEvent       = "event"
)

// Discovery methods exposed by the middleware.
const (
	MethodGetServices = "discovery.get_services"
	MethodGetMethods  = "discovery.get_methods"
)

// Frame is one JSON message on the middleware socket. Requests carry an ID
// which the middleware echoes in its response or error frame.
type Frame struct {
	Namespace string          `json:"namespace"`
	Name      string          `json:"name"`
	ID        string          `json:"id,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// CallArgs is the argument document of an rpc/call frame.
type CallArgs struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// ErrorArgs is the argument document of an error frame.
type ErrorArgs struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EventArgs is the argument document of an events/event frame. Receivers
// decode it as a models.Event so fields beyond these two are kept.
type EventArgs struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

func newFrame(namespace, name, id string, args any) (Frame, error) {
	f := Frame{Namespace: namespace, Name: name, ID: id}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return Frame{}, err
		}
		f.Args = data
	}
	return f, nil
}

func (f Frame) isReply() bool {
	return f.ID != "" && (f.Name == NameResponse || f.Name == NameError)
}
