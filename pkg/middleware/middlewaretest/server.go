// Package middlewaretest provides an in-process middleware for tests.
package middlewaretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/grovetools/mwstate/pkg/middleware"
	"github.com/grovetools/mwstate/pkg/models"
)

// Handler answers one RPC method. A non-nil *middleware.ErrorArgs is sent
// back as an rpc/error frame.
type Handler func(args []json.RawMessage) (any, *middleware.ErrorArgs)

// Server is a fake middleware speaking the frame protocol over websocket.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	conns      map[*websocket.Conn]*sync.Mutex
	handlers   map[string]Handler
	silent     map[string]bool
	subscribed map[string]int
	services   []models.RPCService
	methods    map[string][]models.RPCMethod
	calls      []string
}

// NewServer starts a fake middleware. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		conns:      make(map[*websocket.Conn]*sync.Mutex),
		handlers:   make(map[string]Handler),
		silent:     make(map[string]bool),
		subscribed: make(map[string]int),
		methods:    make(map[string][]models.RPCMethod),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveWS))
	return s
}

// URL returns the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Close disconnects every client and stops the server.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

// SetServices sets the answer to the service discovery call.
func (s *Server) SetServices(services ...models.RPCService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = services
}

// SetMethods sets the answer to method discovery for one service.
func (s *Server) SetMethods(service string, methods ...models.RPCMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[service] = methods
}

// Handle registers a handler for method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Ignore makes the server drop calls to method without replying.
func (s *Server) Ignore(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent[method] = true
}

// Subscriptions returns the server-side subscription counts.
func (s *Server) Subscriptions() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.subscribed))
	for k, v := range s.subscribed {
		out[k] = v
	}
	return out
}

// Calls returns every RPC method called so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ConnCount returns the number of connected clients.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Publish sends an events/event frame to every connected client.
func (s *Server) Publish(name string, args any) {
	data, _ := json.Marshal(args)
	body, _ := json.Marshal(middleware.EventArgs{Name: name, Args: data})
	frame := middleware.Frame{Namespace: middleware.NamespaceEvents, Name: middleware.NameEvent, Args: body}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, wmu := range s.conns {
		wmu.Lock()
		_ = conn.WriteJSON(frame)
		wmu.Unlock()
	}
}

// DropConnections closes every client connection without a close handshake.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wmu := &sync.Mutex{}
	s.mu.Lock()
	s.conns[conn] = wmu
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var f middleware.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		reply, ok := s.answer(f)
		if !ok {
			continue
		}
		wmu.Lock()
		err := conn.WriteJSON(reply)
		wmu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Server) answer(f middleware.Frame) (middleware.Frame, bool) {
	switch {
	case f.Namespace == middleware.NamespaceEvents && (f.Name == middleware.NameSubscribe || f.Name == middleware.NameUnsubscribe):
		var masks []string
		if err := json.Unmarshal(f.Args, &masks); err != nil {
			return errorFrame(f, 22, "invalid mask list"), true
		}
		s.mu.Lock()
		for _, m := range masks {
			if f.Name == middleware.NameSubscribe {
				s.subscribed[m]++
			} else if s.subscribed[m] > 1 {
				s.subscribed[m]--
			} else {
				delete(s.subscribed, m)
			}
		}
		s.mu.Unlock()
		return middleware.Frame{Namespace: f.Namespace, Name: middleware.NameResponse, ID: f.ID}, true

	case f.Namespace == middleware.NamespaceRPC && f.Name == middleware.NameCall:
		var call struct {
			Method string            `json:"method"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(f.Args, &call); err != nil {
			return errorFrame(f, 22, "invalid call"), true
		}
		s.mu.Lock()
		s.calls = append(s.calls, call.Method)
		silent := s.silent[call.Method]
		h := s.handlers[call.Method]
		s.mu.Unlock()
		if silent {
			return middleware.Frame{}, false
		}
		if h == nil {
			h = s.builtin(call.Method)
		}
		if h == nil {
			return errorFrame(f, 78, "method not found: "+call.Method), true
		}
		result, rpcErr := h(call.Args)
		if rpcErr != nil {
			return errorFrame(f, rpcErr.Code, rpcErr.Message), true
		}
		data, _ := json.Marshal(result)
		return middleware.Frame{Namespace: f.Namespace, Name: middleware.NameResponse, ID: f.ID, Args: data}, true
	}
	return errorFrame(f, 22, "unsupported frame"), true
}

func (s *Server) builtin(method string) Handler {
	switch method {
	case middleware.MethodGetServices:
		return func([]json.RawMessage) (any, *middleware.ErrorArgs) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.services, nil
		}
	case middleware.MethodGetMethods:
		return func(args []json.RawMessage) (any, *middleware.ErrorArgs) {
			if len(args) != 1 {
				return nil, &middleware.ErrorArgs{Code: 22, Message: "service name required"}
			}
			var service string
			_ = json.Unmarshal(args[0], &service)
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.methods[service], nil
		}
	}
	return nil
}

func errorFrame(f middleware.Frame, code int, message string) middleware.Frame {
	body, _ := json.Marshal(middleware.ErrorArgs{Code: code, Message: message})
	return middleware.Frame{Namespace: f.Namespace, Name: middleware.NameError, ID: f.ID, Args: body}
}
