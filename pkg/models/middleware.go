// Package models holds the value types carried by middleware actions.
//
// Records arrive from the middleware with fields this package does not
// model. Each type keeps such fields in Extra and writes them back when
// encoded, so a record survives any number of decode and encode passes.
package models

import (
	"encoding/json"
	"time"
)

// Event is one event record received from the middleware event stream.
// The store treats it as opaque; Name and Args are whatever the server sent.
type Event struct {
	Name       string                     `json:"name,omitempty"`
	Args       json.RawMessage            `json:"args,omitempty"`
	ReceivedAt time.Time                  `json:"received_at,omitzero"`
	Extra      map[string]json.RawMessage `json:"-"`
}

// GetArgsAsMap decodes Args into a generic map.
func (e Event) GetArgsAsMap() (map[string]any, error) {
	if len(e.Args) == 0 {
		return make(map[string]any), nil
	}
	var data map[string]any
	if err := json.Unmarshal(e.Args, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Clone returns a copy that shares no memory with e.
func (e Event) Clone() Event {
	if e.Args != nil {
		e.Args = append(json.RawMessage(nil), e.Args...)
	}
	e.Extra = cloneExtra(e.Extra)
	return e
}

// UnmarshalJSON accepts any JSON object. Keys other than name, args and
// received_at, or known keys of an unexpected type, are kept in Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return err
	}
	*e = Event{}
	takeField(fields, "name", &e.Name)
	if raw, ok := fields["args"]; ok {
		e.Args = raw
		delete(fields, "args")
	}
	takeField(fields, "received_at", &e.ReceivedAt)
	e.Extra = extraOrNil(fields)
	return nil
}

// MarshalJSON writes the modelled fields merged with Extra.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return mergeObject(plain(e), e.Extra)
}

// RPCService describes one service advertised by the middleware.
type RPCService struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	Extra       map[string]json.RawMessage `json:"-"`
}

// Clone returns a copy that shares no memory with s.
func (s RPCService) Clone() RPCService {
	s.Extra = cloneExtra(s.Extra)
	return s
}

// UnmarshalJSON accepts either a bare service name or a full object.
func (s *RPCService) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = RPCService{Name: name}
		return nil
	}
	fields, err := splitObject(data)
	if err != nil {
		return err
	}
	*s = RPCService{}
	takeField(fields, "name", &s.Name)
	takeField(fields, "description", &s.Description)
	s.Extra = extraOrNil(fields)
	return nil
}

// MarshalJSON writes the modelled fields merged with Extra.
func (s RPCService) MarshalJSON() ([]byte, error) {
	type plain RPCService
	return mergeObject(plain(s), s.Extra)
}

// RPCMethod describes one callable method of a service.
type RPCMethod struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	Schema      json.RawMessage            `json:"schema,omitempty"`
	Extra       map[string]json.RawMessage `json:"-"`
}

// Clone returns a copy that shares no memory with m.
func (m RPCMethod) Clone() RPCMethod {
	if m.Schema != nil {
		m.Schema = append(json.RawMessage(nil), m.Schema...)
	}
	m.Extra = cloneExtra(m.Extra)
	return m
}

// UnmarshalJSON keeps descriptor keys it does not model in Extra.
func (m *RPCMethod) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return err
	}
	*m = RPCMethod{}
	takeField(fields, "name", &m.Name)
	takeField(fields, "description", &m.Description)
	if raw, ok := fields["schema"]; ok {
		m.Schema = raw
		delete(fields, "schema")
	}
	m.Extra = extraOrNil(fields)
	return nil
}

// MarshalJSON writes the modelled fields merged with Extra.
func (m RPCMethod) MarshalJSON() ([]byte, error) {
	type plain RPCMethod
	return mergeObject(plain(m), m.Extra)
}
