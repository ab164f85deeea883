package store

import (
	"github.com/grovetools/mwstate/pkg/models"
)

// GetAllSubscriptions returns every active mask with its subscriber count.
func (s *Store) GetAllSubscriptions() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.state.Subscriptions))
	for mask, count := range s.state.Subscriptions {
		out[mask] = count
	}
	return out
}

// GetNumberOfSubscriptions returns the subscriber count for mask. ok is false
// when the mask has no active subscriptions.
func (s *Store) GetNumberOfSubscriptions(mask string) (count int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, ok = s.state.Subscriptions[mask]
	return count, ok
}

// IsSubscribed reports whether mask has at least one subscriber.
func (s *Store) IsSubscribed(mask string) bool {
	_, ok := s.GetNumberOfSubscriptions(mask)
	return ok
}

// GetAvailableRPCServices returns the last received service list.
func (s *Store) GetAvailableRPCServices() []models.RPCService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneServices(s.state.Services)
}

// GetAvailableRPCMethods returns the method list of every known service.
func (s *Store) GetAvailableRPCMethods() map[string][]models.RPCMethod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMethodMap(s.state.Methods)
}

// GetRPCMethods returns the methods of one service, or nil if none were received.
func (s *Store) GetRPCMethods(service string) []models.RPCMethod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	methods, ok := s.state.Methods[service]
	if !ok {
		return nil
	}
	return cloneMethods(methods)
}

// GetEventLog returns all received events, most recent first.
func (s *Store) GetEventLog() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEvents(s.state.Events)
}

// Snapshot returns a copy of the whole state taken under a single read lock.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make(map[string]int, len(s.state.Subscriptions))
	for mask, count := range s.state.Subscriptions {
		subs[mask] = count
	}
	return State{
		Subscriptions: subs,
		Services:      cloneServices(s.state.Services),
		Methods:       cloneMethodMap(s.state.Methods),
		Events:        cloneEvents(s.state.Events),
	}
}

func cloneServices(in []models.RPCService) []models.RPCService {
	out := make([]models.RPCService, len(in))
	for i, svc := range in {
		out[i] = svc.Clone()
	}
	return out
}

func cloneMethods(in []models.RPCMethod) []models.RPCMethod {
	out := make([]models.RPCMethod, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func cloneMethodMap(in map[string][]models.RPCMethod) map[string][]models.RPCMethod {
	out := make(map[string][]models.RPCMethod, len(in))
	for service, methods := range in {
		out[service] = cloneMethods(methods)
	}
	return out
}

func cloneEvents(in []models.Event) []models.Event {
	out := make([]models.Event, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
