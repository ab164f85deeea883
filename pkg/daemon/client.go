// Package daemon provides a client interface for reading the middleware store
// kept by the mwstate daemon (mwstated). It implements a transparent fallback
// pattern: if the daemon is running, query it over its socket; if not, use an
// in-process store.
package daemon

import (
	"context"

	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/grovetools/mwstate/pkg/store"
)

// Client defines the interface for reading and driving a middleware store.
// Both RemoteClient (daemon) and LocalClient (in-process) implement it.
type Client interface {
	// GetState returns the whole store state.
	GetState(ctx context.Context) (*store.State, error)

	// GetAllSubscriptions returns every active mask with its subscriber count.
	GetAllSubscriptions(ctx context.Context) (map[string]int, error)

	// GetNumberOfSubscriptions returns one mask's count; ok is false when the
	// mask has no active subscriptions.
	GetNumberOfSubscriptions(ctx context.Context, mask string) (count int, ok bool, err error)

	// GetAvailableRPCServices returns the known service list.
	GetAvailableRPCServices(ctx context.Context) ([]models.RPCService, error)

	// GetAvailableRPCMethods returns the known methods of every service.
	GetAvailableRPCMethods(ctx context.Context) (map[string][]models.RPCMethod, error)

	// GetEventLog returns received events, most recent first.
	GetEventLog(ctx context.Context) ([]models.Event, error)

	// Dispatch submits an action as a VIEW_ACTION.
	Dispatch(ctx context.Context, a action.Action) error

	// StreamChanges delivers the namespace of every store change until ctx is
	// done. The channel is closed when the stream ends. Changes carry no
	// state; re-query the matching getter.
	StreamChanges(ctx context.Context) (<-chan notify.Namespace, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// Change is one message of the daemon's change stream.
type Change struct {
	Namespace notify.Namespace `json:"namespace"`
}
