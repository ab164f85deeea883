package daemon

import (
	"context"
	"sync"

	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/dispatcher"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/sirupsen/logrus"
)

// localStreamBuffer is the number of change tags held for a slow reader.
const localStreamBuffer = 64

// LocalClient implements Client over an in-process dispatcher and store.
// This is used when the daemon is not running, providing the same API but
// with state that lives only as long as the client.
type LocalClient struct {
	dispatcher *dispatcher.Dispatcher
	store      *store.Store

	// dispatchMu serializes Dispatch so concurrent callers never collide
	// inside the dispatcher.
	dispatchMu sync.Mutex
}

// NewLocalClient creates a LocalClient with a fresh, empty store.
func NewLocalClient() *LocalClient {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	d := dispatcher.New()
	st := store.New(d, store.WithLogger(logrus.NewEntry(logger).WithField("component", "store")))
	return NewLocalClientWithStore(d, st)
}

// NewLocalClientWithStore wraps an existing dispatcher and the store registered with it.
func NewLocalClientWithStore(d *dispatcher.Dispatcher, st *store.Store) *LocalClient {
	return &LocalClient{dispatcher: d, store: st}
}

// Store returns the underlying store.
func (c *LocalClient) Store() *store.Store {
	return c.store
}

// GetState returns a snapshot of the store.
func (c *LocalClient) GetState(ctx context.Context) (*store.State, error) {
	state := c.store.Snapshot()
	return &state, nil
}

// GetAllSubscriptions returns every active mask with its count.
func (c *LocalClient) GetAllSubscriptions(ctx context.Context) (map[string]int, error) {
	return c.store.GetAllSubscriptions(), nil
}

// GetNumberOfSubscriptions returns one mask's count.
func (c *LocalClient) GetNumberOfSubscriptions(ctx context.Context, mask string) (int, bool, error) {
	count, ok := c.store.GetNumberOfSubscriptions(mask)
	return count, ok, nil
}

// GetAvailableRPCServices returns the known services.
func (c *LocalClient) GetAvailableRPCServices(ctx context.Context) ([]models.RPCService, error) {
	return c.store.GetAvailableRPCServices(), nil
}

// GetAvailableRPCMethods returns the known methods per service.
func (c *LocalClient) GetAvailableRPCMethods(ctx context.Context) (map[string][]models.RPCMethod, error) {
	return c.store.GetAvailableRPCMethods(), nil
}

// GetEventLog returns received events, most recent first.
func (c *LocalClient) GetEventLog(ctx context.Context) ([]models.Event, error) {
	return c.store.GetEventLog(), nil
}

// Dispatch applies a synchronously.
func (c *LocalClient) Dispatch(ctx context.Context, a action.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	return c.dispatcher.Dispatch(action.ViewAction(a))
}

// StreamChanges forwards store changes until ctx is done. Like the daemon
// stream it starts with an untagged change, and a reader that falls behind
// the buffer receives an untagged change in place of the tags it missed.
func (c *LocalClient) StreamChanges(ctx context.Context) (<-chan notify.Namespace, error) {
	queue := notify.NewQueue(localStreamBuffer)
	id := c.store.AddChangeListener(queue.Push)

	ch := make(chan notify.Namespace)
	go func() {
		defer close(ch)
		defer c.store.RemoveChangeListener(id)

		ns := notify.None
		for {
			select {
			case ch <- ns:
			case <-ctx.Done():
				return
			}
			var err error
			if ns, err = queue.Next(ctx); err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// IsRunning always returns false for LocalClient since it doesn't use the daemon.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close unregisters the store from its dispatcher.
func (c *LocalClient) Close() error {
	return c.store.Close()
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
