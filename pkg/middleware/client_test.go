package middleware_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/middleware"
	"github.com/grovetools/mwstate/pkg/middleware/middlewaretest"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	payloads []action.Payload
}

func (r *recorder) emit(_ context.Context, p action.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recorder) actions() []action.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]action.Action, len(r.payloads))
	for i, p := range r.payloads {
		out[i] = p.Action
	}
	return out
}

func dial(t *testing.T, srv *middlewaretest.Server, rec *recorder) *middleware.Client {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	c, err := middleware.Dial(context.Background(), srv.URL(), middleware.Options{
		DialTimeout: time.Second,
		CallTimeout: 2 * time.Second,
		Emit:        rec.emit,
		Logger:      logrus.NewEntry(logger),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCall(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	srv.Handle("volumes.query", func(args []json.RawMessage) (any, *middleware.ErrorArgs) {
		return []string{"tank", "backup"}, nil
	})

	c := dial(t, srv, &recorder{})
	raw, err := c.Call(context.Background(), "volumes.query")
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal(raw, &names))
	assert.Equal(t, []string{"tank", "backup"}, names)
	assert.Equal(t, []string{"volumes.query"}, srv.Calls())
}

func TestCallError(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	srv.Handle("volumes.get", func(args []json.RawMessage) (any, *middleware.ErrorArgs) {
		return nil, &middleware.ErrorArgs{Code: 2, Message: "Volume tank not found"}
	})

	c := dial(t, srv, &recorder{})
	_, err := c.Call(context.Background(), "volumes.get", "tank")
	require.Error(t, err)
	assert.True(t, mwerrors.Is(err, mwerrors.ErrCodeRPCError))

	var mwErr *mwerrors.MWError
	require.ErrorAs(t, err, &mwErr)
	assert.Equal(t, 2, mwErr.Details["rpcCode"])
	assert.Contains(t, mwErr.Message, "Volume tank not found")
}

func TestCallTimeout(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	srv.Ignore("slow.method")

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	c, err := middleware.Dial(context.Background(), srv.URL(), middleware.Options{
		CallTimeout: 50 * time.Millisecond,
		Logger:      logrus.NewEntry(logger),
	})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(context.Background(), "slow.method")
	assert.True(t, mwerrors.Is(err, mwerrors.ErrCodeRPCTimeout))
}

func TestSubscribeEmitsPerMask(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	rec := &recorder{}
	c := dial(t, srv, rec)

	require.NoError(t, c.Subscribe(context.Background(), "entity-subscriber.volumes.changed", "task.*"))
	require.NoError(t, c.Unsubscribe(context.Background(), "task.*"))

	assert.Equal(t, []action.Action{
		action.SubscribeToMask{Mask: "entity-subscriber.volumes.changed"},
		action.SubscribeToMask{Mask: "task.*"},
		action.UnsubscribeFromMask{Mask: "task.*"},
	}, rec.actions())
	assert.Equal(t, map[string]int{"entity-subscriber.volumes.changed": 1}, srv.Subscriptions())

	rec.mu.Lock()
	for _, p := range rec.payloads {
		assert.Equal(t, action.SourceServer, p.Source)
	}
	rec.mu.Unlock()
}

func TestInboundEventEmitsMiddlewareEvent(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	rec := &recorder{}
	c := dial(t, srv, rec)
	require.NoError(t, c.Subscribe(context.Background(), "volumes.changed"))

	srv.Publish("volumes.changed", map[string]any{"operation": "create", "ids": []string{"tank"}})

	require.Eventually(t, func() bool { return len(rec.actions()) == 2 }, 2*time.Second, 10*time.Millisecond)
	ev, ok := rec.actions()[1].(action.MiddlewareEvent)
	require.True(t, ok)
	assert.Equal(t, "volumes.changed", ev.EventData.Name)
	assert.False(t, ev.EventData.ReceivedAt.IsZero())

	args, err := ev.EventData.GetArgsAsMap()
	require.NoError(t, err)
	assert.Equal(t, "create", args["operation"])
}

func TestDiscovery(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	srv.SetServices(models.RPCService{Name: "volumes"}, models.RPCService{Name: "shares"})
	srv.SetMethods("volumes", models.RPCMethod{Name: "query"}, models.RPCMethod{Name: "create"})

	rec := &recorder{}
	c := dial(t, srv, rec)

	services, err := c.DiscoverServices(context.Background())
	require.NoError(t, err)
	assert.Len(t, services, 2)

	methods, err := c.DiscoverMethods(context.Background(), "volumes")
	require.NoError(t, err)
	assert.Len(t, methods, 2)

	empty, err := c.DiscoverMethods(context.Background(), "shares")
	require.NoError(t, err)
	assert.Empty(t, empty)

	acts := rec.actions()
	require.Len(t, acts, 3)
	assert.Equal(t, action.ReceiveRPCServices{Services: services}, acts[0])
	assert.Equal(t, action.ReceiveRPCServiceMethods{Service: "volumes", Methods: methods}, acts[1])
	assert.Equal(t, action.ReceiveRPCServiceMethods{Service: "shares", Methods: []models.RPCMethod{}}, acts[2])
}

func TestPeerDisconnect(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	c := dial(t, srv, &recorder{})

	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, time.Second, 10*time.Millisecond)
	srv.DropConnections()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the dropped connection")
	}

	_, err := c.Call(context.Background(), "anything")
	assert.True(t, mwerrors.Is(err, mwerrors.ErrCodeNotConnected))
}

func TestDialFailure(t *testing.T) {
	_, err := middleware.Dial(context.Background(), "ws://127.0.0.1:1/socket", middleware.Options{
		DialTimeout: 200 * time.Millisecond,
	})
	assert.True(t, mwerrors.Is(err, mwerrors.ErrCodeNotConnected))
}
