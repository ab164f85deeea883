package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/mwstate/internal/daemon/collector"
	"github.com/grovetools/mwstate/internal/daemon/engine"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/dispatcher"
	"github.com/grovetools/mwstate/pkg/middleware"
	"github.com/grovetools/mwstate/pkg/middleware/middlewaretest"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func startEngine(t *testing.T, c collector.Collector) *store.Store {
	t.Helper()
	d := dispatcher.New()
	st := store.New(d, store.WithLogger(quietLogger()))
	e := engine.New(d, quietLogger(), 64)
	e.SetStore(st)
	e.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return st
}

func TestMiddlewareCollectorPopulatesStore(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()
	srv.SetServices(models.RPCService{Name: "volumes"}, models.RPCService{Name: "shares"})
	srv.SetMethods("volumes", models.RPCMethod{Name: "query"})
	srv.SetMethods("shares", models.RPCMethod{Name: "query"}, models.RPCMethod{Name: "create"})

	c := collector.NewMiddlewareCollector(collector.MiddlewareOptions{
		URL:               srv.URL(),
		DialTimeout:       time.Second,
		CallTimeout:       time.Second,
		ReconnectInterval: 50 * time.Millisecond,
		Subscribe:         []string{"volumes.changed", "task.*"},
		Discover:          true,
	}, quietLogger())
	st := startEngine(t, c)

	require.Eventually(t, func() bool {
		return len(st.GetAvailableRPCMethods()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, map[string]int{"volumes.changed": 1, "task.*": 1}, st.GetAllSubscriptions())
	assert.Len(t, st.GetAvailableRPCServices(), 2)
	assert.Len(t, st.GetRPCMethods("shares"), 2)

	srv.Publish("volumes.changed", map[string]string{"id": "tank"})
	require.Eventually(t, func() bool { return len(st.GetEventLog()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "volumes.changed", st.GetEventLog()[0].Name)
}

func TestMiddlewareCollectorReconnects(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()

	connects := make(chan *middleware.Client, 4)
	c := collector.NewMiddlewareCollector(collector.MiddlewareOptions{
		URL:               srv.URL(),
		ReconnectInterval: 20 * time.Millisecond,
		Subscribe:         []string{"volumes.changed"},
	}, quietLogger())
	c.OnConnect(func(client *middleware.Client) { connects <- client })
	st := startEngine(t, c)

	first := <-connects
	require.Eventually(t, func() bool { return st.IsSubscribed("volumes.changed") }, time.Second, 5*time.Millisecond)

	srv.DropConnections()
	<-first.Done()

	select {
	case <-connects:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not reconnect")
	}

	// The dropped session is released before the new one subscribes.
	require.Eventually(t, func() bool {
		n, ok := st.GetNumberOfSubscriptions("volumes.changed")
		return ok && n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMiddlewareCollectorReleasesOnlyReportedMasks(t *testing.T) {
	srv := middlewaretest.NewServer()
	defer srv.Close()

	var mu sync.Mutex
	var got []action.Action
	emit := func(ctx context.Context, p action.Payload) error {
		if sub, ok := p.Action.(action.SubscribeToMask); ok && sub.Mask == "lost" {
			return errors.New("queue closed")
		}
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p.Action)
		return nil
	}
	recorded := func() []action.Action {
		mu.Lock()
		defer mu.Unlock()
		return append([]action.Action(nil), got...)
	}

	connects := make(chan *middleware.Client, 4)
	c := collector.NewMiddlewareCollector(collector.MiddlewareOptions{
		URL:               srv.URL(),
		ReconnectInterval: time.Hour,
		Subscribe:         []string{"lost", "kept"},
	}, quietLogger())
	c.OnConnect(func(client *middleware.Client) { connects <- client })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx, nil, emit)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	first := <-connects
	srv.DropConnections()
	<-first.Done()

	require.Eventually(t, func() bool { return len(recorded()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []action.Action{
		action.SubscribeToMask{Mask: "kept"},
		action.UnsubscribeFromMask{Mask: "kept"},
	}, recorded())
}

func TestMiddlewareCollectorWithoutServer(t *testing.T) {
	c := collector.NewMiddlewareCollector(collector.MiddlewareOptions{
		URL:               "ws://127.0.0.1:1/socket",
		DialTimeout:       50 * time.Millisecond,
		ReconnectInterval: 10 * time.Millisecond,
		Subscribe:         []string{"volumes.changed"},
	}, quietLogger())
	st := startEngine(t, c)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, st.GetAllSubscriptions())
	assert.Equal(t, "middleware", c.Name())
}
