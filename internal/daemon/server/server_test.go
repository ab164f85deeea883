package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/mwstate/internal/daemon/engine"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/dispatcher"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	srv    *Server
	http   *httptest.Server
	engine *engine.Engine
	store  *store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(logger)

	d := dispatcher.New()
	st := store.New(d, store.WithLogger(entry))
	eng := engine.New(d, entry, 16)
	eng.SetStore(st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Start(ctx)
		close(done)
	}()

	s := New(entry)
	s.SetEngine(eng)
	s.SetRunningConfig(&RunningConfig{MiddlewareURL: "ws://nas.local/socket", QueueSize: 16})
	h := &harness{srv: s, http: httptest.NewServer(s.Handler()), engine: eng, store: st}

	t.Cleanup(func() {
		h.http.Close()
		cancel()
		<-done
	})
	return h
}

func (h *harness) post(t *testing.T, a action.Action) {
	t.Helper()
	require.NoError(t, h.engine.Post(context.Background(), action.ServerAction(a)))
}

func (h *harness) getJSON(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := http.Get(h.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueryEndpoints(t *testing.T) {
	h := newHarness(t)
	h.post(t, action.SubscribeToMask{Mask: "task.*"})
	h.post(t, action.SubscribeToMask{Mask: "task.*"})
	h.post(t, action.ReceiveRPCServices{Services: []models.RPCService{{Name: "volumes"}}})
	h.post(t, action.ReceiveRPCServiceMethods{Service: "volumes", Methods: []models.RPCMethod{{Name: "query"}}})
	h.post(t, action.MiddlewareEvent{EventData: models.Event{Name: "volumes.changed"}})

	require.Eventually(t, func() bool { return len(h.store.GetEventLog()) == 1 }, time.Second, 5*time.Millisecond)

	var subs map[string]int
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/subscriptions", &subs))
	assert.Equal(t, map[string]int{"task.*": 2}, subs)

	var one subscriptionCount
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/subscriptions/"+url.PathEscape("task.*"), &one))
	assert.Equal(t, subscriptionCount{Mask: "task.*", Count: 2}, one)
	assert.Equal(t, http.StatusNotFound, h.getJSON(t, "/api/subscriptions/missing", nil))

	var services []models.RPCService
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/services", &services))
	assert.Equal(t, []models.RPCService{{Name: "volumes"}}, services)

	var methods map[string][]models.RPCMethod
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/methods", &methods))
	assert.Len(t, methods["volumes"], 1)

	var svcMethods []models.RPCMethod
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/methods/volumes", &svcMethods))
	assert.Equal(t, "query", svcMethods[0].Name)
	assert.Equal(t, http.StatusNotFound, h.getJSON(t, "/api/methods/shares", nil))

	var events []models.Event
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/events", &events))
	require.Len(t, events, 1)
	assert.Equal(t, "volumes.changed", events[0].Name)

	var state store.State
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/state", &state))
	assert.Equal(t, subs, state.Subscriptions)

	var cfg RunningConfig
	assert.Equal(t, http.StatusOK, h.getJSON(t, "/api/config", &cfg))
	assert.Equal(t, "ws://nas.local/socket", cfg.MiddlewareURL)
}

func TestDispatch(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"subscribe", `{"type":"SUBSCRIBE_TO_MASK","mask":"volumes.changed"}`, http.StatusAccepted},
		{"unknown type is accepted", `{"type":"SOMETHING_NEW"}`, http.StatusAccepted},
		{"missing field", `{"type":"SUBSCRIBE_TO_MASK"}`, http.StatusBadRequest},
		{"not json", `subscribe please`, http.StatusBadRequest},
		{"untyped", `{"mask":"m"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(h.http.URL+"/api/dispatch", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	require.Eventually(t, func() bool { return h.store.IsSubscribed("volumes.changed") }, time.Second, 5*time.Millisecond)
}

func TestDispatchedEventDataIsKept(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{
		`{"type":"MIDDLEWARE_EVENT","eventData":{"id":1}}`,
		`{"type":"MIDDLEWARE_EVENT","eventData":{"id":2}}`,
	} {
		resp, err := http.Post(h.http.URL+"/api/dispatch", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	require.Eventually(t, func() bool { return len(h.store.GetEventLog()) == 2 }, time.Second, 5*time.Millisecond)

	var events []json.RawMessage
	require.Equal(t, http.StatusOK, h.getJSON(t, "/api/events", &events))
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"id":2}`, string(events[0]))
	assert.JSONEq(t, `{"id":1}`, string(events[1]))
}

func TestStreamCarriesNamespacesOnly(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.http.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	messages := make(chan string, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				messages <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	next := func() string {
		select {
		case m := <-messages:
			return m
		case <-time.After(2 * time.Second):
			t.Fatal("no SSE message")
			return ""
		}
	}

	assert.JSONEq(t, `{"namespace":""}`, next())

	h.post(t, action.SubscribeToMask{Mask: "m"})
	assert.JSONEq(t, `{"namespace":"subscriptions"}`, next())

	h.post(t, action.MiddlewareEvent{EventData: models.Event{Name: "e"}})
	var msg changeMessage
	require.NoError(t, json.Unmarshal([]byte(next()), &msg))
	assert.Equal(t, notify.Events, msg.Namespace)
}

func TestListenAndServeUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "mws")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "d.sock")

	// A stale socket file is replaced.
	require.NoError(t, os.WriteFile(socket, nil, 0600))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	s := New(logrus.NewEntry(logger))
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(socket) }()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}}

	require.Eventually(t, func() bool {
		resp, err := client.Get("http://unix/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	info, err := os.Stat(socket)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Without an engine the query surface is unavailable.
	resp, err := client.Get("http://unix/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.ErrorIs(t, <-errCh, http.ErrServerClosed)
}
