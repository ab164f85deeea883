package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/grovetools/mwstate/pkg/store"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a new RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	// Create HTTP client that dials Unix socket
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}

	return &RemoteClient{
		httpClient: client,
		socketPath: socketPath,
	}, nil
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// getJSON fetches path and decodes it into v. It reports false without an
// error when the daemon answers 404.
func (c *RemoteClient) getJSON(ctx context.Context, path string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

// GetState returns the whole store state from the daemon.
func (c *RemoteClient) GetState(ctx context.Context) (*store.State, error) {
	var state store.State
	if _, err := c.getJSON(ctx, "/api/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetAllSubscriptions returns every active mask with its count.
func (c *RemoteClient) GetAllSubscriptions(ctx context.Context) (map[string]int, error) {
	subs := make(map[string]int)
	if _, err := c.getJSON(ctx, "/api/subscriptions", &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// GetNumberOfSubscriptions returns one mask's count.
func (c *RemoteClient) GetNumberOfSubscriptions(ctx context.Context, mask string) (int, bool, error) {
	var body struct {
		Count int `json:"count"`
	}
	found, err := c.getJSON(ctx, "/api/subscriptions/"+url.PathEscape(mask), &body)
	if err != nil || !found {
		return 0, false, err
	}
	return body.Count, true, nil
}

// GetAvailableRPCServices returns the known services.
func (c *RemoteClient) GetAvailableRPCServices(ctx context.Context) ([]models.RPCService, error) {
	var services []models.RPCService
	if _, err := c.getJSON(ctx, "/api/services", &services); err != nil {
		return nil, err
	}
	return services, nil
}

// GetAvailableRPCMethods returns the known methods per service.
func (c *RemoteClient) GetAvailableRPCMethods(ctx context.Context) (map[string][]models.RPCMethod, error) {
	methods := make(map[string][]models.RPCMethod)
	if _, err := c.getJSON(ctx, "/api/methods", &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// GetEventLog returns received events, most recent first.
func (c *RemoteClient) GetEventLog(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if _, err := c.getJSON(ctx, "/api/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Dispatch posts a to the daemon's queue. It returns once the daemon has
// accepted the action, not once it has been applied.
func (c *RemoteClient) Dispatch(ctx context.Context, a action.Action) error {
	body, err := action.Encode(a)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/api/dispatch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to dispatch to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil
	}
	var mwErr mwerrors.MWError
	if err := json.NewDecoder(resp.Body).Decode(&mwErr); err == nil && mwErr.Code != "" {
		return &mwErr
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamChanges subscribes to change notifications via Server-Sent Events (SSE).
// The channel is closed when the context is cancelled or the connection is lost.
func (c *RemoteClient) StreamChanges(ctx context.Context) (<-chan notify.Namespace, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Use a separate client with no timeout for streaming
	streamTransport := &http.Transport{
		DialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}
	streamClient := &http.Client{
		Transport: streamTransport,
		Timeout:   0, // No timeout for streaming
	}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan notify.Namespace, 16)

	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip comments and empty lines
			if strings.HasPrefix(line, ":") || line == "" {
				continue
			}

			// Parse SSE data lines
			if strings.HasPrefix(line, "data: ") {
				var change Change
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &change); err != nil {
					continue // Skip malformed data
				}

				select {
				case ch <- change.Namespace:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
