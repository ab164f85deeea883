package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/mwstate/pkg/paths"
)

// New returns a Client that will use the daemon if available,
// otherwise falls back to LocalClient.
//
// This implements the "transparent daemon" pattern: callers don't need
// to know whether the daemon is running or not. The same API works
// in both modes.
func New() Client {
	return NewWithSocket(paths.SocketPath())
}

// NewWithSocket is New for a daemon listening on socketPath.
func NewWithSocket(socketPath string) Client {
	// Check if socket exists and we can connect
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			if client, err := NewRemoteClient(socketPath); err == nil {
				return client
			}
		}
	}

	// Fallback: daemon not running, use local client
	return NewLocalClient()
}

// MustConnect returns a RemoteClient or panics if the daemon is not available.
// Use this in contexts where the daemon is required.
func MustConnect() Client {
	client := New()
	if !client.IsRunning() {
		panic("mwstate daemon is not running; start it with 'mwstate daemon start'")
	}
	return client
}
