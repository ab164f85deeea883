// Package process inspects local processes.
package process

import (
	"errors"
	"os"
	"syscall"
)

// IsProcessAlive reports whether pid names a live process. A process owned
// by another user still counts as alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 performs the existence and permission checks only.
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
