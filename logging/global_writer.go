package logging

import (
	"io"
	"os"
	"sync"
)

// switchWriter forwards writes to a destination that can be replaced while
// loggers hold on to it.
type switchWriter struct {
	mu  sync.RWMutex
	dst io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dst.Write(p)
}

func (s *switchWriter) swap(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.dst
	s.dst = w
	return prev
}

var consoleOutput = &switchWriter{dst: os.Stderr}

// SetGlobalOutput redirects the console output of every logger and returns
// a function restoring the previous destination. Full-screen TUIs use it to
// keep log lines off the screen.
func SetGlobalOutput(w io.Writer) (restore func()) {
	prev := consoleOutput.swap(w)
	return func() { consoleOutput.swap(prev) }
}

// GetGlobalOutput returns the shared console writer loggers are built with.
func GetGlobalOutput() io.Writer {
	return consoleOutput
}
