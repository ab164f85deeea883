package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("config is valid")
	p.Warn("daemon is not running")
	p.Error("dispatch failed", fmt.Errorf("boom"))
	p.Field("socket", "/run/mwstated.sock")

	out := buf.String()
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "config is valid")
	assert.Contains(t, out, "⚠")
	assert.Contains(t, out, "dispatch failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "socket")
	assert.Contains(t, out, "/run/mwstated.sock")
}

func TestSetGlobalOutputRestores(t *testing.T) {
	var first, second bytes.Buffer
	restoreFirst := SetGlobalOutput(&first)
	defer restoreFirst()

	GetGlobalOutput().Write([]byte("a"))
	restore := SetGlobalOutput(&second)
	GetGlobalOutput().Write([]byte("b"))
	restore()
	GetGlobalOutput().Write([]byte("c"))

	assert.Equal(t, "ac", first.String())
	assert.Equal(t, "b", second.String())
}
