package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/tui/theme"
)

func TestWrapText(t *testing.T) {
	out := wrapText("one two three four five", 9)
	assert.Equal(t, "one two\nthree\nfour five", out)

	assert.Equal(t, "short\nkept", wrapText("short\nkept", 40))
}

func TestSplitExamples(t *testing.T) {
	desc, ex := splitExamples("Shows the state.\n\nExamples:\n  mwstate state --json")
	assert.Equal(t, "Shows the state.", desc)
	assert.Equal(t, "mwstate state --json", ex)

	desc, ex = splitExamples("No examples here.")
	assert.Equal(t, "No examples here.", desc)
	assert.Empty(t, ex)
}

func TestRenderHelp(t *testing.T) {
	root := NewStandardCommand("mwstate", "Inspect middleware state")
	sub := &cobra.Command{
		Use:     "state",
		Short:   "Print the store state",
		Example: "# everything as JSON\nmwstate state --json",
		RunE:    func(*cobra.Command, []string) error { return nil },
	}
	sub.Flags().String("output", "yaml", "Output format")
	root.AddCommand(sub)

	var buf bytes.Buffer
	renderHelp(&buf, root, theme.NewThemeWithName("terminal"), 60)
	out := buf.String()
	assert.Contains(t, out, "MWSTATE")
	assert.Contains(t, out, "COMMANDS")
	assert.Contains(t, out, "state")
	assert.Contains(t, out, "--config")

	buf.Reset()
	renderHelp(&buf, sub, theme.NewThemeWithName("terminal"), 60)
	out = buf.String()
	assert.Contains(t, out, "MWSTATE STATE")
	assert.Contains(t, out, "--output")
	assert.Contains(t, out, "(default: yaml)")
	assert.Contains(t, out, "EXAMPLES")
	assert.Contains(t, out, "# everything as JSON")
}

func TestGetOptionsAndLogger(t *testing.T) {
	cmd := NewStandardCommand("mwstate", "test")
	require.NoError(t, cmd.ParseFlags([]string{"-v", "--json", "-c", "x.yml"}))

	opts := GetOptions(cmd)
	assert.Equal(t, CommandOptions{ConfigFile: "x.yml", Verbose: true, JSONOutput: true}, opts)

	logger := GetLogger(cmd, "cli-test")
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Logger.Formatter)
}

func TestLoadConfigFromFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mwstate.yml")
	require.NoError(t, os.WriteFile(path, []byte("middleware:\n  url: ws://example:5000/websocket\n"), 0o644))

	cmd := NewStandardCommand("mwstate", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

	cfg, used, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "ws://example:5000/websocket", cfg.Middleware.URL)

	cmd = NewStandardCommand("mwstate", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(dir, "missing.yml")}))
	_, _, err = LoadConfig(cmd)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestErrorHandler(t *testing.T) {
	exitErr := exec.Command("sh", "-c", "exit 4").Run()
	require.Error(t, exitErr)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config missing", errors.ConfigNotFound("/tmp/mwstate.yml"), "Configuration not found: /tmp/mwstate.yml"},
		{"not connected", errors.NotConnected("ws://nas/websocket"), "ws://nas/websocket"},
		{"timeout", errors.RPCTimeout("disk.query", "5s"), "'disk.query' timed out after 5s"},
		{"rpc error", errors.RPCError("disk.query", 22, "bad"), "(code 22)"},
		{"command", errors.CommandFailed("grunt less:core", exitErr), "with exit code 4"},
		{"plain", fmt.Errorf("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewErrorHandler(false, &buf).Handle(tt.err)
			assert.Equal(t, tt.err, err)
			assert.Contains(t, buf.String(), tt.want)
			assert.False(t, strings.Contains(buf.String(), "Error details"))
		})
	}
}

func TestErrorHandlerVerbose(t *testing.T) {
	var buf bytes.Buffer
	NewErrorHandler(true, &buf).Handle(errors.DispatchInProgress())
	assert.Contains(t, buf.String(), "Error details")
	assert.Contains(t, buf.String(), string(errors.ErrCodeDispatchInProgress))
	assert.Nil(t, NewErrorHandler(true, &buf).Handle(nil))
}
