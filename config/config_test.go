package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/mwstate/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
middleware:
  url: ws://nas.local:5000/socket
  subscribe: ["task.*", "volume.changed"]
`))
	require.NoError(t, err)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "ws://nas.local:5000/socket", cfg.Middleware.URL)
	assert.Equal(t, []string{"task.*", "volume.changed"}, cfg.Middleware.Subscribe)
	assert.Equal(t, 5*time.Second, cfg.Middleware.DialTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Middleware.CallTimeout.Std())
	assert.True(t, cfg.Middleware.DiscoverEnabled())
	assert.Equal(t, 256, cfg.Daemon.QueueSize)
	assert.Equal(t, ".", cfg.Watch.Root)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce.Std())
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mwstate.toml")
	content := `
version = "1.0"

[middleware]
url = "wss://nas.example.com/socket"
call_timeout = "2s"
discover = false

[[watch.rules]]
name = "less"
files = ["app/styles/**"]
tasks = [["make", "css"]]

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Middleware.CallTimeout.Std())
	assert.False(t, cfg.Middleware.DiscoverEnabled())
	require.Len(t, cfg.Watch.Rules, 1)
	assert.Equal(t, [][]string{{"make", "css"}}, cfg.Watch.Rules[0].Tasks)

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "mwstate.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{name: "empty is valid", yaml: ``},
		{name: "http url rejected", yaml: "middleware:\n  url: http://nas/socket\n", wantErr: true},
		{name: "url without host rejected", yaml: "middleware:\n  url: ws:///socket\n", wantErr: true},
		{name: "empty mask rejected", yaml: "middleware:\n  subscribe: ['']\n", wantErr: true},
		{name: "negative queue", yaml: "daemon:\n  queue_size: -1\n", wantErr: true},
		{
			name: "rule without tasks",
			yaml: "watch:\n  rules:\n    - name: app\n      files: ['**/*.js']\n      tasks: []\n",
			wantErr: true,
		},
		{
			name: "duplicate rules",
			yaml: "watch:\n  rules:\n" +
				"    - {name: app, files: ['a/**'], tasks: [[make]]}\n" +
				"    - {name: app, files: ['b/**'], tasks: [[make]]}\n",
			wantErr: true,
		},
		{
			name: "valid rule",
			yaml: "watch:\n  rules:\n    - {name: app, files: ['a/**'], tasks: [[make, app]], restart: true}\n",
		},
		{name: "bad duration", yaml: "watch:\n  debounce: soon\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromMergesOverride(t *testing.T) {
	t.Setenv("MWSTATE_HOME", t.TempDir())
	t.Setenv("NAS_HOST", "nas.internal")

	root := t.TempDir()
	sub := filepath.Join(root, "app", "jsx")
	require.NoError(t, os.MkdirAll(sub, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "mwstate.yml"), []byte(`
middleware:
  url: ws://${NAS_HOST}:5000/socket
  subscribe: [task.*]
daemon:
  queue_size: 32
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mwstate.override.yml"), []byte(`
daemon:
  queue_size: 64
`), 0644))

	cfg, err := LoadFrom(sub)
	require.NoError(t, err)
	assert.Equal(t, "ws://nas.internal:5000/socket", cfg.Middleware.URL)
	assert.Equal(t, []string{"task.*"}, cfg.Middleware.Subscribe)
	assert.Equal(t, 64, cfg.Daemon.QueueSize)
}

func TestLoadFromWithoutAnyFile(t *testing.T) {
	t.Setenv("MWSTATE_HOME", t.TempDir())
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "1.0", cfg.Version)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MW_SET", "value")
	assert.Equal(t, "value", expandEnvVars("${MW_SET}"))
	assert.Equal(t, "fallback", expandEnvVars("${MW_UNSET_FOR_TEST:-fallback}"))
	assert.Equal(t, "", expandEnvVars("${MW_UNSET_FOR_TEST}"))
}

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	cfg, err := LoadFromBytes([]byte("middleware:\n  url: ws://nas/socket\n"))
	require.NoError(t, err)
	assert.NoError(t, v.Validate(cfg))

	raw := map[string]interface{}{
		"version":    "1.0",
		"middleware": map[string]interface{}{"unknown_key": true},
		"logging":    map[string]interface{}{"level": "debug"},
	}
	assert.Error(t, v.Validate(raw), "unknown keys inside core sections are rejected")

	delete(raw["middleware"].(map[string]interface{}), "unknown_key")
	assert.NoError(t, v.Validate(raw), "extension sections are ignored")
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"middleware"`)
	assert.Contains(t, string(data), `"reconnect_interval"`)
	assert.NotContains(t, string(data), "Extensions")
}
