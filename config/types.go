package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the complete mwstate configuration.
type Config struct {
	Version    string           `yaml:"version" toml:"version" json:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Middleware MiddlewareConfig `yaml:"middleware,omitempty" toml:"middleware,omitempty" json:"middleware,omitempty" jsonschema:"description=Connection to the remote management service"`
	Daemon     DaemonConfig     `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon,omitempty" jsonschema:"description=Local state daemon settings"`
	Watch      WatchConfig      `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty" jsonschema:"description=Build watcher rules"`

	// Extensions holds top-level sections owned by other components (for example "logging").
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-"`
}

// MiddlewareConfig configures the websocket connection to the middleware.
type MiddlewareConfig struct {
	URL               string   `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty" jsonschema:"description=Websocket URL of the middleware (ws:// or wss://)"`
	DialTimeout       Duration `yaml:"dial_timeout,omitempty" toml:"dial_timeout,omitempty" json:"dial_timeout,omitempty" jsonschema:"description=Timeout for establishing the connection"`
	CallTimeout       Duration `yaml:"call_timeout,omitempty" toml:"call_timeout,omitempty" json:"call_timeout,omitempty" jsonschema:"description=Timeout for a single RPC call"`
	ReconnectInterval Duration `yaml:"reconnect_interval,omitempty" toml:"reconnect_interval,omitempty" json:"reconnect_interval,omitempty" jsonschema:"description=Delay between reconnect attempts"`
	Subscribe         []string `yaml:"subscribe,omitempty" toml:"subscribe,omitempty" json:"subscribe,omitempty" jsonschema:"description=Event masks subscribed on every connect"`
	Discover          *bool    `yaml:"discover,omitempty" toml:"discover,omitempty" json:"discover,omitempty" jsonschema:"description=Fetch RPC services and their methods after connecting (default: true)"`
}

// DaemonConfig configures the local daemon.
type DaemonConfig struct {
	Socket    string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty" jsonschema:"description=Unix socket path (defaults to the runtime directory)"`
	QueueSize int    `yaml:"queue_size,omitempty" toml:"queue_size,omitempty" json:"queue_size,omitempty" jsonschema:"description=Capacity of the action queue,minimum=0"`
}

// WatchConfig configures the build watcher.
type WatchConfig struct {
	Root     string      `yaml:"root,omitempty" toml:"root,omitempty" json:"root,omitempty" jsonschema:"description=Directory tree to watch (default: current directory)"`
	Debounce Duration    `yaml:"debounce,omitempty" toml:"debounce,omitempty" json:"debounce,omitempty" jsonschema:"description=Quiet period before a rule fires"`
	Rules    []WatchRule `yaml:"rules,omitempty" toml:"rules,omitempty" json:"rules,omitempty" jsonschema:"description=Ordered watch rules"`
}

// WatchRule maps file patterns to the tasks run when a matching file changes.
type WatchRule struct {
	Name    string     `yaml:"name" toml:"name" json:"name" jsonschema:"required,description=Rule name used in logs"`
	Files   []string   `yaml:"files" toml:"files" json:"files" jsonschema:"required,description=Patterns relative to the watch root; ** matches any depth"`
	Tasks   [][]string `yaml:"tasks" toml:"tasks" json:"tasks" jsonschema:"required,description=Commands run in order as argv lists"`
	Restart bool       `yaml:"restart,omitempty" toml:"restart,omitempty" json:"restart,omitempty" jsonschema:"description=Keep the last task running and restart it on change"`
}

// Duration is a time.Duration written as a Go duration string ("5s", "250ms").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// JSONSchema describes Duration as a string for schema reflection.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string, e.g. 5s or 250ms",
	}
}

// DiscoverEnabled reports whether discovery runs after connecting.
func (m MiddlewareConfig) DiscoverEnabled() bool {
	return m.Discover == nil || *m.Discover
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Middleware.DialTimeout == 0 {
		c.Middleware.DialTimeout = Duration(5 * time.Second)
	}
	if c.Middleware.CallTimeout == 0 {
		c.Middleware.CallTimeout = Duration(10 * time.Second)
	}
	if c.Middleware.ReconnectInterval == 0 {
		c.Middleware.ReconnectInterval = Duration(3 * time.Second)
	}
	if c.Daemon.QueueSize == 0 {
		c.Daemon.QueueSize = 256
	}
	if c.Watch.Root == "" {
		c.Watch.Root = "."
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = Duration(200 * time.Millisecond)
	}
}

// UnmarshalExtension decodes a top-level section owned by another component
// into target, which must be a pointer. A missing section leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
