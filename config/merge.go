package config

// mergeConfigs overlays override onto base. Scalars replace when set, lists
// replace when non-empty, extension sections replace per key. A nil base
// yields a copy of override.
func mergeConfigs(base, override *Config) *Config {
	if base == nil {
		result := *override
		return &result
	}
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	// Middleware
	m := &result.Middleware
	om := override.Middleware
	if om.URL != "" {
		m.URL = om.URL
	}
	if om.DialTimeout != 0 {
		m.DialTimeout = om.DialTimeout
	}
	if om.CallTimeout != 0 {
		m.CallTimeout = om.CallTimeout
	}
	if om.ReconnectInterval != 0 {
		m.ReconnectInterval = om.ReconnectInterval
	}
	if len(om.Subscribe) > 0 {
		m.Subscribe = om.Subscribe
	}
	if om.Discover != nil {
		m.Discover = om.Discover
	}

	// Daemon
	if override.Daemon.Socket != "" {
		result.Daemon.Socket = override.Daemon.Socket
	}
	if override.Daemon.QueueSize != 0 {
		result.Daemon.QueueSize = override.Daemon.QueueSize
	}

	// Watch
	if override.Watch.Root != "" {
		result.Watch.Root = override.Watch.Root
	}
	if override.Watch.Debounce != 0 {
		result.Watch.Debounce = override.Watch.Debounce
	}
	if len(override.Watch.Rules) > 0 {
		result.Watch.Rules = override.Watch.Rules
	}

	if len(override.Extensions) > 0 {
		merged := make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for k, v := range base.Extensions {
			merged[k] = v
		}
		for k, v := range override.Extensions {
			merged[k] = v
		}
		result.Extensions = merged
	}

	return &result
}
