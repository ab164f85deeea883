package config

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/grovetools/mwstate/errors"
)

var ruleNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.:-]*$`)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Middleware.URL != "" {
		if err := validateMiddlewareURL(c.Middleware.URL); err != nil {
			return err
		}
	}

	for _, mask := range c.Middleware.Subscribe {
		if mask == "" {
			return errors.New(errors.ErrCodeConfigValidation, "middleware.subscribe cannot contain an empty mask")
		}
	}

	if c.Daemon.QueueSize < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "daemon.queue_size cannot be negative").
			WithDetail("queue_size", c.Daemon.QueueSize)
	}

	seen := make(map[string]bool, len(c.Watch.Rules))
	for i := range c.Watch.Rules {
		rule := &c.Watch.Rules[i]
		if err := validateRule(rule); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid watch rule '%s'", rule.Name)).
				WithDetail("rule", rule.Name)
		}
		if seen[rule.Name] {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("duplicate watch rule '%s'", rule.Name)).
				WithDetail("rule", rule.Name)
		}
		seen[rule.Name] = true
	}

	return nil
}

func validateMiddlewareURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "middleware.url is not a valid URL").
			WithDetail("url", raw)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New(errors.ErrCodeConfigValidation, "middleware.url must use ws:// or wss://").
			WithDetail("url", raw)
	}
	if u.Host == "" {
		return errors.New(errors.ErrCodeConfigValidation, "middleware.url must include a host").
			WithDetail("url", raw)
	}
	return nil
}

func validateRule(rule *WatchRule) error {
	if !ruleNameRegex.MatchString(rule.Name) {
		return errors.New(errors.ErrCodeInvalidInput, "rule name must start with a letter and contain only letters, numbers, '_', '.', ':' and '-'").
			WithDetail("name", rule.Name)
	}
	if len(rule.Files) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "rule must list at least one file pattern")
	}
	for _, pattern := range rule.Files {
		if pattern == "" {
			return errors.New(errors.ErrCodeInvalidInput, "file patterns cannot be empty")
		}
	}
	if len(rule.Tasks) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "rule must list at least one task")
	}
	for i, task := range rule.Tasks {
		if len(task) == 0 || task[0] == "" {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("task %d has no command", i)).
				WithDetail("task", i)
		}
	}
	return nil
}
