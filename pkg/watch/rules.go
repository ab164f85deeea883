// Package watch runs build tasks when files under a directory tree change.
//
// Each rule maps file patterns (relative to the watch root, "**" matching any
// depth) to an ordered list of commands. A rule fires once its files have been
// quiet for the debounce period; its commands run one after another and the
// run stops at the first failure. Restart rules keep their last command
// running as a long-lived process and replace it on every run.
package watch

import (
	"fmt"
	"path/filepath"

	"github.com/grovetools/mwstate/config"
	"github.com/moby/patternmatcher"
)

// DefaultRules returns the rule set used when the configuration has none:
// rebuild the app bundle, styles and images, keep the local dev server
// running, and push server changes to the remote NAS.
func DefaultRules() []config.WatchRule {
	serverFiles := []string{
		"app/client.js",
		"app/server.js",
		"app/templates/**",
		"build/**",
		"package.json",
		"bower_components/**",
	}
	return []config.WatchRule{
		{
			Name:  "app",
			Files: []string{"app/jsx/**", "app/routes.js"},
			Tasks: [][]string{{"grunt", "browserify:app"}},
		},
		{
			Name:  "less",
			Files: []string{"app/styles/**"},
			Tasks: [][]string{{"grunt", "less:core"}},
		},
		{
			Name:  "images",
			Files: []string{"app/images/**"},
			Tasks: [][]string{{"grunt", "copy:images"}},
		},
		{
			Name:    "localServer",
			Files:   []string{"app/client.js", "app/routes.js", "app/server.js", "app/templates/**"},
			Tasks:   [][]string{{"node", "app/server.js"}},
			Restart: true,
		},
		{
			Name:  "freenasServer",
			Files: serverFiles,
			Tasks: [][]string{
				{"grunt", "freenas-config:silent"},
				{"grunt", "rsync"},
				{"grunt", "ssh-multi-exec:start-server"},
			},
		},
	}
}

// rule is a compiled config.WatchRule.
type rule struct {
	config.WatchRule
	matcher *patternmatcher.PatternMatcher
}

func compileRule(r config.WatchRule) (*rule, error) {
	for i, task := range r.Tasks {
		if len(task) == 0 || task[0] == "" {
			return nil, fmt.Errorf("rule %s: task %d has no command", r.Name, i+1)
		}
	}
	patterns := make([]string, len(r.Files))
	for i, p := range r.Files {
		patterns[i] = filepath.FromSlash(p)
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.Name, err)
	}
	return &rule{WatchRule: r, matcher: pm}, nil
}

// matches reports whether rel, a path relative to the watch root, is covered by the rule.
func (r *rule) matches(rel string) bool {
	ok, err := r.matcher.MatchesOrParentMatches(rel)
	return err == nil && ok
}
