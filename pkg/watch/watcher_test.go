package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/mwstate/config"
	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runResult struct {
	rule string
	err  error
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

// start runs a watcher over root and returns its run results.
func start(t *testing.T, root string, rules []config.WatchRule) (*Watcher, <-chan runResult) {
	t.Helper()
	results := make(chan runResult, 16)
	w, err := New(Options{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		Rules:    rules,
		Logger:   quietLogger(),
		OnRun:    func(rule string, err error) { results <- runResult{rule, err} },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Run(ctx))
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, results
}

func next(t *testing.T, results <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("rule did not run")
		return runResult{}
	}
}

func TestDefaultRulesMatch(t *testing.T) {
	w, err := New(Options{Root: t.TempDir(), Logger: quietLogger()})
	require.NoError(t, err)

	tests := []struct {
		path string
		want []string
	}{
		{"app/jsx/views/Dashboard.jsx", []string{"app"}},
		{"app/routes.js", []string{"app", "localServer"}},
		{"app/styles/core.less", []string{"less"}},
		{"app/images/logo.png", []string{"images"}},
		{"app/server.js", []string{"localServer", "freenasServer"}},
		{"app/templates/mainlayout.html", []string{"localServer", "freenasServer"}},
		{"build/js/app.js", []string{"freenasServer"}},
		{"package.json", []string{"freenasServer"}},
		{"README.md", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Match(tt.path))
		})
	}
}

func TestRunsTasksOnChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))

	_, results := start(t, root, []config.WatchRule{{
		Name:  "build",
		Files: []string{"src/**"},
		Tasks: [][]string{
			{"sh", "-c", "echo one >> out.log"},
			{"sh", "-c", "echo two >> out.log"},
		},
	}})

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.js"), []byte("x"), 0644))

	r := next(t, results)
	assert.Equal(t, "build", r.rule)
	require.NoError(t, r.err)

	out, err := os.ReadFile(filepath.Join(root, "out.log"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(out))
}

func TestStopsAtFirstFailure(t *testing.T) {
	root := t.TempDir()
	_, results := start(t, root, []config.WatchRule{{
		Name:  "deploy",
		Files: []string{"*.json"},
		Tasks: [][]string{
			{"sh", "-c", "exit 3"},
			{"touch", "second"},
		},
	}})

	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0644))

	r := next(t, results)
	require.Error(t, r.err)
	assert.True(t, mwerrors.Is(r.err, mwerrors.ErrCodeCommandFailed))

	var mwErr *mwerrors.MWError
	require.ErrorAs(t, r.err, &mwErr)
	assert.Equal(t, 3, mwErr.Details["exitCode"])
	assert.NoFileExists(t, filepath.Join(root, "second"))
}

func TestDebounceCoalescesBursts(t *testing.T) {
	root := t.TempDir()
	_, results := start(t, root, []config.WatchRule{{
		Name:  "styles",
		Files: []string{"**/*.less"},
		Tasks: [][]string{{"true"}},
	}})

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, strings.Repeat("a", i+1)+".less")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0644))
	}

	next(t, results)
	select {
	case r := <-results:
		t.Fatalf("unexpected second run of %s", r.rule)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	_, results := start(t, root, []config.WatchRule{{
		Name:  "images",
		Files: []string{"images/**/*.png"},
		Tasks: [][]string{{"true"}},
	}})

	deep := filepath.Join(root, "images", "icons")
	require.NoError(t, os.MkdirAll(deep, 0755))

	// The new directory is registered asynchronously; keep writing until a run happens.
	deadline := time.After(3 * time.Second)
	for i := 0; ; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(deep, "logo.png"), []byte{byte(i)}, 0644))
		select {
		case r := <-results:
			assert.Equal(t, "images", r.rule)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("rule did not run for a file in a new directory")
		}
	}
}

func TestRestartRuleReplacesProcess(t *testing.T) {
	root := t.TempDir()
	w, results := start(t, root, []config.WatchRule{{
		Name:    "server",
		Files:   []string{"server.js"},
		Tasks:   [][]string{{"sleep", "30"}},
		Restart: true,
	}})

	// Restart rules start once without a change.
	require.NoError(t, next(t, results).err)
	r := w.rules[0]
	r.mu.Lock()
	first := r.proc.Process.Pid
	r.mu.Unlock()

	require.NoError(t, os.WriteFile(filepath.Join(root, "server.js"), []byte("x"), 0644))
	require.NoError(t, next(t, results).err)

	r.mu.Lock()
	second := r.proc.Process.Pid
	r.mu.Unlock()
	assert.NotEqual(t, first, second)
}

func TestRejectsEmptyTask(t *testing.T) {
	_, err := New(Options{
		Root:   t.TempDir(),
		Rules:  []config.WatchRule{{Name: "bad", Files: []string{"**"}, Tasks: [][]string{{}}}},
		Logger: quietLogger(),
	})
	assert.True(t, mwerrors.Is(err, mwerrors.ErrCodeConfigValidation))
}

func TestDefaultLoggerIsComponentLogger(t *testing.T) {
	t.Setenv("MWSTATE_HOME", t.TempDir())
	w, err := New(Options{Root: t.TempDir(), Rules: []config.WatchRule{}})
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, "watch", w.logger.Data["component"])
}
