package watch

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/mwstate/config"
	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/logging"
	"github.com/sirupsen/logrus"
)

// Options configures a Watcher.
type Options struct {
	Root     string
	Debounce time.Duration
	Rules    []config.WatchRule
	Logger   *logrus.Entry

	// Stdout and Stderr receive task output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// OnRun is called after every rule run with the first task error, if any.
	OnRun func(rule string, err error)
}

// Watcher watches a directory tree and runs rules on changes.
type Watcher struct {
	root    string
	opts    Options
	rules   []*runner
	watcher *fsnotify.Watcher
	logger  *logrus.Entry
}

// runner owns one rule's trigger queue and, for restart rules, its process.
type runner struct {
	*rule
	trigger chan struct{}

	mu   sync.Mutex
	proc *exec.Cmd
	exit chan struct{}
}

// New compiles the rules and registers every directory under root.
func New(opts Options) (*Watcher, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("watch")
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{root: root, opts: opts, logger: opts.Logger}
	for _, r := range opts.Rules {
		compiled, err := compileRule(r)
		if err != nil {
			return nil, mwerrors.Wrap(err, mwerrors.ErrCodeConfigValidation, "invalid watch rule").
				WithDetail("rule", r.Name)
		}
		w.rules = append(w.rules, &runner{rule: compiled, trigger: make(chan struct{}, 1)})
	}

	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.addTree(root); err != nil {
		w.watcher.Close()
		return nil, err
	}
	return w, nil
}

// Match returns the names of the rules covering rel, a slash-separated path
// relative to the watch root.
func (w *Watcher) Match(rel string) []string {
	var names []string
	for _, r := range w.rules {
		if r.matches(filepath.FromSlash(rel)) {
			names = append(names, r.Name)
		}
	}
	return names
}

// Run processes file events until ctx is cancelled. Restart rules are started
// once immediately. Running processes are stopped before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var wg sync.WaitGroup
	for _, r := range w.rules {
		wg.Add(1)
		go func(r *runner) {
			defer wg.Done()
			w.work(ctx, r)
		}(r)
		if r.Restart {
			r.fire()
		}
	}
	defer wg.Wait()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("Watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.WithError(err).WithField("path", event.Name).Warn("Failed to watch new directory")
			}
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	w.logger.Debugf("fsnotify event: %s op=%v", rel, event.Op)
	for _, r := range w.rules {
		if r.matches(rel) {
			r.fire()
		}
	}
}

// addTree watches dir and every directory below it, skipping hidden ones.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// fire queues a run. Triggers arriving while one is queued coalesce.
func (r *runner) fire() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// work runs r each time it fires, after its files have been quiet for the debounce period.
func (w *Watcher) work(ctx context.Context, r *runner) {
	defer w.stopProcess(r)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
		}

		timer := time.NewTimer(w.opts.Debounce)
	quiet:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-r.trigger:
				timer.Reset(w.opts.Debounce)
			case <-timer.C:
				break quiet
			}
		}

		err := w.runRule(ctx, r)
		if w.opts.OnRun != nil {
			w.opts.OnRun(r.Name, err)
		}
	}
}

// runRule runs the rule's tasks in order and stops at the first failure.
func (w *Watcher) runRule(ctx context.Context, r *runner) error {
	logger := w.logger.WithField("rule", r.Name)
	logger.Info("Running watch rule")

	tasks := r.Tasks
	var last []string
	if r.Restart && len(tasks) > 0 {
		tasks, last = tasks[:len(tasks)-1], tasks[len(tasks)-1]
	}

	for _, task := range tasks {
		cmd := w.command(ctx, task)
		if err := cmd.Run(); err != nil {
			mwErr := mwerrors.CommandFailed(strings.Join(task, " "), err)
			logger.WithError(mwErr).Error("Task failed")
			return mwErr
		}
	}

	if last != nil {
		w.stopProcess(r)
		cmd := w.command(ctx, last)
		if err := cmd.Start(); err != nil {
			mwErr := mwerrors.CommandFailed(strings.Join(last, " "), err)
			logger.WithError(mwErr).Error("Failed to start process")
			return mwErr
		}
		exit := make(chan struct{})
		r.mu.Lock()
		r.proc, r.exit = cmd, exit
		r.mu.Unlock()
		go func() {
			err := cmd.Wait()
			close(exit)
			if ctx.Err() == nil && err != nil {
				logger.WithError(err).Debug("Process exited")
			}
		}()
		logger.WithField("pid", cmd.Process.Pid).Info("Started process")
	}
	return nil
}

func (w *Watcher) command(ctx context.Context, argv []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = w.root
	cmd.Stdout = w.opts.Stdout
	cmd.Stderr = w.opts.Stderr
	return cmd
}

// stopProcess kills the rule's long-running process, if any, and waits for it.
func (w *Watcher) stopProcess(r *runner) {
	r.mu.Lock()
	proc, exit := r.proc, r.exit
	r.proc, r.exit = nil, nil
	r.mu.Unlock()
	if proc == nil {
		return
	}
	_ = proc.Process.Kill()
	<-exit
}
