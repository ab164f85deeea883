// Package engine is the daemon's single writer. It owns the dispatcher and
// feeds it, one payload at a time, from a queue that collectors and API
// handlers post into.
package engine

import (
	"context"
	"sync"

	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/internal/daemon/collector"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/dispatcher"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is used when New is given a negative queue size.
const DefaultQueueSize = 256

// Engine manages the action queue and runs all collectors.
type Engine struct {
	dispatcher *dispatcher.Dispatcher
	store      *store.Store
	collectors []collector.Collector
	queue      chan action.Payload
	logger     *logrus.Entry

	// stopped is closed when the consumer exits; Post fails after that.
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a new Engine around d. A store registered with d should be set
// with SetStore so collectors and Store() can read it.
func New(d *dispatcher.Dispatcher, logger *logrus.Entry, queueSize int) *Engine {
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}
	return &Engine{
		dispatcher: d,
		queue:      make(chan action.Payload, queueSize),
		logger:     logger,
		stopped:    make(chan struct{}),
	}
}

// SetStore sets the store handed to collectors.
func (e *Engine) SetStore(st *store.Store) {
	e.store = st
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Post queues p for dispatch. It blocks while the queue is full and fails
// once ctx is done or the engine has stopped. Post is safe for concurrent use.
func (e *Engine) Post(ctx context.Context, p action.Payload) error {
	if p.Action == nil {
		return mwerrors.InvalidAction("nil", "payload carries no action")
	}
	select {
	case <-e.stopped:
		return mwerrors.New(mwerrors.ErrCodeInternal, "engine is not running")
	default:
	}
	select {
	case e.queue <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return mwerrors.New(mwerrors.ErrCodeInternal, "engine is not running")
	}
}

// Start runs the dispatch loop and all collectors, and blocks until ctx is
// canceled and every collector has returned.
func (e *Engine) Start(ctx context.Context) {
	var wg sync.WaitGroup

	// 1. Start the single dispatching consumer
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer e.stopOnce.Do(func() { close(e.stopped) })
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-e.queue:
				e.dispatch(p)
			}
		}
	}()

	// 2. Start Collectors
	for _, c := range e.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			e.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, e.store, e.Post); err != nil {
				e.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
			}
		}(c)
	}

	wg.Wait()
}

func (e *Engine) dispatch(p action.Payload) {
	if err := e.dispatcher.Dispatch(p); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"type":   string(p.Action.Kind()),
			"source": string(p.Source),
		}).Error("Dispatch failed")
	}
}
