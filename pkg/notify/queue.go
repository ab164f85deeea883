package notify

import (
	"context"
	"sync/atomic"
)

// Queue buffers publications between a listener, which must never block,
// and a slower reader. When the buffer overflows the queue turns dirty and
// the reader's next Next returns None, so a dropped tag becomes a full reload
// instead of a lost change.
type Queue struct {
	ch    chan Namespace
	wake  chan struct{}
	dirty atomic.Bool
}

// NewQueue creates a queue holding up to size pending tags.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch:   make(chan Namespace, size),
		wake: make(chan struct{}, 1),
	}
}

// Push enqueues ns without blocking. It has the Listener signature.
func (q *Queue) Push(ns Namespace) {
	select {
	case q.ch <- ns:
		return
	default:
	}
	q.dirty.Store(true)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Next blocks until a tag is available or ctx is done. After an overflow it
// returns None once and discards the tags buffered before it.
func (q *Queue) Next(ctx context.Context) (Namespace, error) {
	for {
		if q.dirty.Swap(false) {
			q.drain()
			return None, nil
		}
		select {
		case <-ctx.Done():
			return None, ctx.Err()
		case ns := <-q.ch:
			return ns, nil
		case <-q.wake:
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
