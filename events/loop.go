package events

import (
	"context"
	"sync"
	"time"
)

// Loop runs posted tasks one at a time on the goroutine that calls Run.
// Real-time timers and events from other goroutines are funnelled through
// Post so that code driven by the loop never runs concurrently with itself.
type Loop struct {
	tasks   []func()
	wake    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewLoop creates a new loop.
func NewLoop() *Loop {
	return &Loop{
		tasks: make([]func(), 0),
		wake:  make(chan struct{}, 1),
	}
}

// Post queues fn to run on the loop. It returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc posts f to the loop once d has elapsed. It satisfies observer.Timer.
func (l *Loop) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, func() { l.Post(f) })
}

// Run executes tasks until ctx is done. Tasks still queued when ctx ends are
// discarded and later Posts are refused.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.tasks = nil
		l.mu.Unlock()
	}()

	for {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// next pops the oldest task.
func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks = l.tasks[1:]
	return fn, true
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}
