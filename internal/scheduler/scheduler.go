// Package scheduler runs widget callbacks one at a time on a single event
// loop, with cancellable delayed tasks.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// TaskID identifies a delayed task. The zero value never names a live task.
type TaskID uint64

// Scheduler is the single-threaded execution context shared by a controller
// and its timers.
type Scheduler interface {
	// After runs fn on the loop once d has elapsed.
	After(d time.Duration, fn func()) TaskID
	// Cancel prevents a pending task from running. It reports whether the
	// task was still pending.
	Cancel(id TaskID) bool
	// Post queues fn to run on the loop. Safe from any goroutine.
	Post(fn func())
	Now() time.Time
}

// Loop is the production Scheduler backed by wall-clock timers.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
	nextID TaskID
	timers map[TaskID]*time.Timer
}

// NewLoop returns an idle loop; callbacks run once Run is called.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		timers: make(map[TaskID]*time.Timer),
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) After(d time.Duration, fn func()) TaskID {
	if fn == nil {
		return 0
	}
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0
	}
	l.nextID++
	id := l.nextID
	l.timers[id] = time.AfterFunc(d, func() {
		l.Post(func() {
			// The task may have been cancelled after the timer fired.
			if !l.take(id) {
				return
			}
			fn()
		})
	})
	return id
}

func (l *Loop) Cancel(id TaskID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(l.timers, id)
	return true
}

func (l *Loop) take(id TaskID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.timers[id]; !ok {
		return false
	}
	delete(l.timers, id)
	return true
}

// Run executes queued callbacks until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.done:
			return
		case <-l.wake:
		}
	}
}

// Close stops every pending timer and drops further work. Idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
	l.queue = nil
	close(l.done)
}

// Pending reports the number of delayed tasks that have not yet run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}
