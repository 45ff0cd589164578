package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop is the production scheduler: a single-goroutine event loop fed by
// wall-clock timers.
//
// Timer expiries and posted tasks are appended to one unbounded FIFO queue;
// Run dequeues and executes them one at a time. Everything a lesson does
// therefore happens on the Run goroutine, in arrival order.
//
// Thread-safety model:
//   - Post(), AfterFunc(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1; closed on Stop
	logger *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used to report panicking tasks.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a stopped-until-Run loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn to run on the loop goroutine after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(max(d, 0), func() {
		l.Post(func() {
			if t.fire() {
				fn()
			}
		})
	})
	return t
}

type loopTimer struct {
	claim
	timer *time.Timer
}

// Stop prevents the callback from running, even if its expiry is already
// sitting in the loop queue.
func (t *loopTimer) Stop() bool {
	if !t.stop() {
		return false
	}
	t.timer.Stop()
	return true
}

// Post appends fn to the queue. Returns false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	l.tasks = append(l.tasks, fn)

	// Non-blocking: the size-1 buffer coalesces signals.
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// Run executes queued tasks until ctx is cancelled or Stop is called.
//
// A panicking task is logged and the loop continues, so one misbehaving
// lesson cannot stop the others sharing the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("scheduler loop starting")

	for {
		if task, ok := l.tryDequeue(); ok {
			l.runTask(task)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("scheduler loop stopping: context cancelled")
			l.Stop()
			return ctx.Err()

		case <-l.signal:
			// The signal channel closes on Stop, which makes this case fire
			// immediately; drain what is left and exit.
			if l.isClosed() && l.Len() == 0 {
				l.logger.Debug("scheduler loop stopping: stopped")
				return nil
			}
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled task panicked", "panic", r)
		}
	}()
	task()
}

// Stop closes the queue. Tasks already queued still run; new posts and
// timer expiries are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Loop) tryDequeue() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}

	task := l.tasks[0]
	// Nil out the slot so the backing array does not retain the closure.
	l.tasks[0] = nil
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return task, true
}
