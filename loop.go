package watchdir

import (
	"errors"
	"sync"
)

var errLoopStopped = errors.New("loop stopped")

// loop runs every state transition of a watch tree on one goroutine. Work that blocks on the
// file system runs on its own goroutine and posts a continuation back to the loop.
type loop struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue []func()

	// pending counts queued tasks plus async work that has not posted its continuation yet
	pending int

	// reason is set when run should return
	reason error

	// stopped drops all queued and future work
	stopped bool
}

func newLoop() *loop {
	l := &loop{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// post queues fn to run on the loop goroutine.
func (l *loop) post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.queue = append(l.queue, fn)
	l.pending++
	l.cond.Broadcast()
}

// async runs work on a new goroutine and queues the continuation it returns, if any. The
// continuation is dropped when the loop has been stopped in the meantime.
func (l *loop) async(work func() func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending++
	l.mu.Unlock()

	go func() {
		next := work()

		l.mu.Lock()
		defer l.mu.Unlock()
		l.pending--
		if !l.stopped && next != nil {
			l.queue = append(l.queue, next)
			l.pending++
		}
		l.cond.Broadcast()
	}()
}

// run executes queued tasks on the calling goroutine until interrupt is called.
func (l *loop) run() error {
	l.mu.Lock()
	for {
		for len(l.queue) == 0 && l.reason == nil {
			l.cond.Wait()
		}
		if l.reason != nil {
			reason := l.reason
			l.mu.Unlock()
			return reason
		}

		// Pop the next task and run it without holding the lock
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()

		l.mu.Lock()
		l.pending--
		l.cond.Broadcast()
	}
}

// interrupt makes run return reason once the current task is done. The first reason wins.
func (l *loop) interrupt(reason error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reason == nil {
		l.reason = reason
	}
	l.cond.Broadcast()
}

// stop discards queued tasks and makes every later post or continuation a no-op.
func (l *loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.pending -= len(l.queue)
	l.queue = nil
	if l.reason == nil {
		l.reason = errLoopStopped
	}
	l.cond.Broadcast()
}

// waitIdle blocks until no task is queued and no async work is outstanding.
func (l *loop) waitIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.pending > 0 {
		l.cond.Wait()
	}
}
