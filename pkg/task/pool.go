// Package task provides the execution backends command dispatch runs
// on: a bounded worker pool for command actions and a trivial
// goroutine-per-task runner for lightweight work.
package task

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// Runner schedules a function for asynchronous execution.
type Runner interface {
	Go(fn func())
}

// Goroutines runs every task on its own goroutine.
type Goroutines struct{}

func (Goroutines) Go(fn func()) { go fn() }

const (
	defaultWorkers   = 8
	defaultQueueSize = 256
)

// Pool is a fixed-size worker pool with a bounded queue. Submissions
// beyond the queue bound block the caller rather than dropping work.
type Pool struct {
	queue chan func()
	wg    sync.WaitGroup

	stopOnce sync.Once

	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
}

// NewPool starts a pool with the given worker count and queue depth.
// Non-positive values fall back to defaults.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &Pool{queue: make(chan func(), queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for fn := range p.queue {
		p.run(id, fn)
	}
}

func (p *Pool) run(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			buf := make([]byte, 8192)
			n := runtime.Stack(buf, false)
			slog.Error("task panicked", "worker", id, "panic", r, "stack", string(buf[:n]))
		}
		p.completed.Add(1)
	}()
	fn()
}

// Go enqueues fn, blocking if the queue is full. Submitting to a
// stopped pool panics.
func (p *Pool) Go(fn func()) {
	p.submitted.Add(1)
	p.queue <- fn
}

// Stop closes the queue and waits for in-flight tasks to drain.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// Stats reports lifetime pool counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Panicked  uint64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}
