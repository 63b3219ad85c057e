// Package scheduler runs delayed and periodic jobs on goroutines that are
// tied to a single lifecycle. Stop lets jobs that are already due finish,
// then cancels pending timers and waits for running jobs to return.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Scheduler schedules jobs. The returned cancel func is safe to call more
// than once and after the job has run.
type Scheduler interface {
	After(d time.Duration, job func(ctx context.Context)) (cancel func())
	Every(d time.Duration, job func(ctx context.Context)) (cancel func())
}

// Runner is the timer-backed Scheduler used in production.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	mu      sync.Mutex
	drained *sync.Cond
	due     int  // immediate jobs not yet finished
	stopped bool // no new work is accepted
	wg      sync.WaitGroup
}

// New creates a Runner. Jobs receive a context derived from parent that is
// cancelled on Stop.
func New(parent context.Context, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Runner{ctx: ctx, cancel: cancel, log: log}
	r.drained = sync.NewCond(&r.mu)
	return r
}

// After runs job once after d. A non-positive d makes the job due at once:
// it runs on a new goroutine and Stop waits for it instead of dropping it.
func (r *Runner) After(d time.Duration, job func(ctx context.Context)) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return func() {}
	}

	if d <= 0 {
		r.due++
		go func() {
			defer r.finishDue()
			select {
			case <-done:
				return
			default:
			}
			r.run(job)
		}()
		return stop
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-r.ctx.Done():
			return
		case <-done:
			return
		case <-t.C:
		}
		r.run(job)
	}()
	return stop
}

func (r *Runner) finishDue() {
	r.mu.Lock()
	r.due--
	if r.due == 0 {
		r.drained.Broadcast()
	}
	r.mu.Unlock()
}

// Every runs job every d until cancelled or the runner stops. Runs never
// overlap; a slow job delays the next tick.
func (r *Runner) Every(d time.Duration, job func(ctx context.Context)) func() {
	if d <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return func() {}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				r.run(job)
			}
		}
	}()
	return stop
}

// Stop waits for due jobs, including due jobs they schedule, then cancels
// every pending timer and waits for running jobs to return. Delayed jobs
// that have not fired are dropped. Stop is idempotent.
func (r *Runner) Stop() {
	r.mu.Lock()
	for r.due > 0 {
		r.drained.Wait()
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// run isolates a job panic so one bad job cannot take down the loop.
func (r *Runner) run(job func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("scheduled job panicked", "panic", p, "stack", string(debug.Stack()))
		}
	}()
	job(r.ctx)
}
