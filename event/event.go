// Package event implements the fire-and-forget Event Scheduler: enqueued
// tasks run in their own scope-isolated goroutine, independent of the
// triggering request's cancellation, and a failure inside one is swallowed
// at the task boundary rather than propagated anywhere — the scheduler's
// job is to run the task and track completion, not to surface its outcome.
//
// The tracker uses sync.Map to record in-flight tasks (many concurrent
// writers enqueuing, the occasional read during diagnostics) and a
// sync.WaitGroup purely to signal a graceful drain — this mirrors
// go-core/natsclient/client.go's Close()/Drain() shape (wait for
// outstanding work to flush before the process moves on), generalized from
// "flush network buffers" to "wait for goroutines".
package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/correlation"
)

// Task is a unit of fire-and-forget work. It receives its own context,
// already carrying the triggering call's CorrelationId but not its
// cancellation — a client disconnect or request timeout must not cut off
// an in-flight event.
type Task func(ctx context.Context)

// Scheduler enqueues Tasks and tracks their completion for a graceful
// shutdown drain.
type Scheduler struct {
	logger   *zap.Logger
	nc       *nats.Conn
	subject  string
	wg       sync.WaitGroup
	inFlight sync.Map // id (int64) -> time.Time, for diagnostics
	nextID   int64
}

// Option configures optional Scheduler behavior at construction time.
type Option func(*Scheduler)

// WithPublisher makes the Scheduler publish a notification to subject on
// nc every time a Task finishes, carrying the task's correlation id. A
// Scheduler built without this option never touches NATS.
func WithPublisher(nc *nats.Conn, subject string) Option {
	return func(s *Scheduler) {
		s.nc = nc
		s.subject = subject
	}
}

// New returns a Scheduler. logger is required; it gets a Debug line for
// every task that returns, an Error line for every panic swallowed, and a
// Warn line for every error an EnqueueFailable task returns.
func New(logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue starts task in its own goroutine, detached from ctx's
// cancellation but carrying its ambient CorrelationId. It returns
// immediately; the caller does not observe the task's outcome.
func (s *Scheduler) Enqueue(ctx context.Context, task Task) {
	id := atomic.AddInt64(&s.nextID, 1)
	scope := correlation.WithScope(ctx, context.Background())

	s.wg.Add(1)
	s.inFlight.Store(id, time.Now())

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("event task panicked, swallowing", zap.Any("panic", r), zap.Int64("task_id", id))
			}
			s.inFlight.Delete(id)
			s.wg.Done()
		}()
		task(scope)
		s.logger.Debug("event task completed", zap.Int64("task_id", id))
		s.publishCompletion(scope, id)
	}()
}

// EnqueueFailable is Enqueue for a task that returns an error instead of
// handling its own failure; the error is logged and swallowed at this
// boundary, never propagated past the Scheduler.
func (s *Scheduler) EnqueueFailable(ctx context.Context, task func(ctx context.Context) error) {
	s.Enqueue(ctx, func(ctx context.Context) {
		if err := task(ctx); err != nil {
			s.logger.Warn("event task failed, swallowing at task boundary", zap.Error(err))
		}
	})
}

// publishCompletion notifies s.nc's subject that task id finished, if a
// publisher was configured. A publish failure is logged and swallowed at
// the same boundary as a task's own error — it must never hold up Drain.
func (s *Scheduler) publishCompletion(ctx context.Context, id int64) {
	if s.nc == nil {
		return
	}
	corrID, _ := correlation.Get(ctx)
	if err := s.nc.Publish(s.subject, []byte(fmt.Sprintf(`{"task_id":%d,"correlation_id":%q}`, id, corrID))); err != nil {
		s.logger.Warn("event task completion publish failed, swallowing", zap.Int64("task_id", id), zap.Error(err))
	}
}

// Pending reports the number of tasks currently running.
func (s *Scheduler) Pending() int {
	n := 0
	s.inFlight.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Drain blocks until every enqueued task has completed or timeout elapses,
// whichever comes first. It returns false if the timeout was reached with
// tasks still outstanding. If a publisher is configured, it also drains
// the NATS connection so completion notifications already handed to the
// client are flushed rather than dropped, falling back to Close on a
// Drain error the way natsclient.Client.Close does.
func (s *Scheduler) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	ok := true
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("event scheduler drain timed out", zap.Int("pending", s.Pending()))
		ok = false
	}

	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.logger.Warn("nats drain failed, closing connection", zap.Error(err))
			s.nc.Close()
		}
	}
	return ok
}
