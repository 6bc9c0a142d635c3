// Package scheduler bounds concurrent dispatch and orders waiting queries
// by priority.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("scheduler closed")

// Scheduler hands out a fixed number of dispatch slots. When every slot is
// taken, waiters are served highest score first and ties in arrival order.
type Scheduler struct {
	mu      sync.Mutex
	slots   int
	active  int
	seq     uint64
	closed  bool
	waiters waitQueue
	logger  *slog.Logger
}

// New creates a Scheduler with maxConcurrent slots (at least one).
func New(maxConcurrent int, logger *slog.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		slots:  maxConcurrent,
		logger: logger.With("component", "scheduler"),
	}
}

// Acquire blocks until a slot is available or ctx is done. The returned
// release func must be called exactly once; extra calls are no-ops.
func (s *Scheduler) Acquire(ctx context.Context, score float64) (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.active < s.slots && s.waiters.Len() == 0 {
		s.active++
		s.mu.Unlock()
		return s.releaser(), nil
	}

	w := &waiter{score: score, seq: s.seq, ready: make(chan struct{})}
	s.seq++
	heap.Push(&s.waiters, w)
	pending := s.waiters.Len()
	s.mu.Unlock()

	s.logger.Debug("waiting for dispatch slot", "score", score, "pending", pending)

	select {
	case <-w.ready:
		if w.closed {
			return nil, ErrClosed
		}
		return s.releaser(), nil
	case <-ctx.Done():
		s.mu.Lock()
		granted := w.granted
		if !granted && w.index >= 0 {
			heap.Remove(&s.waiters, w.index)
		}
		s.mu.Unlock()
		if granted && !w.closed {
			// The slot arrived together with cancellation; pass it on.
			s.release()
		}
		return nil, ctx.Err()
	}
}

func (s *Scheduler) releaser() func() {
	var once sync.Once
	return func() { once.Do(s.release) }
}

func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.waiters.Len() > 0 {
		w := heap.Pop(&s.waiters).(*waiter)
		w.granted = true
		close(w.ready)
		return
	}
	if s.active > 0 {
		s.active--
	}
}

// Close wakes every waiter with ErrClosed and rejects later Acquire calls.
// Slots already held stay valid until released.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for s.waiters.Len() > 0 {
		w := heap.Pop(&s.waiters).(*waiter)
		w.granted = true
		w.closed = true
		close(w.ready)
	}
}

// Pending returns the number of queries waiting for a slot.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}

// Active returns the number of slots in use.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Capacity returns the configured slot count.
func (s *Scheduler) Capacity() int {
	return s.slots
}
