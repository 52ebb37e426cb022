// Package scheduler runs one-shot delayed tasks.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler runs each scheduled func once, on its own goroutine, after its
// delay. Tasks scheduled after Close are dropped.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func New() *Scheduler {
	return &Scheduler{pending: make(map[string]*time.Timer)}
}

// Schedule queues fn to run after delay and returns the task id. A dropped
// task returns an empty id.
func (s *Scheduler) Schedule(fn func(), delay time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		slog.Debug("scheduler closed, dropping task")
		return ""
	}

	id := uuid.NewString()
	s.pending[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, live := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()
		if !live {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				slog.Error("scheduled task panicked", "task", id, "panic", r)
			}
		}()
		fn()
	})
	return id
}

// Pending reports how many tasks have not started yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops every pending task. Running tasks are not interrupted.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
