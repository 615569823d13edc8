package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// slots holds one FIFO queue per aggregate. At most one drain goroutine owns
// an aggregate at a time; it exists while the queue is non-empty.
type slots struct {
	mu     sync.Mutex
	queues map[uuid.UUID][]*job
}

func newSlots() *slots {
	return &slots{queues: make(map[uuid.UUID][]*job)}
}

// push appends j and reports whether the caller must start a drain for agg.
func (s *slots) push(agg uuid.UUID, j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, busy := s.queues[agg]
	s.queues[agg] = append(q, j)
	return !busy
}

// peek returns the head of agg's queue without removing it.
func (s *slots) peek(agg uuid.UUID) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[agg]
	if len(q) == 0 {
		return nil, false
	}
	return q[0], true
}

// done removes the head of agg's queue. When the queue empties the slot is
// released and done reports false.
func (s *slots) done(agg uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[agg]
	if len(q) <= 1 {
		delete(s.queues, agg)
		return false
	}
	q[0] = nil
	s.queues[agg] = q[1:]
	return true
}

// depth counts queued jobs, including the ones running.
func (s *slots) depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}
