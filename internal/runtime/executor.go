package runtime

import (
	"log/slog"
	"sync"
)

// serial runs queued tasks one at a time, in submission order, on whichever
// goroutine finds the queue idle. It never spawns goroutines.
type serial struct {
	mu     sync.Mutex
	queue  []func()
	busy   bool
	logger *slog.Logger
	name   string
}

// submit queues fn. If no goroutine is draining the queue, the caller drains it
// and submit reports true.
func (s *serial) submit(fn func()) bool {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.busy {
		s.mu.Unlock()
		return false
	}
	s.run()
	return true
}

// enqueue queues fn without draining.
func (s *serial) enqueue(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

// drain runs queued tasks unless another goroutine already does.
func (s *serial) drain() {
	s.mu.Lock()
	if s.busy || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	s.run()
}

// run must be called with mu held; it returns with mu released.
func (s *serial) run() {
	s.busy = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.call(next)
		s.mu.Lock()
	}
	s.queue = nil
	s.busy = false
	s.mu.Unlock()
}

func (s *serial) call(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("task panicked", "queue", s.name, "panic", p)
		}
	}()
	fn()
}
