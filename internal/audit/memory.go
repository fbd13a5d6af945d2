package audit

import (
	"context"
	"sync"
)

// MemorySink keeps events in memory for local development and tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Write implements Sink.
func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
