package sinks

import (
	"context"
	"sync"

	"ticksim/server/logging"
)

// Memory is a ring-buffer sink used by tests to assert events were emitted
// without standing up a real log destination.
type Memory struct {
	mu       sync.Mutex
	capacity int
	events   []logging.Event
}

// NewMemory constructs a Memory sink retaining at most capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{capacity: capacity}
}

// Write implements logging.Sink.
func (s *Memory) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
	return nil
}

// Close implements logging.Sink.
func (s *Memory) Close(context.Context) error { return nil }

// Events returns a copy of the retained events.
func (s *Memory) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]logging.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType filters retained events by type.
func (s *Memory) ByType(t logging.EventType) []logging.Event {
	var matched []logging.Event
	for _, e := range s.Events() {
		if e.Type == t {
			matched = append(matched, e)
		}
	}
	return matched
}
