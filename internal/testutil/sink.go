package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/navicue/internal/lesson"
)

// RecordingSink is a lesson.Sink that keeps every event it receives.
//
// Set Err to make Record fail after the event has been kept; instances
// must absorb sink failures, and tests use this to prove it.
//
// Thread-safety: All methods are safe for concurrent use.
type RecordingSink struct {
	Err error

	mu     sync.Mutex
	events []lesson.CompletionEvent
}

var _ lesson.Sink = (*RecordingSink)(nil)

// NewRecordingSink returns an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Record appends ev and returns s.Err.
func (s *RecordingSink) Record(_ context.Context, ev lesson.CompletionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.Err
}

// Events returns a copy of the recorded events in arrival order.
func (s *RecordingSink) Events() []lesson.CompletionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Len returns the number of recorded events.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Last returns the most recent event, if any.
func (s *RecordingSink) Last() (lesson.CompletionEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return lesson.CompletionEvent{}, false
	}
	return s.events[len(s.events)-1], true
}
