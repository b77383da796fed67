package activity

import (
	"context"
	"slices"
	"sync"
	"time"
)

// CaptureHook keeps every event it receives. Tests use it to assert on
// emitted activity; Err, when set, is returned from each Notify.
type CaptureHook struct {
	Err error

	mu     sync.Mutex
	events []Event
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	h.events = append(h.events, event.Normalized(time.Now()))
	h.mu.Unlock()
	return h.Err
}

// Events returns the recorded events, oldest first.
func (h *CaptureHook) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.events)
}

// Verbs returns the verb of each recorded event.
func (h *CaptureHook) Verbs() []string {
	events := h.Events()
	verbs := make([]string, len(events))
	for i, event := range events {
		verbs[i] = event.Verb
	}
	return verbs
}
