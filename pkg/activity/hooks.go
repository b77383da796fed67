package activity

import (
	"context"
	"errors"
	"fmt"
)

// Hook is a destination for activity events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks delivers an event to several destinations.
type Hooks []Hook

// Notify hands event to every hook, even after one fails. Incomplete events
// are ignored. Failures come back joined, each tagged with its hook position.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var failures []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			failures = append(failures, fmt.Errorf("activity: hook %d: %w", i, err))
		}
	}
	return errors.Join(failures...)
}

func (h Hooks) compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}
