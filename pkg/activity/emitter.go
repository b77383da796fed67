package activity

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultChannel is stamped on events that arrive without one.
const DefaultChannel = "dashboard"

// Config switches emission on and names the default channel.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter normalizes events before handing them to its hooks. A nil Emitter
// drops everything.
type Emitter struct {
	hooks   Hooks
	channel string
	now     func() time.Time
	logger  *zap.Logger
}

// EmitterOption customizes an Emitter.
type EmitterOption func(*Emitter)

// WithLogger reports hook failures to logger. Emit still returns them.
func WithLogger(logger *zap.Logger) EmitterOption {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock stamps events lacking OccurredAt with now().
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEmitter returns an emitter over hooks. It stays silent unless cfg
// enables it and at least one hook is non-nil.
func NewEmitter(hooks Hooks, cfg Config, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		channel: strings.TrimSpace(cfg.Channel),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	if cfg.Enabled {
		e.hooks = hooks.compact()
	}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit normalizes event and delivers it.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	event = event.Normalized(e.now())
	if event.Channel == "" {
		event.Channel = e.channel
	}
	if err := e.hooks.Notify(ctx, event); err != nil {
		e.logger.Warn("activity hook failed",
			zap.String("verb", event.Verb),
			zap.String("object", event.ObjectType+"/"+event.ObjectID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
