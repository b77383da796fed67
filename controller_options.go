package settings

import (
	"time"

	"go.uber.org/zap"

	"github.com/inkcloud/go-settings/internal/clock"
	"github.com/inkcloud/go-settings/pkg/activity"
)

const (
	// DefaultDebounce is the quiet period before a scheduled persist fires.
	DefaultDebounce = 650 * time.Millisecond
	// DefaultSuccessReset is how long StatusSuccess is shown before idle.
	DefaultSuccessReset = 1800 * time.Millisecond
)

// Option customizes a Controller.
type Option func(*Controller)

// WithFields sets the table of mutable paths. Without one, Set rejects every
// path and Patch accepts any subtree.
func WithFields(fields FieldTable) Option {
	return func(c *Controller) {
		c.fields = fields
	}
}

// WithRules sets whole-document rules checked before each persist.
func WithRules(rules ...Rule) Option {
	return func(c *Controller) {
		c.rules = append([]Rule(nil), rules...)
	}
}

// WithEvaluator registers evaluator for engine, replacing the default.
func WithEvaluator(engine string, evaluator Evaluator) Option {
	return func(c *Controller) {
		if evaluator == nil {
			return
		}
		if c.engines == nil {
			c.engines = Engines{}
		}
		c.engines[engine] = evaluator
	}
}

// WithEngines replaces the evaluator set.
func WithEngines(engines Engines) Option {
	return func(c *Controller) {
		c.engines = engines
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithSuccessReset overrides DefaultSuccessReset.
func WithSuccessReset(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.successReset = d
		}
	}
}

// WithClock swaps the timer source.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger. Rule evaluations are logged through it too.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivity emits change events through emitter.
func WithActivity(emitter *activity.Emitter) Option {
	return func(c *Controller) {
		c.activity = emitter
	}
}

// WithActor stamps emitted events with an actor id.
func WithActor(actorID string) Option {
	return func(c *Controller) {
		c.actor = actorID
	}
}

// WithOnChange registers a callback invoked after every observable change.
// It runs without the controller lock held.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}
