// Package poller refreshes a resource on a fixed interval and on demand,
// never running more than one refresh at a time.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/inkcloud/go-settings/internal/clock"
)

// ErrStopped is returned by Refresh after Stop.
var ErrStopped = errors.New("poller: stopped")

const key = "refresh"

// Func performs one refresh.
type Func func(ctx context.Context) error

// Option customizes a Poller.
type Option func(*Poller)

// WithClock sets the clock driving the interval.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger for failed refreshes.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithImmediate refreshes once as soon as Start is called.
func WithImmediate() Option {
	return func(p *Poller) {
		p.immediate = true
	}
}

// Poller runs fn every interval after Start. Trigger requests an extra
// refresh, such as when the dashboard regains focus. A trigger or tick that
// arrives while a refresh is in flight joins it instead of starting another.
type Poller struct {
	fn        Func
	interval  time.Duration
	clock     clock.Clock
	logger    *zap.Logger
	immediate bool

	group singleflight.Group
	wg    sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timer   clock.Timer
	started bool
	stopped bool
}

// New returns a stopped poller.
func New(fn Func, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		fn:       fn,
		interval: interval,
		clock:    clock.Real(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start begins polling. Refreshes receive a context derived from ctx that is
// cancelled by Stop. Calling Start twice has no effect.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.scheduleLocked()
	immediate := p.immediate
	p.mu.Unlock()

	if immediate {
		p.Trigger()
	}
}

// Trigger starts a refresh in the background unless one is in flight.
func (p *Poller) Trigger() {
	ch, ok := p.launch()
	if !ok {
		return
	}
	go func() {
		defer p.wg.Done()
		if res := <-ch; res.Err != nil && !errors.Is(res.Err, context.Canceled) {
			p.logger.Warn("refresh failed", zap.Error(res.Err))
		}
	}()
}

// Refresh runs a refresh, or joins the one in flight, and waits for it.
func (p *Poller) Refresh(ctx context.Context) error {
	ch, ok := p.launch()
	if !ok {
		return ErrStopped
	}
	defer p.wg.Done()
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels timers and the refresh context and waits for in-flight
// refreshes to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) launch() (<-chan singleflight.Result, bool) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, false
	}
	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	p.wg.Add(1)
	p.mu.Unlock()

	return p.group.DoChan(key, func() (any, error) {
		return nil, p.fn(ctx)
	}), true
}

func (p *Poller) tick() {
	p.Trigger()
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.scheduleLocked()
	}
}

func (p *Poller) scheduleLocked() {
	if p.interval <= 0 {
		return
	}
	p.timer = p.clock.AfterFunc(p.interval, p.tick)
}
