// Package dashboard wires one settings controller per domain, the stock
// controller and the summary poller for the tenant being viewed.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/internal/clock"
	"github.com/inkcloud/go-settings/pkg/api"
	"github.com/inkcloud/go-settings/pkg/domains"
	"github.com/inkcloud/go-settings/pkg/poller"
	"github.com/inkcloud/go-settings/pkg/state"
	"github.com/inkcloud/go-settings/pkg/stock"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dashboard: workspace closed")
	// ErrNoTenant is returned before the first SelectTenant.
	ErrNoTenant = errors.New("dashboard: no tenant selected")
)

// DefaultPollInterval is how often the tenant summary is refreshed.
const DefaultPollInterval = 30 * time.Second

// CollaboratorFactory returns the collaborator backing domain.
type CollaboratorFactory func(domain domains.Domain) settings.Collaborator

// SummarySource fetches the tenant summary. *api.Client implements it.
type SummarySource interface {
	Summary(ctx context.Context, tenant string) (api.Summary, error)
}

// ListerSummary builds summaries from a state.Lister.
type ListerSummary struct {
	Lister state.Lister
}

func (l ListerSummary) Summary(ctx context.Context, tenant string) (api.Summary, error) {
	names, err := l.Lister.List(ctx, tenant)
	if err != nil {
		return api.Summary{}, err
	}
	return api.Summary{Tenant: tenant, Domains: names, GeneratedAt: time.Now().UTC()}, nil
}

// Option customizes a Workspace.
type Option func(*Workspace)

// WithDomains replaces the managed domains.
func WithDomains(list ...domains.Domain) Option {
	return func(w *Workspace) {
		w.domains = append([]domains.Domain(nil), list...)
	}
}

// WithLedger enables the stock controller.
func WithLedger(ledger stock.Ledger) Option {
	return func(w *Workspace) {
		w.ledger = ledger
	}
}

// WithSummarySource enables summary polling.
func WithSummarySource(source SummarySource) Option {
	return func(w *Workspace) {
		w.summary = source
	}
}

// WithPollInterval sets the summary refresh interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Workspace) {
		w.interval = d
	}
}

// WithClock drives controller timers and polling.
func WithClock(c clock.Clock) Option {
	return func(w *Workspace) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithControllerOptions appends options to every settings controller.
func WithControllerOptions(opts ...settings.Option) Option {
	return func(w *Workspace) {
		w.controllerOpts = append(w.controllerOpts, opts...)
	}
}

// WithLoadLimit caps concurrent domain loads.
func WithLoadLimit(n int) Option {
	return func(w *Workspace) {
		w.loadLimit = n
	}
}

// Workspace is the page-level state for one tenant at a time.
type Workspace struct {
	factory        CollaboratorFactory
	domains        []domains.Domain
	ledger         stock.Ledger
	summary        SummarySource
	interval       time.Duration
	clock          clock.Clock
	logger         *zap.Logger
	controllerOpts []settings.Option
	loadLimit      int

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	tenant      string
	generation  uint64
	controllers map[string]*settings.Controller
	stock       *stock.Controller
	poller      *poller.Poller
	latest      *api.Summary
}

// New returns a workspace with no tenant selected.
func New(factory CollaboratorFactory, opts ...Option) *Workspace {
	w := &Workspace{
		factory:     factory,
		domains:     domains.All(),
		interval:    DefaultPollInterval,
		clock:       clock.Real(),
		logger:      zap.NewNop(),
		loadLimit:   4,
		controllers: map[string]*settings.Controller{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	if w.ledger != nil {
		w.stock = stock.NewController(w.ledger, stock.WithLogger(w.logger))
	}
	return w
}

// SelectTenant tears down the previous tenant's state, builds fresh
// controllers and loads every domain concurrently. A failed load leaves that
// controller in StatusError with defaults; the failures are joined into the
// returned error.
func (w *Workspace) SelectTenant(ctx context.Context, tenant string) error {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return ErrNoTenant
	}

	controllers := make(map[string]*settings.Controller, len(w.domains))
	for _, d := range w.domains {
		opts := append([]settings.Option{
			settings.WithClock(w.clock),
			settings.WithLogger(w.logger),
		}, w.controllerOpts...)
		controllers[d.Name] = d.NewController(w.factory(d), opts...)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		closeAll(controllers)
		return ErrClosed
	}
	previous, previousPoller := w.controllers, w.poller
	w.generation++
	w.tenant = tenant
	w.controllers = controllers
	w.latest = nil
	w.poller = nil
	if w.summary != nil {
		w.poller = poller.New(w.refreshSummary, w.interval,
			poller.WithClock(w.clock), poller.WithLogger(w.logger), poller.WithImmediate())
	}
	p := w.poller
	w.mu.Unlock()

	closeAll(previous)
	if previousPoller != nil {
		previousPoller.Stop()
	}
	if w.stock != nil {
		w.stock.Reset()
	}
	if p != nil {
		p.Start(w.ctx)
	}

	return w.loadAll(ctx, tenant, controllers)
}

func (w *Workspace) loadAll(ctx context.Context, tenant string, controllers map[string]*settings.Controller) error {
	names := make([]string, 0, len(controllers))
	for name := range controllers {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu       sync.Mutex
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	if w.loadLimit > 0 {
		g.SetLimit(w.loadLimit)
	}
	for _, name := range names {
		controller := controllers[name]
		g.Go(func() error {
			err := controller.Load(gctx, tenant)
			if err == nil || errors.Is(err, settings.ErrStale) || errors.Is(err, settings.ErrClosed) {
				return nil
			}
			w.logger.Warn("domain load failed", zap.String("tenant", tenant), zap.String("domain", name), zap.Error(err))
			mu.Lock()
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(failures...)
}

// refreshSummary fetches the summary for the tenant selected when the call
// started and drops the response if the tenant changed meanwhile.
func (w *Workspace) refreshSummary(ctx context.Context) error {
	w.mu.Lock()
	tenant, gen := w.tenant, w.generation
	source := w.summary
	w.mu.Unlock()
	if tenant == "" || source == nil {
		return nil
	}

	summary, err := source.Summary(ctx, tenant)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.generation != gen {
		w.logger.Debug("discarding stale summary", zap.String("tenant", tenant))
		return nil
	}
	w.latest = &summary
	return nil
}

// RefreshSummary refreshes the summary now, joining any refresh in flight.
func (w *Workspace) RefreshSummary(ctx context.Context) error {
	w.mu.Lock()
	p := w.poller
	w.mu.Unlock()
	if p == nil {
		return ErrNoTenant
	}
	return p.Refresh(ctx)
}

// Focus requests a summary refresh, as when the dashboard regains focus.
func (w *Workspace) Focus() {
	w.mu.Lock()
	p := w.poller
	w.mu.Unlock()
	if p != nil {
		p.Trigger()
	}
}

// Summary returns the latest summary for the current tenant.
func (w *Workspace) Summary() (api.Summary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return api.Summary{}, false
	}
	return *w.latest, true
}

// Tenant returns the selected tenant.
func (w *Workspace) Tenant() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tenant
}

// Controller returns the controller for domain.
func (w *Workspace) Controller(domain string) (*settings.Controller, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.controllers[domain]
	return c, ok
}

// Snapshots returns every controller's snapshot sorted by domain.
func (w *Workspace) Snapshots() []settings.Snapshot {
	w.mu.Lock()
	controllers := make([]*settings.Controller, 0, len(w.controllers))
	for _, c := range w.controllers {
		controllers = append(controllers, c)
	}
	w.mu.Unlock()
	out := make([]settings.Snapshot, 0, len(controllers))
	for _, c := range controllers {
		out = append(out, c.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stock returns the stock controller, or nil without a ledger.
func (w *Workspace) Stock() *stock.Controller {
	return w.stock
}

// Close tears down controllers, polling and in-flight requests.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.generation++
	controllers, p := w.controllers, w.poller
	w.controllers = map[string]*settings.Controller{}
	w.poller = nil
	w.latest = nil
	w.mu.Unlock()

	closeAll(controllers)
	if p != nil {
		p.Stop()
	}
	w.cancel()
}

func closeAll(controllers map[string]*settings.Controller) {
	for _, c := range controllers {
		c.Close()
	}
}
