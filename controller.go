package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkcloud/go-settings/internal/clock"
	"github.com/inkcloud/go-settings/layering"
	"github.com/inkcloud/go-settings/pkg/activity"
)

// Collaborator loads and persists one domain document for a tenant.
// Persist must be idempotent: the controller may send the same document
// twice and does not serialize in-flight requests.
type Collaborator interface {
	Load(ctx context.Context, tenant string) (Document, error)
	Persist(ctx context.Context, tenant string, doc Document) (Document, error)
}

// Controller owns one domain document: it loads it through a Collaborator,
// applies validated local edits optimistically and persists them after a
// debounce window.
type Controller struct {
	name         string
	defaults     Document
	collab       Collaborator
	fields       FieldTable
	rules        []Rule
	engines      Engines
	debounce     time.Duration
	successReset time.Duration
	clock        clock.Clock
	logger       *zap.Logger
	activity     *activity.Emitter
	actor        string
	onChange     func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	tenant     string
	generation uint64
	doc        Document
	server     Document
	status     Status
	message    string
	rejection  error
	reset      bool
	unsent     []edit
	pending    clock.Timer
	settle     clock.Timer
	closed     bool
}

// NewController builds a controller for the named domain. The document
// starts as a copy of defaults with StatusIdle.
func NewController(name string, defaults Document, collab Collaborator, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		name:         name,
		defaults:     Clone(defaults),
		collab:       collab,
		debounce:     DefaultDebounce,
		successReset: DefaultSuccessReset,
		clock:        clock.Real(),
		logger:       zap.NewNop(),
		ctx:          ctx,
		cancel:       cancel,
		status:       StatusIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if len(c.rules) > 0 && c.engines == nil {
		c.engines = DefaultEngines()
	}
	c.logger = c.logger.With(zap.String("domain", name))
	c.doc = Clone(c.defaults)
	return c
}

// Name returns the domain name.
func (c *Controller) Name() string { return c.name }

// Defaults returns a copy of the default document.
func (c *Controller) Defaults() Document { return Clone(c.defaults) }

// Load fetches the tenant's document. Switching tenant cancels timers and
// resets the document to defaults before the request is issued. On failure
// the document falls back to defaults and the status becomes StatusError.
func (c *Controller) Load(ctx context.Context, tenant string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if tenant != c.tenant {
		c.switchTenantLocked(tenant)
	}
	c.stopTimersLocked()
	c.status = StatusLoading
	c.message = ""
	gen := c.generation
	c.mu.Unlock()
	c.notify()

	payload, err := c.collab.Load(ctx, tenant)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		c.logger.Debug("discarding stale load", zap.String("tenant", tenant))
		return ErrStale
	}
	if err != nil {
		c.doc = Clone(c.defaults)
		c.server = nil
		c.status = StatusError
		c.message = fmt.Sprintf("could not load %s", c.name)
		c.mu.Unlock()
		c.logger.Warn("load failed", zap.String("tenant", tenant), zap.Error(err))
		c.notify()
		return fmt.Errorf("settings: load %s: %w", c.name, err)
	}
	c.doc = Normalize(c.defaults, payload)
	c.server = Clone(payload)
	c.unsent = nil
	c.status = StatusIdle
	c.mu.Unlock()
	c.notify()
	return nil
}

// Set validates raw against the field table and, when accepted, writes it at
// path and schedules a persist. Rejected values leave the document unchanged;
// the error is logged and kept as LastRejection.
func (c *Controller) Set(path string, raw any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	previous, _ := layering.Lookup(c.doc, path)
	value, err := c.fields.Normalize(path, raw, previous)
	if err != nil {
		c.rejectLocked(path, err)
		c.mu.Unlock()
		return err
	}
	c.doc = layering.Set(c.doc, path, value)
	c.recordLocked(path, value)
	c.scheduleLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// Patch merges value into the subtree at path (the whole document when path
// is empty) and schedules a persist. Every table path inside the result is
// normalized; rejected leaves keep their previous value.
func (c *Controller) Patch(path string, value any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.coversLocked(path) {
		err := fmt.Errorf("%w: %q", ErrUnknownPath, path)
		c.rejectLocked(path, err)
		c.mu.Unlock()
		return err
	}
	next, errs := c.patchedLocked(path, value)
	for _, err := range errs {
		c.rejectLocked(path, err)
	}
	c.doc = next
	if path == "" {
		c.recordLocked("", next)
	} else {
		merged, _ := layering.Lookup(next, path)
		c.recordLocked(path, merged)
	}
	c.scheduleLocked()
	c.mu.Unlock()
	c.notify()
	return errors.Join(errs...)
}

// ResetToDefault replaces the document with defaults, forces StatusSaving
// and schedules a persist.
func (c *Controller) ResetToDefault() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.doc = Clone(c.defaults)
	c.recordLocked("", c.doc)
	c.message = ""
	c.rejection = nil
	c.status = StatusSaving
	c.reset = true
	c.scheduleLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// Save persists the current document now, cancelling any scheduled persist.
func (c *Controller) Save(ctx context.Context) error {
	return c.persist(ctx)
}

// Flush runs a scheduled persist immediately. It is a no-op when nothing is
// pending.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending != nil
	c.mu.Unlock()
	if !pending {
		return nil
	}
	return c.persist(ctx)
}

// Close cancels timers and in-flight requests. Late responses are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.stopTimersLocked()
	c.mu.Unlock()
	c.cancel()
}

// Document returns a copy of the current document.
func (c *Controller) Document() Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Clone(c.doc)
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Tenant returns the tenant of the last Load.
func (c *Controller) Tenant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenant
}

// LastRejection returns the most recent validation failure, if any.
func (c *Controller) LastRejection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejection
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Name:     c.name,
		Tenant:   c.tenant,
		Status:   c.status,
		Message:  c.message,
		Pending:  c.pending != nil,
		Document: Clone(c.doc),
	}
}

func (c *Controller) persist(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.tenant == "" {
		c.mu.Unlock()
		return ErrNoTenant
	}
	doc := Clone(c.doc)
	if err := c.checkRulesLocked(doc); err != nil {
		c.status = StatusError
		var violation *RuleViolation
		if errors.As(err, &violation) {
			c.message = violation.Message
		}
		c.rejection = err
		c.mu.Unlock()
		c.logger.Warn("persist blocked by rule", zap.Error(err))
		c.notify()
		return err
	}
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	tenant, gen, reset := c.tenant, c.generation, c.reset
	c.reset = false
	c.unsent = nil
	c.status = StatusSaving
	c.message = ""
	c.mu.Unlock()
	c.notify()

	echo, err := c.collab.Persist(ctx, tenant, doc)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		c.logger.Debug("discarding stale persist", zap.String("tenant", tenant))
		return ErrStale
	}
	if err != nil {
		c.status = StatusError
		c.message = fmt.Sprintf("could not save %s", c.name)
		c.mu.Unlock()
		c.logger.Warn("persist failed", zap.String("tenant", tenant), zap.Error(err))
		c.notify()
		return fmt.Errorf("settings: persist %s: %w", c.name, err)
	}
	c.doc = Normalize(c.defaults, echo)
	c.server = Clone(echo)
	for _, e := range c.unsent {
		c.doc = layering.Set(c.doc, e.path, layering.Clone(e.value))
	}
	c.succeedLocked()
	c.mu.Unlock()
	c.notify()

	build := activity.BuildSettingsUpdatedEvent
	if reset {
		build = activity.BuildSettingsResetEvent
	}
	c.emit(ctx, build(activity.SettingsEventInput{ActorID: c.actor, TenantID: tenant, Domain: c.name}))
	return nil
}

// scheduleLocked restarts the debounce timer.
func (c *Controller) scheduleLocked() {
	if c.pending != nil {
		c.pending.Stop()
	}
	var timer clock.Timer
	timer = c.clock.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		fire := c.pending == timer && !c.closed
		c.mu.Unlock()
		if !fire {
			return
		}
		if err := c.persist(c.ctx); err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, ErrClosed) {
			c.logger.Debug("scheduled persist failed", zap.Error(err))
		}
	})
	c.pending = timer
}

func (c *Controller) succeedLocked() {
	c.status = StatusSuccess
	c.message = ""
	gen := c.generation
	var timer clock.Timer
	timer = c.clock.AfterFunc(c.successReset, func() {
		c.mu.Lock()
		if c.settle != timer || !c.currentLocked(gen) || c.status != StatusSuccess {
			c.mu.Unlock()
			return
		}
		c.settle = nil
		c.status = StatusIdle
		c.mu.Unlock()
		c.notify()
	})
	c.settle = timer
}

func (c *Controller) switchTenantLocked(tenant string) {
	c.stopTimersLocked()
	c.generation++
	c.tenant = tenant
	c.doc = Clone(c.defaults)
	c.server = nil
	c.rejection = nil
	c.reset = false
	c.unsent = nil
}

// edit is a local change not yet handed to the collaborator. Edits are
// replayed over a persist echo so changes made during the request survive.
type edit struct {
	path  string
	value any
}

func (c *Controller) recordLocked(path string, value any) {
	c.unsent = append(c.unsent, edit{path: path, value: layering.Clone(value)})
}

func (c *Controller) stopTimersLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
}

func (c *Controller) currentLocked(gen uint64) bool {
	return !c.closed && c.generation == gen
}

func (c *Controller) rejectLocked(path string, err error) {
	c.rejection = err
	c.logger.Warn("value rejected", zap.String("path", path), zap.Error(err))
}

// coversLocked reports whether path is a table path or a prefix of one.
func (c *Controller) coversLocked(path string) bool {
	if c.fields == nil || path == "" {
		return true
	}
	if _, ok := c.fields[path]; ok {
		return true
	}
	prefix := path + "."
	for candidate := range c.fields {
		if strings.HasPrefix(candidate, prefix) {
			return true
		}
	}
	return false
}

func (c *Controller) patchedLocked(path string, value any) (Document, []error) {
	var next Document
	if path == "" {
		patch, ok := value.(map[string]any)
		if !ok {
			return c.doc, []error{fmt.Errorf("%w: root patch must be an object", ErrRejected)}
		}
		next = layering.Merge(c.doc, patch)
	} else {
		current, _ := layering.Lookup(c.doc, path)
		currentObj, currentIsObj := current.(map[string]any)
		patchObj, patchIsObj := value.(map[string]any)
		if currentIsObj && patchIsObj {
			next = layering.Set(c.doc, path, layering.Merge(currentObj, patchObj))
		} else {
			next = layering.Set(c.doc, path, layering.Clone(value))
		}
	}
	if c.fields == nil {
		return next, nil
	}
	return c.fields.CanonicalizeUnder(next, c.doc, path)
}

func (c *Controller) checkRulesLocked(doc Document) error {
	if len(c.rules) == 0 {
		return nil
	}
	ctx := RuleContext{Document: doc, Domain: c.name, Tenant: c.tenant, Now: c.clock.Now()}
	return c.engines.Check(ctx, c.rules, c.logger)
}

func (c *Controller) emit(ctx context.Context, event activity.Event) {
	if c.activity == nil {
		return
	}
	_ = c.activity.Emit(ctx, event)
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Snapshot())
}
