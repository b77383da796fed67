package stock

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/inkcloud/go-settings/pkg/activity"
)

// FetchOptions selects a page. Force bypasses the cache.
type FetchOptions struct {
	Limit  int
	Offset int
	Force  bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivity emits stock events through emitter.
func WithActivity(emitter *activity.Emitter) Option {
	return func(c *Controller) {
		c.activity = emitter
	}
}

// Controller fronts a Ledger with a per-field cache and keeps bound products'
// stock projection in step with the ledger. Operations on one field run one
// at a time; Reset invalidates every operation still in flight.
type Controller struct {
	ledger   Ledger
	logger   *zap.Logger
	activity *activity.Emitter

	mu         sync.Mutex
	generation uint64
	cache      map[Key]Entry
	products   map[string]*Product
	locks      map[Key]*sync.Mutex
}

// NewController wraps ledger.
func NewController(ledger Ledger, opts ...Option) *Controller {
	c := &Controller{
		ledger:   ledger,
		logger:   zap.NewNop(),
		cache:    map[Key]Entry{},
		products: map[string]*Product{},
		locks:    map[Key]*sync.Mutex{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Bind registers product so its fields' stock attributes follow the ledger.
// Cached entries are projected immediately.
func (c *Controller) Bind(product *Product) {
	if product == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
	for i := range product.Fields {
		if entry, ok := c.cache[Key{product.ID, product.Fields[i].ID}]; ok {
			product.Fields[i].project(entry)
		}
	}
}

// Product returns a copy of a bound product.
func (c *Controller) Product(id string) (Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return Product{}, false
	}
	return p.clone(), true
}

// Reset forgets every cached entry and bound product. Results of operations
// started before Reset are not cached.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.cache = map[Key]Entry{}
	c.products = map[string]*Product{}
}

// Fetch returns a page of the entry. The whole entry is cached on first read
// and pages are served from the cache until Force is set.
func (c *Controller) Fetch(ctx context.Context, product, field string, opts FetchOptions) (Entry, error) {
	op := c.begin(Key{product, field})
	defer op.end()
	if !opts.Force {
		if entry, ok := op.cached(); ok {
			return pageOf(entry, opts), nil
		}
	}
	entry, err := op.load(ctx)
	if err != nil {
		return Entry{}, op.fail("fetch", err)
	}
	return pageOf(entry, opts), nil
}

// Add appends items in finite mode. An infinite entry is cleared first.
func (c *Controller) Add(ctx context.Context, product, field string, items []string) (int, error) {
	op := c.begin(Key{product, field})
	defer op.end()
	entry, err := op.current(ctx)
	if err != nil {
		return 0, op.fail("add", err)
	}
	if entry.IsInfinite {
		if err := c.ledger.Clear(ctx, product, field); err != nil {
			return 0, op.fail("add", err)
		}
		entry = emptyEntry()
		op.store(entry)
	}
	cleaned := CleanItems(items)
	added, err := c.ledger.Add(ctx, product, field, cleaned)
	if err != nil {
		op.drop()
		return 0, op.fail("add", err)
	}
	entry.Items = append(append([]string{}, entry.Items...), cleaned[:min(added, len(cleaned))]...)
	entry.Total = len(entry.Items)
	op.store(entry)
	op.emit(ctx, activity.StockEventInput{Count: added}, activity.VerbStockAdded)
	return added, nil
}

// SetInfinite switches the entry to infinite mode with value.
func (c *Controller) SetInfinite(ctx context.Context, product, field, value string) error {
	op := c.begin(Key{product, field})
	defer op.end()
	if err := c.ledger.SetInfinite(ctx, product, field, value); err != nil {
		op.drop()
		return op.fail("infinite", err)
	}
	op.store(Entry{Items: []string{}, IsInfinite: true, InfiniteValue: value})
	op.emit(ctx, activity.StockEventInput{Value: value}, activity.VerbStockInfinite)
	return nil
}

// Clear resets the entry to finite and empty.
func (c *Controller) Clear(ctx context.Context, product, field string) error {
	op := c.begin(Key{product, field})
	defer op.end()
	if err := c.ledger.Clear(ctx, product, field); err != nil {
		op.drop()
		return op.fail("clear", err)
	}
	op.store(emptyEntry())
	op.emit(ctx, activity.StockEventInput{}, activity.VerbStockCleared)
	return nil
}

// Pull removes up to quantity items from the front of the entry. Fewer items
// than requested is not an error; more than MaxPullQuantity is.
func (c *Controller) Pull(ctx context.Context, product, field string, quantity int) ([]string, error) {
	op := c.begin(Key{product, field})
	defer op.end()
	if err := CheckQuantity(quantity); err != nil {
		return nil, op.fail("pull", err)
	}
	pulled, err := c.ledger.Pull(ctx, product, field, quantity)
	if err != nil {
		op.drop()
		return nil, op.fail("pull", err)
	}
	entry, cached := op.cached()
	switch {
	case !cached:
		if _, err := op.load(ctx); err != nil {
			c.logger.Warn("refresh after pull failed", zap.Stringer("key", op.key), zap.Error(err))
		}
	case !entry.IsInfinite:
		n := min(len(pulled), len(entry.Items))
		entry.Items = append([]string{}, entry.Items[n:]...)
		entry.Total = len(entry.Items)
		op.store(entry)
	}
	if len(pulled) > 0 {
		op.emit(ctx, activity.StockEventInput{Count: len(pulled)}, activity.VerbStockPulled)
	}
	return pulled, nil
}

// RemoveAt deletes the item at index. The ledger has no positional delete,
// so the entry is cleared and the remaining items re-added. Any failure drops
// the cached entry and reloads it from the ledger.
func (c *Controller) RemoveAt(ctx context.Context, product, field string, index int) error {
	op := c.begin(Key{product, field})
	defer op.end()
	entry, err := op.current(ctx)
	if err != nil {
		return op.fail("remove", err)
	}
	if entry.IsInfinite {
		return op.fail("remove", ErrInfinite)
	}
	if index < 0 || index >= len(entry.Items) {
		return op.fail("remove", fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(entry.Items)))
	}
	remaining := make([]string, 0, len(entry.Items)-1)
	remaining = append(remaining, entry.Items[:index]...)
	remaining = append(remaining, entry.Items[index+1:]...)

	err = c.ledger.Clear(ctx, product, field)
	if err == nil && len(remaining) > 0 {
		_, err = c.ledger.Add(ctx, product, field, remaining)
	}
	if err != nil {
		op.drop()
		if _, loadErr := op.load(ctx); loadErr != nil {
			c.logger.Warn("reconcile failed", zap.Stringer("key", op.key), zap.Error(loadErr))
		}
		return op.fail("remove", err)
	}
	op.store(Entry{Items: remaining, Total: len(remaining)})
	op.emit(ctx, activity.StockEventInput{Count: 1, Index: index}, activity.VerbStockRemoved)
	return nil
}

// operation is one controller call on a single key. It holds the key's lock
// until end and only touches the cache while the controller is still on the
// generation it started in.
type operation struct {
	c          *Controller
	key        Key
	generation uint64
	unlock     func()
}

func (c *Controller) begin(key Key) *operation {
	c.mu.Lock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	return &operation{c: c, key: key, generation: gen, unlock: lock.Unlock}
}

func (op *operation) end() { op.unlock() }

func (op *operation) cached() (Entry, bool) {
	op.c.mu.Lock()
	defer op.c.mu.Unlock()
	if op.c.generation != op.generation {
		return Entry{}, false
	}
	entry, ok := op.c.cache[op.key]
	return entry, ok
}

// current returns the full cached entry, loading it when missing.
func (op *operation) current(ctx context.Context) (Entry, error) {
	if entry, ok := op.cached(); ok {
		return entry, nil
	}
	return op.load(ctx)
}

func (op *operation) load(ctx context.Context) (Entry, error) {
	entry, err := op.c.ledger.Fetch(ctx, op.key.Product, op.key.Field, 0, 0)
	if err != nil {
		return Entry{}, err
	}
	if entry.Items == nil {
		entry.Items = []string{}
	}
	op.store(entry)
	return entry, nil
}

// store caches entry and projects it onto the bound product. It reports
// false when a Reset happened since the operation began.
func (op *operation) store(entry Entry) bool {
	c := op.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != op.generation {
		c.logger.Debug("discarding stock result from before reset", zap.Stringer("key", op.key))
		return false
	}
	c.cache[op.key] = entry
	if p, ok := c.products[op.key.Product]; ok {
		if f, ok := p.Field(op.key.Field); ok {
			f.project(entry)
		}
	}
	return true
}

func (op *operation) drop() {
	c := op.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == op.generation {
		delete(c.cache, op.key)
	}
}

func (op *operation) fail(name string, err error) error {
	op.c.logger.Warn("stock operation failed", zap.String("op", name), zap.Stringer("key", op.key), zap.Error(err))
	return &OpError{Op: name, Product: op.key.Product, Field: op.key.Field, Err: err}
}

func (op *operation) emit(ctx context.Context, input activity.StockEventInput, verb string) {
	if op.c.activity == nil {
		return
	}
	input.ProductID = op.key.Product
	input.FieldID = op.key.Field
	_ = op.c.activity.Emit(ctx, activity.BuildStockEvent(verb, input))
}

func emptyEntry() Entry {
	return Entry{Items: []string{}}
}

func pageOf(entry Entry, opts FetchOptions) Entry {
	entry.Items = Page(entry.Items, opts.Limit, opts.Offset)
	return entry
}
