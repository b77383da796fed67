package stock

import (
	"context"
	"sync"
)

type memoryEntry struct {
	items         []string
	infinite      bool
	infiniteValue string
}

// MemoryLedger keeps entries in process memory.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[Key]*memoryEntry
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: map[Key]*memoryEntry{}}
}

func (l *MemoryLedger) entry(key Key) *memoryEntry {
	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{}
		l.entries[key] = e
	}
	return e
}

func (l *MemoryLedger) Fetch(_ context.Context, product, field string, limit, offset int) (Entry, error) {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return Entry{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	return Entry{
		Items:         Page(e.items, limit, offset),
		Total:         len(e.items),
		IsInfinite:    e.infinite,
		InfiniteValue: e.infiniteValue,
	}, nil
}

func (l *MemoryLedger) Add(_ context.Context, product, field string, items []string) (int, error) {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return 0, err
	}
	cleaned := CleanItems(items)
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	e.items = append(e.items, cleaned...)
	return len(cleaned), nil
}

func (l *MemoryLedger) SetInfinite(_ context.Context, product, field, value string) error {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	e.items = nil
	e.infinite = true
	e.infiniteValue = value
	return nil
}

func (l *MemoryLedger) Clear(_ context.Context, product, field string) error {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = &memoryEntry{}
	return nil
}

func (l *MemoryLedger) Pull(_ context.Context, product, field string, quantity int) ([]string, error) {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return nil, err
	}
	if err := CheckQuantity(quantity); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return []string{}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	if e.infinite {
		return repeat(e.infiniteValue, quantity), nil
	}
	if quantity > len(e.items) {
		quantity = len(e.items)
	}
	pulled := append([]string{}, e.items[:quantity]...)
	e.items = append([]string(nil), e.items[quantity:]...)
	return pulled, nil
}
