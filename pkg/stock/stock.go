// Package stock keeps the deliverable content of product fields: an ordered
// list of opaque items delivered first-in first-out, or an infinite flag with
// one value delivered for every sale.
package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey is returned when a product or field id is blank.
	ErrInvalidKey = errors.New("stock: product and field ids are required")
	// ErrIndexOutOfRange is returned by RemoveAt for a missing position.
	ErrIndexOutOfRange = errors.New("stock: index out of range")
	// ErrInfinite is returned by RemoveAt on an infinite entry.
	ErrInfinite = errors.New("stock: entry is infinite")
	// ErrQuantityTooLarge is returned by Pull above MaxPullQuantity.
	ErrQuantityTooLarge = errors.New("stock: quantity too large")
)

// MaxPullQuantity bounds a single Pull. Infinite entries materialize one copy
// of their value per unit pulled.
const MaxPullQuantity = 1000

// CheckQuantity rejects pull quantities above MaxPullQuantity.
func CheckQuantity(quantity int) error {
	if quantity > MaxPullQuantity {
		return fmt.Errorf("%w: %d exceeds %d", ErrQuantityTooLarge, quantity, MaxPullQuantity)
	}
	return nil
}

// Key identifies one product field.
type Key struct {
	Product string
	Field   string
}

func (k Key) String() string { return k.Product + ":" + k.Field }

func (k Key) validate() error {
	if strings.TrimSpace(k.Product) == "" || strings.TrimSpace(k.Field) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// Entry is one page of a stock entry. Total counts every item regardless of
// the page requested.
type Entry struct {
	Items         []string `json:"items"`
	Total         int      `json:"total"`
	IsInfinite    bool     `json:"is_infinite"`
	InfiniteValue string   `json:"infinite_value"`
}

// Ledger stores stock entries. Entries are created empty and finite on first
// access.
type Ledger interface {
	// Fetch returns items[offset:offset+limit]. A limit <= 0 returns every
	// item from offset.
	Fetch(ctx context.Context, product, field string, limit, offset int) (Entry, error)
	// Add appends non-blank items and returns how many were stored. It does
	// not change the infinite flag.
	Add(ctx context.Context, product, field string, items []string) (int, error)
	// SetInfinite marks the entry infinite and discards its items.
	SetInfinite(ctx context.Context, product, field, value string) error
	// Clear resets the entry to finite and empty.
	Clear(ctx context.Context, product, field string) error
	// Pull removes and returns up to quantity items from the front. Infinite
	// entries return quantity copies of their value.
	Pull(ctx context.Context, product, field string, quantity int) ([]string, error)
}

// CleanItems drops blank items. Surrounding whitespace is trimmed.
func CleanItems(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return cleaned
}

// Page slices items the way Fetch does.
func Page(items []string, limit, offset int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []string{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]string{}, items[offset:end]...)
}

func repeat(value string, quantity int) []string {
	out := make([]string, quantity)
	for i := range out {
		out[i] = value
	}
	return out
}
