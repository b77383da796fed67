package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/inkcloud/go-settings/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBackend = errors.New("backend unavailable")

// memoryCollaborator stores one document per tenant and echoes persisted
// documents back.
type memoryCollaborator struct {
	mu         sync.Mutex
	docs       map[string]Document
	loadErr    error
	persistErr error
	loads      int
	persists   []Document
	gates      map[string]chan struct{}
	// inflight, when set, receives a gate for every Persist call. The call
	// returns once its gate is closed.
	inflight chan chan struct{}
}

func newMemoryCollaborator() *memoryCollaborator {
	return &memoryCollaborator{docs: map[string]Document{}, gates: map[string]chan struct{}{}}
}

func (m *memoryCollaborator) Load(ctx context.Context, tenant string) (Document, error) {
	m.mu.Lock()
	gate := m.gates[tenant]
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return Clone(m.docs[tenant]), nil
}

func (m *memoryCollaborator) Persist(ctx context.Context, tenant string, doc Document) (Document, error) {
	m.mu.Lock()
	inflight := m.inflight
	m.mu.Unlock()
	if inflight != nil {
		gate := make(chan struct{})
		inflight <- gate
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists = append(m.persists, Clone(doc))
	if m.persistErr != nil {
		return nil, m.persistErr
	}
	m.docs[tenant] = Clone(doc)
	return Clone(doc), nil
}

func (m *memoryCollaborator) persistCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.persists)
}

func (m *memoryCollaborator) block(tenant string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gates[tenant] = gate
	return gate
}

func (m *memoryCollaborator) holdPersists() <-chan chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight = make(chan chan struct{}, 4)
	return m.inflight
}

func (m *memoryCollaborator) releasePersists() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight = nil
}

func (m *memoryCollaborator) stored(tenant string) Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Clone(m.docs[tenant])
}

func (m *memoryCollaborator) setLoadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *memoryCollaborator) setPersistErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistErr = err
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newFakeClock() *clock.Fake {
	return clock.NewFake(epoch)
}

func appearanceDefaults() Document {
	return Document{
		"status": map[string]any{
			"type": "online",
			"text": "",
		},
		"embed": map[string]any{
			"color": "#5865F2",
		},
		"verification": map[string]any{
			"min_account_age_days": float64(7),
		},
		"staff_roles": []any{},
	}
}

func appearanceFields() FieldTable {
	return FieldTable{
		"status.type":                       Enum("online", "idle", "dnd", "invisible"),
		"status.text":                       Text(),
		"embed.color":                       HexColor(),
		"verification.min_account_age_days": Integer(0, 365),
		"staff_roles":                       IDList(),
	}
}
