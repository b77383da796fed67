package activity

import (
	"maps"
	"strings"
	"time"
)

// Event is a single dashboard change. Identifiers are plain strings; sinks
// that need UUIDs derive them.
type Event struct {
	Verb       string
	ActorID    string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Normalized returns a trimmed copy with its own metadata map. A zero
// OccurredAt is replaced with now.
func (e Event) Normalized(now time.Time) Event {
	for _, field := range []*string{&e.Verb, &e.ActorID, &e.TenantID, &e.ObjectType, &e.ObjectID, &e.Channel} {
		*field = strings.TrimSpace(*field)
	}
	e.Metadata = cloneMap(e.Metadata)
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	return e
}

// Complete reports whether the event names a verb and an object.
func (e Event) Complete() bool {
	return strings.TrimSpace(e.Verb) != "" &&
		strings.TrimSpace(e.ObjectType) != "" &&
		strings.TrimSpace(e.ObjectID) != ""
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}

// Verbs emitted by the dashboard.
const (
	VerbSettingsUpdated = "settings.updated"
	VerbSettingsReset   = "settings.reset"
	VerbSettingsToggled = "settings.toggled"
	VerbStockAdded      = "stock.added"
	VerbStockCleared    = "stock.cleared"
	VerbStockInfinite   = "stock.infinite"
	VerbStockPulled     = "stock.pulled"
	VerbStockRemoved    = "stock.removed"
)

// SettingsEventInput describes a change to a settings document.
type SettingsEventInput struct {
	ActorID    string
	TenantID   string
	Domain     string
	Path       string
	OldValue   any
	NewValue   any
	SnapshotID string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildSettingsUpdatedEvent describes a persisted settings document.
func BuildSettingsUpdatedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsUpdated, input)
}

// BuildSettingsResetEvent describes a document reset to its defaults.
func BuildSettingsResetEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsReset, input)
}

// BuildSettingsToggledEvent describes an exclusive enable toggle.
func BuildSettingsToggledEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsToggled, input)
}

func buildSettingsEvent(verb string, input SettingsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if input.Path != "" {
		set("path", input.Path)
	}
	if input.SnapshotID != "" {
		set("snapshot_id", input.SnapshotID)
	}
	if input.OldValue != nil {
		set("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		set("new_value", input.NewValue)
	}

	objectID := strings.TrimSpace(input.Domain)
	if objectID == "" {
		objectID = "settings"
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: "settings",
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// StockEventInput describes a stock ledger mutation.
type StockEventInput struct {
	ActorID    string
	ProductID  string
	FieldID    string
	Count      int
	Value      string
	// Index is the removed position, recorded for VerbStockRemoved.
	Index      int
	OccurredAt time.Time
}

// BuildStockEvent describes a ledger mutation identified by verb.
func BuildStockEvent(verb string, input StockEventInput) Event {
	metadata := map[string]any{
		"product_id": input.ProductID,
		"field_id":   input.FieldID,
	}
	if input.Count > 0 {
		metadata["count"] = input.Count
	}
	if input.Value != "" {
		metadata["value"] = input.Value
	}
	if verb == VerbStockRemoved {
		metadata["index"] = input.Index
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		ObjectType: "stock",
		ObjectID:   strings.TrimSpace(input.ProductID) + ":" + strings.TrimSpace(input.FieldID),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
