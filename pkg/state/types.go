package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/layering"
)

var (
	// ErrETagMismatch is returned when a save names an ETag that no longer
	// matches the stored record.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrInvalidRef is returned for refs with a blank or malformed tenant or
	// domain.
	ErrInvalidRef = errors.New("state: invalid ref")
)

// Ref identifies one persisted document.
type Ref struct {
	Tenant string
	Domain string
}

// Identifier returns the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	if err := r.validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("tenant/%s/%s", r.Tenant, r.Domain), nil
}

func (r Ref) validate() error {
	if err := validatePart("tenant", r.Tenant); err != nil {
		return err
	}
	return validatePart("domain", r.Domain)
}

func validatePart(label, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidRef, label)
	}
	if strings.Contains(value, "/") {
		return fmt.Errorf("%w: %s %q contains '/'", ErrInvalidRef, label, value)
	}
	return nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot per Ref.
//
// Save treats meta.ETag as the expected current ETag: when both it and the
// stored ETag are set and differ, Save fails with ErrETagMismatch. Every
// successful save stamps a fresh SnapshotID, ETag and UpdatedAt and returns
// them.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Lister reports which domains have a stored document for a tenant.
type Lister interface {
	List(ctx context.Context, tenant string) ([]string, error)
}

// Mutator edits a document in place.
type Mutator func(*settings.Document) error

// Resolver layers stored documents over defaults.
type Resolver struct {
	Store Store[settings.Document]
	// Validate, when set, runs on the mutated document before it is saved.
	Validate func(Ref, settings.Document) error
}

// Resolve returns the stored document for ref completed with defaults. A
// missing record yields a copy of defaults and a zero Meta.
func (r Resolver) Resolve(ctx context.Context, ref Ref, defaults settings.Document) (settings.Document, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	stored, meta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for tenant %q: %w", ref.Domain, ref.Tenant, err)
	}
	if !ok {
		return layering.CloneMap(defaults), Meta{}, nil
	}
	return layering.Merge(layering.CloneMap(defaults), stored), meta, nil
}

// Mutate loads the stored document, applies fn, validates and saves. A
// non-empty meta.ETag must match the stored ETag.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (settings.Document, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}
	if err := ref.validate(); err != nil {
		return nil, Meta{}, err
	}

	doc, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for tenant %q: %w", ref.Domain, ref.Tenant, err)
	}
	if !ok {
		doc = settings.Document{}
		loadedMeta = Meta{}
	}
	if conflicts(meta.ETag, loadedMeta.ETag) {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&doc); err != nil {
		return nil, loadedMeta, err
	}
	if doc == nil {
		doc = settings.Document{}
	}
	if r.Validate != nil {
		if err := r.Validate(ref, doc); err != nil {
			return nil, loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	saved, err := r.Store.Save(ctx, ref, doc, saveMeta)
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for tenant %q: %w", ref.Domain, ref.Tenant, err)
	}
	return doc, saved, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

// conflicts reports whether an expected ETag no longer matches the current one.
// Blank values never conflict.
func conflicts(expected, current string) bool {
	return expected != "" && current != "" && expected != current
}

// stamp returns the metadata recorded for a successful save.
func stamp(meta Meta, now time.Time) Meta {
	out := cloneMeta(meta)
	out.SnapshotID = uuid.NewString()
	out.ETag = uuid.NewString()
	out.UpdatedAt = now.UTC()
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}

// cloneSnapshot deep-copies JSON-shaped snapshots so callers never share
// maps with the store.
func cloneSnapshot[T any](snapshot T) T {
	if doc, ok := any(snapshot).(map[string]any); ok {
		return any(layering.CloneMap(doc)).(T)
	}
	return snapshot
}
