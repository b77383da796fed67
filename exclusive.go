package settings

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/inkcloud/go-settings/layering"
	"github.com/inkcloud/go-settings/pkg/activity"
)

// ToggleClient flips a single entry's enabled flag on the server.
type ToggleClient interface {
	SetEnabled(ctx context.Context, tenant, group, id string, enabled bool) error
}

// ToggleExclusive flips group.id.enabled. Enabling an entry disables every
// sibling so at most one entry in the group stays enabled. The change is
// applied locally first, then sent entry by entry: the target, then each
// sibling that was enabled.
//
// If the target call fails the whole group is restored to its previous
// values. If a sibling call fails the status becomes StatusError and the
// document is reloaded from the collaborator.
func (c *Controller) ToggleExclusive(ctx context.Context, group, id string, client ToggleClient) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	entries, err := c.groupLocked(group, id)
	if err != nil {
		c.rejectLocked(layering.JoinPath(group, id), err)
		c.mu.Unlock()
		return err
	}
	previous := layering.Clone(entries)
	enable := !entryEnabled(entries[id])
	next, siblings := exclusiveGroup(entries, id, enable, nil)
	c.doc = layering.Set(c.doc, group, next)
	tenant, gen := c.tenant, c.generation
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.status = StatusSaving
	c.message = ""
	c.mu.Unlock()
	c.notify()

	if err := client.SetEnabled(ctx, tenant, group, id, enable); err != nil {
		c.mu.Lock()
		if c.currentLocked(gen) {
			c.doc = layering.Set(c.doc, group, previous)
			c.status = StatusError
			c.message = fmt.Sprintf("could not update %s", id)
		}
		c.mu.Unlock()
		c.logger.Warn("toggle failed", zap.String("group", group), zap.String("id", id), zap.Error(err))
		c.notify()
		return fmt.Errorf("settings: toggle %s.%s: %w", group, id, err)
	}

	for _, sibling := range siblings {
		if err := client.SetEnabled(ctx, tenant, group, sibling, false); err != nil {
			c.logger.Warn("disabling sibling failed",
				zap.String("group", group), zap.String("id", sibling), zap.Error(err))
			c.reloadAfterFailure(ctx, tenant, gen, fmt.Sprintf("could not update %s", sibling))
			return fmt.Errorf("settings: disable %s.%s: %w", group, sibling, err)
		}
	}

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return ErrStale
	}
	c.succeedLocked()
	c.mu.Unlock()
	c.notify()
	c.emit(ctx, activity.BuildSettingsToggledEvent(activity.SettingsEventInput{
		ActorID:  c.actor,
		TenantID: tenant,
		Domain:   c.name,
		Path:     layering.JoinPath(layering.JoinPath(group, id), "enabled"),
		OldValue: !enable,
		NewValue: enable,
	}))
	return nil
}

// ConfigureExclusive merges config into group.id, enables it, disables its
// siblings and saves immediately.
func (c *Controller) ConfigureExclusive(ctx context.Context, group, id string, config Document) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	entries, err := c.groupLocked(group, id)
	if err != nil {
		c.rejectLocked(layering.JoinPath(group, id), err)
		c.mu.Unlock()
		return err
	}
	next, _ := exclusiveGroup(entries, id, true, config)
	candidate := layering.Set(c.doc, group, next)
	if c.fields != nil {
		var errs []error
		candidate, errs = c.fields.CanonicalizeUnder(candidate, c.doc, group)
		for _, err := range errs {
			c.rejectLocked(group, err)
		}
	}
	c.doc = candidate
	c.mu.Unlock()
	c.notify()
	return c.persist(ctx)
}

func (c *Controller) groupLocked(group, id string) (map[string]any, error) {
	raw, ok := layering.Lookup(c.doc, group)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPath, group)
	}
	entries, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a group", ErrUnknownPath, group)
	}
	if _, ok := entries[id].(map[string]any); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPath, layering.JoinPath(group, id))
	}
	return entries, nil
}

// reloadAfterFailure marks the controller failed and replaces the document with the
// collaborator's copy without leaving StatusError.
func (c *Controller) reloadAfterFailure(ctx context.Context, tenant string, gen uint64, message string) {
	c.mu.Lock()
	if c.currentLocked(gen) {
		c.status = StatusError
		c.message = message
	}
	c.mu.Unlock()
	c.notify()

	payload, err := c.collab.Load(ctx, tenant)
	if err != nil {
		c.logger.Warn("reload after partial failure failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.doc = Normalize(c.defaults, payload)
	c.server = Clone(payload)
	c.mu.Unlock()
	c.notify()
}

// exclusiveGroup returns a copy of entries with id set to enable (and config
// merged in) plus, when enabling, the sorted ids of siblings that were on.
// Every sibling is switched off.
func exclusiveGroup(entries map[string]any, id string, enable bool, config Document) (map[string]any, []string) {
	next := make(map[string]any, len(entries))
	var siblings []string
	for key, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			next[key] = raw
			continue
		}
		if key == id {
			updated := layering.Merge(entry, config)
			updated["enabled"] = enable
			next[key] = updated
			continue
		}
		if enable && entryEnabled(entry) {
			siblings = append(siblings, key)
			updated := layering.CloneMap(entry)
			updated["enabled"] = false
			next[key] = updated
			continue
		}
		next[key] = entry
	}
	sort.Strings(siblings)
	return next, siblings
}

func entryEnabled(raw any) bool {
	entry, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	enabled, _ := entry["enabled"].(bool)
	return enabled
}
