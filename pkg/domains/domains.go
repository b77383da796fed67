// Package domains declares the settings domains of the dashboard: their
// default documents, editable field tables and document rules.
package domains

import (
	"fmt"
	"sort"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/layering"
)

// Domain bundles everything a controller needs for one settings page.
type Domain struct {
	Name     string
	Title    string
	Defaults settings.Document
	Fields   settings.FieldTable
	Rules    []settings.Rule
	// Exclusive lists group paths whose entries follow the at-most-one
	// enabled rule.
	Exclusive []string
}

// NewController builds a controller for the domain. opts are applied after
// the domain's own fields and rules.
func (d Domain) NewController(collab settings.Collaborator, opts ...settings.Option) *settings.Controller {
	base := []settings.Option{settings.WithFields(d.Fields)}
	if len(d.Rules) > 0 {
		base = append(base, settings.WithRules(d.Rules...))
	}
	return settings.NewController(d.Name, d.Defaults, collab, append(base, opts...)...)
}

// Canonicalize completes payload with the domain defaults and normalizes
// every editable path, falling back to previous (or the defaults) for
// rejected values.
func (d Domain) Canonicalize(payload, previous settings.Document) (settings.Document, []error) {
	merged := settings.Normalize(d.Defaults, payload)
	fallback := settings.Normalize(d.Defaults, previous)
	return d.Fields.Canonicalize(merged, fallback)
}

// Check runs the domain rules against doc.
func (d Domain) Check(engines settings.Engines, doc settings.Document) error {
	if len(d.Rules) == 0 {
		return nil
	}
	return engines.Check(settings.RuleContext{Document: doc, Domain: d.Name}, d.Rules, nil)
}

// IsExclusive reports whether group is declared as an exclusive group.
func (d Domain) IsExclusive(group string) bool {
	for _, candidate := range d.Exclusive {
		if candidate == group {
			return true
		}
	}
	return false
}

// SetEnabled returns doc, completed with the defaults, with group.id.enabled
// set. Enabling an entry of an exclusive group disables its siblings in the
// same document. previous is the entry's old flag.
func (d Domain) SetEnabled(doc settings.Document, group, id string, enabled bool) (next settings.Document, previous any, err error) {
	next = layering.Merge(layering.CloneMap(d.Defaults), doc)
	raw, ok := layering.Lookup(next, group)
	entries, isGroup := raw.(map[string]any)
	if !ok || !isGroup {
		return nil, nil, fmt.Errorf("%w: %s", settings.ErrUnknownPath, group)
	}
	entry := layering.JoinPath(group, id)
	if _, ok := entries[id].(map[string]any); !ok {
		return nil, nil, fmt.Errorf("%w: %s", settings.ErrUnknownPath, entry)
	}
	previous, _ = layering.Lookup(next, layering.JoinPath(entry, "enabled"))
	next = layering.Set(next, layering.JoinPath(entry, "enabled"), enabled)
	if enabled && d.IsExclusive(group) {
		for sibling, value := range entries {
			if _, isEntry := value.(map[string]any); isEntry && sibling != id {
				next = layering.Set(next, layering.JoinPath(layering.JoinPath(group, sibling), "enabled"), false)
			}
		}
	}
	return next, previous, nil
}

// All returns fresh copies of every domain sorted by name.
func All() []Domain {
	all := []Domain{
		Payments(),
		Cloud(),
		Giveaways(),
		Appearance(),
		StorePreferences(),
		StoreCustomization(),
		Saldo(),
		Cashback(),
	}
	all = append(all, Protection()...)
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Names lists every domain name in sorted order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	return names
}

// Lookup returns a fresh copy of the named domain.
func Lookup(name string) (Domain, bool) {
	for _, d := range All() {
		if d.Name == name {
			return d, true
		}
	}
	return Domain{}, false
}
