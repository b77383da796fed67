package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/internal/hydrate"
	"github.com/inkcloud/go-settings/layering"
	"github.com/inkcloud/go-settings/pkg/activity"
	"github.com/inkcloud/go-settings/pkg/domains"
	"github.com/inkcloud/go-settings/pkg/state"
)

var (
	documentSchema = hydrate.Schema[settings.Document]{}
	enabledSchema  = hydrate.Schema[EnabledRequest]{Required: []string{"enabled"}, Strict: true}
)

func (s *Server) handleDomains(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.domains))
	for name := range s.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]DomainInfo, 0, len(names))
	for _, name := range names {
		d := s.domains[name]
		out = append(out, DomainInfo{
			Name:   d.Name,
			Title:  d.Title,
			Fields: settings.Describe(d.Defaults, d.Fields),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	d, err := s.lookupDomain(r.PathValue("domain"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, meta, err := s.resolver.Resolve(r.Context(), refFor(r, d), d.Defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	canonical, _ := d.Canonicalize(doc, nil)
	setETag(w, meta)
	s.writeJSON(w, http.StatusOK, canonical)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	s.writeSettings(w, r, "settings.put", func(_, body settings.Document) settings.Document {
		return body
	})
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	s.writeSettings(w, r, "settings.patch", func(previous, body settings.Document) settings.Document {
		return layering.Merge(previous, body)
	})
}

// writeSettings canonicalizes the payload built by combine against the
// stored document and saves it.
func (s *Server) writeSettings(w http.ResponseWriter, r *http.Request, endpoint string, combine func(previous, body settings.Document) settings.Document) {
	d, err := s.lookupDomain(r.PathValue("domain"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := documentSchema.Read(endpoint, http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ref := refFor(r, d)
	var before settings.Document
	saved, meta, err := s.resolver.Mutate(r.Context(), ref, state.Meta{ETag: ifMatch(r)}, func(current *settings.Document) error {
		previous := layering.Merge(layering.CloneMap(d.Defaults), *current)
		before = previous
		canonical, rejected := d.Canonicalize(combine(previous, body), previous)
		for _, rejection := range rejected {
			s.logger.Warn("value rejected",
				zap.String("tenant", ref.Tenant),
				zap.String("domain", ref.Domain),
				zap.Error(rejection),
			)
		}
		*current = canonical
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.emit(r.Context(), activity.BuildSettingsUpdatedEvent(activity.SettingsEventInput{
		ActorID:    actor(r),
		TenantID:   ref.Tenant,
		Domain:     ref.Domain,
		OldValue:   before,
		NewValue:   saved,
		SnapshotID: meta.SnapshotID,
	}))
	setETag(w, meta)
	s.writeJSON(w, http.StatusOK, saved)
}

// handleSetEnabled writes group.id.enabled. Enabling an entry of an
// exclusive group also disables its siblings in the same save.
func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	d, err := s.lookupDomain(r.PathValue("domain"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := enabledSchema.Read("settings.enabled", http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	group, id := r.PathValue("group"), r.PathValue("id")
	enabled := *req.Enabled
	entry := layering.JoinPath(group, id)

	ref := refFor(r, d)
	var previous any
	saved, meta, err := s.resolver.Mutate(r.Context(), ref, state.Meta{ETag: ifMatch(r)}, func(current *settings.Document) error {
		next, old, err := d.SetEnabled(*current, group, id, enabled)
		if err != nil {
			return err
		}
		previous = old
		*current = next
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.emit(r.Context(), activity.BuildSettingsToggledEvent(activity.SettingsEventInput{
		ActorID:    actor(r),
		TenantID:   ref.Tenant,
		Domain:     ref.Domain,
		Path:       layering.JoinPath(entry, "enabled"),
		OldValue:   previous,
		NewValue:   enabled,
		SnapshotID: meta.SnapshotID,
	}))
	setETag(w, meta)
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	tenant := strings.TrimSpace(r.PathValue("tenant"))
	summary := Summary{Tenant: tenant, Domains: []string{}, GeneratedAt: time.Now().UTC()}
	if lister, ok := s.store.(state.Lister); ok {
		stored, err := lister.List(r.Context(), tenant)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		for _, name := range stored {
			if _, known := s.domains[name]; known {
				summary.Domains = append(summary.Domains, name)
			}
		}
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func refFor(r *http.Request, d domains.Domain) state.Ref {
	return state.Ref{Tenant: r.PathValue("tenant"), Domain: d.Name}
}

func setETag(w http.ResponseWriter, meta state.Meta) {
	if meta.ETag != "" {
		w.Header().Set("ETag", `"`+meta.ETag+`"`)
	}
}

func ifMatch(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get("If-Match"))
	value = strings.TrimPrefix(value, "W/")
	return strings.Trim(value, `"`)
}
