package state

import (
	"context"

	"go.uber.org/zap"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/layering"
	"github.com/inkcloud/go-settings/pkg/domains"
)

// LocalOption customizes a LocalCollaborator.
type LocalOption func(*LocalCollaborator)

// WithLocalLogger sets the logger used for rejected values.
func WithLocalLogger(logger *zap.Logger) LocalOption {
	return func(c *LocalCollaborator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLocalEngines checks the domain rules before every save.
func WithLocalEngines(engines settings.Engines) LocalOption {
	return func(c *LocalCollaborator) {
		c.engines = engines
	}
}

// LocalCollaborator serves one domain straight from a Store. It satisfies
// settings.Collaborator and settings.ToggleClient.
type LocalCollaborator struct {
	domain   domains.Domain
	resolver Resolver
	engines  settings.Engines
	logger   *zap.Logger
}

// NewLocalCollaborator binds domain to store.
func NewLocalCollaborator(store Store[settings.Document], domain domains.Domain, opts ...LocalOption) *LocalCollaborator {
	c := &LocalCollaborator{
		domain: domain,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With(zap.String("domain", domain.Name))
	c.resolver = Resolver{Store: store, Validate: c.validate}
	return c
}

// Load returns the tenant's document completed with the domain defaults.
func (c *LocalCollaborator) Load(ctx context.Context, tenant string) (settings.Document, error) {
	doc, _, err := c.resolver.Resolve(ctx, c.ref(tenant), c.domain.Defaults)
	if err != nil {
		return nil, err
	}
	canonical, _ := c.domain.Canonicalize(doc, nil)
	return canonical, nil
}

// Persist canonicalizes doc against the stored document and saves it. The
// canonical document is returned.
func (c *LocalCollaborator) Persist(ctx context.Context, tenant string, doc settings.Document) (settings.Document, error) {
	saved, _, err := c.resolver.Mutate(ctx, c.ref(tenant), Meta{}, func(current *settings.Document) error {
		previous := layering.Merge(layering.CloneMap(c.domain.Defaults), *current)
		canonical, rejected := c.domain.Canonicalize(doc, previous)
		c.logRejected(tenant, rejected)
		*current = canonical
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SetEnabled writes group.id.enabled for tenant. Enabling an entry of an
// exclusive group disables its siblings in the same save.
func (c *LocalCollaborator) SetEnabled(ctx context.Context, tenant, group, id string, enabled bool) error {
	_, _, err := c.resolver.Mutate(ctx, c.ref(tenant), Meta{}, func(current *settings.Document) error {
		next, _, err := c.domain.SetEnabled(*current, group, id, enabled)
		if err != nil {
			return err
		}
		*current = next
		return nil
	})
	return err
}

func (c *LocalCollaborator) ref(tenant string) Ref {
	return Ref{Tenant: tenant, Domain: c.domain.Name}
}

func (c *LocalCollaborator) validate(_ Ref, doc settings.Document) error {
	if c.engines == nil {
		return nil
	}
	return c.domain.Check(c.engines, doc)
}

func (c *LocalCollaborator) logRejected(tenant string, rejected []error) {
	for _, err := range rejected {
		c.logger.Warn("value rejected", zap.String("tenant", tenant), zap.Error(err))
	}
}
