package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/internal/sqldb"
	"github.com/inkcloud/go-settings/pkg/activity"
	"github.com/inkcloud/go-settings/pkg/activity/usersink"
	"github.com/inkcloud/go-settings/pkg/api"
	"github.com/inkcloud/go-settings/pkg/domains"
	"github.com/inkcloud/go-settings/pkg/state"
	"github.com/inkcloud/go-settings/pkg/stock"
)

// collaborator is what the settings commands need from either backend.
type collaborator interface {
	settings.Collaborator
	settings.ToggleClient
}

// backend resolves collaborators and the stock ledger from configuration.
type backend struct {
	store   state.Store[settings.Document]
	ledger  stock.Ledger
	remote  *api.Client
	engines settings.Engines
	logger  *zap.Logger
	db      *sql.DB
}

func (a *app) openBackend(ctx context.Context) (*backend, error) {
	b := &backend{engines: settings.DefaultEngines(), logger: a.logger}

	if a.cfg.API.BaseURL != "" {
		client, err := api.NewClient(a.cfg.API.BaseURL,
			api.WithTimeout(a.cfg.API.Timeout),
			api.WithActor(a.actor))
		if err != nil {
			return nil, err
		}
		b.remote = client
		b.ledger = client
		return b, nil
	}

	switch a.cfg.Storage.Driver {
	case "sqlite":
		db, err := sqldb.Open(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		store, err := state.NewSQLStore[settings.Document](ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		ledger, err := stock.NewSQLLedger(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		b.db, b.store, b.ledger = db, store, ledger
	default:
		b.store = state.NewMemoryStore[settings.Document]()
		b.ledger = stock.NewMemoryLedger()
	}
	return b, nil
}

func (b *backend) collaborator(d domains.Domain) collaborator {
	if b.remote != nil {
		return b.remote.Domain(d.Name)
	}
	return state.NewLocalCollaborator(b.store, d,
		state.WithLocalLogger(b.logger),
		state.WithLocalEngines(b.engines))
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// emitter forwards activity to the go-users sink when activity is enabled.
// Remote backends record activity on the server, so it returns nil for them.
func (b *backend) emitter(a *app) *activity.Emitter {
	if b.remote != nil {
		return nil
	}
	return a.emitter()
}

func (a *app) emitter() *activity.Emitter {
	hooks := activity.Hooks{usersink.Hook{Sink: logSink{logger: a.logger}}}
	return activity.NewEmitter(hooks, activity.Config{
		Enabled: a.cfg.Activity.Enabled,
		Channel: a.cfg.Activity.Channel,
	}, activity.WithLogger(a.logger))
}

func lookupDomain(name string) (domains.Domain, error) {
	d, ok := domains.Lookup(name)
	if !ok {
		return domains.Domain{}, fmt.Errorf("unknown domain %q (see `inkcloud domains`)", name)
	}
	return d, nil
}
