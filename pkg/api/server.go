package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/pkg/activity"
	"github.com/inkcloud/go-settings/pkg/domains"
	"github.com/inkcloud/go-settings/pkg/state"
	"github.com/inkcloud/go-settings/pkg/stock"
	"github.com/inkcloud/go-settings/schema/openapi"
)

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivity emits an event for every successful mutation.
func WithActivity(emitter *activity.Emitter) ServerOption {
	return func(s *Server) {
		s.activity = emitter
	}
}

// WithEngines checks domain rules before saving.
func WithEngines(engines settings.Engines) ServerOption {
	return func(s *Server) {
		s.engines = engines
	}
}

// WithDomains replaces the served domains.
func WithDomains(list ...domains.Domain) ServerOption {
	return func(s *Server) {
		s.domains = map[string]domains.Domain{}
		for _, d := range list {
			s.domains[d.Name] = d
		}
	}
}

// Server exposes settings documents and stock entries.
type Server struct {
	store    state.Store[settings.Document]
	ledger   stock.Ledger
	resolver state.Resolver
	domains  map[string]domains.Domain
	engines  settings.Engines
	activity *activity.Emitter
	logger   *zap.Logger
	mux      *http.ServeMux

	apiDocOnce sync.Once
	apiDoc     map[string]any
	apiDocErr  error
}

// NewServer serves every declared domain from store and stock from ledger.
func NewServer(store state.Store[settings.Document], ledger stock.Ledger, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		ledger: ledger,
		logger: zap.NewNop(),
	}
	WithDomains(domains.All()...)(s)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.resolver = state.Resolver{Store: store, Validate: s.validate}
	s.mux = http.NewServeMux()
	s.RegisterRoutes(s.mux)
	return s
}

// RegisterRoutes registers every route on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/domains", s.handleDomains)

	mux.HandleFunc("GET /v1/tenants/{tenant}/settings/{domain}", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/tenants/{tenant}/settings/{domain}", s.handlePutSettings)
	mux.HandleFunc("PATCH /v1/tenants/{tenant}/settings/{domain}", s.handlePatchSettings)
	mux.HandleFunc("PUT /v1/tenants/{tenant}/settings/{domain}/{group}/{id}/enabled", s.handleSetEnabled)
	mux.HandleFunc("GET /v1/tenants/{tenant}/summary", s.handleSummary)

	mux.HandleFunc("GET /v1/stock", s.handleFetchStock)
	mux.HandleFunc("POST /v1/stock/add", s.handleAddStock)
	mux.HandleFunc("POST /v1/stock/infinite", s.handleInfiniteStock)
	mux.HandleFunc("POST /v1/stock/clear", s.handleClearStock)
	mux.HandleFunc("POST /v1/stock/pull", s.handlePullStock)

	mux.HandleFunc("GET /v1/openapi.json", s.handleOpenAPI)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

// handleOpenAPI serves the API description for the configured domains. It is
// generated on first use.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	s.apiDocOnce.Do(func() {
		list := make([]domains.Domain, 0, len(s.domains))
		for _, d := range s.domains {
			list = append(list, d)
		}
		s.apiDoc, s.apiDocErr = openapi.NewGenerator().Generate(list)
	})
	if s.apiDocErr != nil {
		s.writeError(w, r, s.apiDocErr)
		return
	}
	s.writeJSON(w, http.StatusOK, s.apiDoc)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps err onto a status. Internal errors are logged and their
// text is not sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = "an internal error occurred"
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) lookupDomain(name string) (domains.Domain, error) {
	d, ok := s.domains[name]
	if !ok {
		return domains.Domain{}, fmt.Errorf("%w: %q", ErrUnknownDomain, name)
	}
	return d, nil
}

func (s *Server) validate(ref state.Ref, doc settings.Document) error {
	if s.engines == nil {
		return nil
	}
	d, err := s.lookupDomain(ref.Domain)
	if err != nil {
		return err
	}
	return d.Check(s.engines, doc)
}

func (s *Server) emit(ctx context.Context, event activity.Event) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Emit(ctx, event)
}

func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderActor))
}
