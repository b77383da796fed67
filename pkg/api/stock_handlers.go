package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/inkcloud/go-settings/internal/hydrate"
	"github.com/inkcloud/go-settings/pkg/activity"
	"github.com/inkcloud/go-settings/pkg/stock"
)

func stockSchema(required ...string) hydrate.Schema[StockRequest] {
	return hydrate.Schema[StockRequest]{
		Required: append([]string{"product_id", "field_id"}, required...),
		Strict:   true,
	}
}

var (
	addSchema      = stockSchema("items")
	infiniteSchema = stockSchema("value")
	clearSchema    = stockSchema()
	pullSchema     = hydrate.Schema[StockRequest]{
		Required: []string{"product_id", "field_id", "quantity"},
		Strict:   true,
		Check: func(req *StockRequest) error {
			if req.Quantity <= 0 {
				return errors.New("quantity must be positive")
			}
			return stock.CheckQuantity(req.Quantity)
		},
	}
)

func (s *Server) handleFetchStock(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: limit: %v", errBadQuery, err))
		return
	}
	offset, err := intParam(query.Get("offset"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: offset: %v", errBadQuery, err))
		return
	}
	entry, err := s.ledger.Fetch(r.Context(), query.Get("product_id"), query.Get("field_id"), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAddStock(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeStock(w, r, addSchema, "stock.add")
	if !ok {
		return
	}
	added, err := s.ledger.Add(r.Context(), req.ProductID, req.FieldID, req.Items)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.emitStock(r, activity.VerbStockAdded, req, added)
	s.writeJSON(w, http.StatusOK, AddResponse{Added: added})
}

func (s *Server) handleInfiniteStock(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeStock(w, r, infiniteSchema, "stock.infinite")
	if !ok {
		return
	}
	if err := s.ledger.SetInfinite(r.Context(), req.ProductID, req.FieldID, req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.emitStock(r, activity.VerbStockInfinite, req, 0)
	s.writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (s *Server) handleClearStock(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeStock(w, r, clearSchema, "stock.clear")
	if !ok {
		return
	}
	if err := s.ledger.Clear(r.Context(), req.ProductID, req.FieldID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.emitStock(r, activity.VerbStockCleared, req, 0)
	s.writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (s *Server) handlePullStock(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeStock(w, r, pullSchema, "stock.pull")
	if !ok {
		return
	}
	items, err := s.ledger.Pull(r.Context(), req.ProductID, req.FieldID, req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []string{}
	}
	if len(items) > 0 {
		s.emitStock(r, activity.VerbStockPulled, req, len(items))
	}
	s.writeJSON(w, http.StatusOK, PullResponse{Items: items})
}

func (s *Server) decodeStock(w http.ResponseWriter, r *http.Request, schema hydrate.Schema[StockRequest], endpoint string) (StockRequest, bool) {
	req, err := schema.Read(endpoint, http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		s.writeError(w, r, err)
		return StockRequest{}, false
	}
	return req, true
}

func (s *Server) emitStock(r *http.Request, verb string, req StockRequest, count int) {
	s.emit(r.Context(), activity.BuildStockEvent(verb, activity.StockEventInput{
		ActorID:   actor(r),
		ProductID: req.ProductID,
		FieldID:   req.FieldID,
		Count:     count,
		Value:     req.Value,
	}))
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
