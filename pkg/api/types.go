// Package api serves the settings and stock collaborator contract over
// HTTP and provides a client for it.
package api

import (
	"time"

	settings "github.com/inkcloud/go-settings"
)

// HeaderActor carries the acting user's id for activity events.
const HeaderActor = "X-Actor-ID"

// MaxRequestBodySize limits JSON request bodies.
const MaxRequestBodySize = 1 << 20

// DomainInfo describes one settings domain.
type DomainInfo struct {
	Name   string                     `json:"name"`
	Title  string                     `json:"title"`
	Fields []settings.FieldDescriptor `json:"fields"`
}

// Summary lists the domains a tenant has configured.
type Summary struct {
	Tenant      string    `json:"tenant"`
	Domains     []string  `json:"domains"`
	GeneratedAt time.Time `json:"generated_at"`
}

// StockRequest is the body of every POST /v1/stock/* call.
type StockRequest struct {
	ProductID string   `json:"product_id"`
	FieldID   string   `json:"field_id"`
	Items     []string `json:"items,omitempty"`
	Value     string   `json:"value,omitempty"`
	Quantity  int      `json:"quantity,omitempty"`
}

// AddResponse answers POST /v1/stock/add.
type AddResponse struct {
	Added int `json:"added"`
}

// PullResponse answers POST /v1/stock/pull.
type PullResponse struct {
	Items []string `json:"items"`
}

// EnabledRequest is the body of the per-entry enable call.
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type ackResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}
