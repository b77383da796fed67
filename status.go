package settings

import "errors"

// Status is the Config Store state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSaving  Status = "saving"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var (
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("settings: controller closed")
	// ErrStale reports a collaborator response that arrived after the
	// controller switched tenant or closed. The response was discarded.
	ErrStale = errors.New("settings: stale response discarded")
	// ErrNoTenant is returned when persisting before any Load.
	ErrNoTenant = errors.New("settings: no tenant selected")
)

// Snapshot is a point-in-time copy of a controller's observable state.
type Snapshot struct {
	Name     string   `json:"name"`
	Tenant   string   `json:"tenant"`
	Status   Status   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Pending  bool     `json:"pending"`
	Document Document `json:"document"`
}
