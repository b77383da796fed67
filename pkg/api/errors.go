package api

import (
	"errors"
	"fmt"
	"net/http"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/internal/hydrate"
	"github.com/inkcloud/go-settings/pkg/state"
	"github.com/inkcloud/go-settings/pkg/stock"
)

var (
	// ErrUnknownDomain is returned for routes naming an undeclared domain.
	ErrUnknownDomain = errors.New("api: unknown domain")
	errBadQuery      = errors.New("api: invalid query")
)

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// statusFor maps an error to the response status.
func statusFor(err error) int {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status
	case errors.Is(err, ErrUnknownDomain):
		return http.StatusNotFound
	case errors.Is(err, state.ErrETagMismatch):
		return http.StatusPreconditionFailed
	case errors.Is(err, settings.ErrUnknownPath):
		return http.StatusNotFound
	case errors.Is(err, hydrate.ErrInvalidPayload),
		errors.Is(err, errBadQuery),
		errors.Is(err, settings.ErrRejected),
		errors.Is(err, state.ErrInvalidRef),
		errors.Is(err, stock.ErrInvalidKey),
		errors.Is(err, stock.ErrQuantityTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
