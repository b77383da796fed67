package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkcloud/go-settings/layering"
	"github.com/inkcloud/go-settings/pkg/domains"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost:8080")
	assert.Error(t, err)
	_, err = NewClient("http://localhost:8080/")
	assert.NoError(t, err)
}

func TestClientErrorFromPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Domain("payments").Load(context.Background(), "guild-1")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "gateway down", apiErr.Message)
	assert.Equal(t, "api: 502 Bad Gateway: gateway down", apiErr.Error())
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	client, err := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Summary(context.Background(), "guild-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestControllerOverClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	domain := domains.Payments()
	collab := f.client.Domain(domain.Name)
	controller := domain.NewController(collab)
	t.Cleanup(controller.Close)

	require.NoError(t, controller.Load(ctx, "guild-1"))
	require.NoError(t, controller.Set("checkout.currency", "eur"))
	require.NoError(t, controller.Save(ctx))
	require.NoError(t, controller.ToggleExclusive(ctx, "gateways", "stripe", collab))
	require.NoError(t, controller.ToggleExclusive(ctx, "gateways", "pix", collab))

	stored, err := collab.Load(ctx, "guild-1")
	require.NoError(t, err)
	currency, _ := layering.Lookup(stored, "checkout.currency")
	stripe, _ := layering.Lookup(stored, "gateways.stripe.enabled")
	pix, _ := layering.Lookup(stored, "gateways.pix.enabled")
	assert.Equal(t, "eur", currency)
	assert.Equal(t, false, stripe)
	assert.Equal(t, true, pix)
}
