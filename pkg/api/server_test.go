package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/layering"
	"github.com/inkcloud/go-settings/pkg/activity"
	"github.com/inkcloud/go-settings/pkg/domains"
	"github.com/inkcloud/go-settings/pkg/state"
	"github.com/inkcloud/go-settings/pkg/stock"
)

type fixture struct {
	server  *httptest.Server
	client  *Client
	store   *state.MemoryStore[settings.Document]
	ledger  *stock.MemoryLedger
	capture *activity.CaptureHook
}

func newFixture(t *testing.T, opts ...ServerOption) fixture {
	t.Helper()
	store := state.NewMemoryStore[settings.Document]()
	ledger := stock.NewMemoryLedger()
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	srv := httptest.NewServer(NewServer(store, ledger, append([]ServerOption{WithActivity(emitter)}, opts...)...))
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, WithActor("user-1"))
	require.NoError(t, err)
	return fixture{server: srv, client: client, store: store, ledger: ledger, capture: capture}
}

func (f fixture) raw(t *testing.T, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for key, value := range header {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOpenAPIEndpoint(t *testing.T) {
	f := newFixture(t, WithDomains(domains.Payments(), domains.Saldo()))
	resp := f.raw(t, http.MethodGet, "/v1/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v1/tenants/{tenant}/settings/payments")
	assert.Contains(t, paths, "/v1/tenants/{tenant}/settings/saldo")
	assert.NotContains(t, paths, "/v1/tenants/{tenant}/settings/cloud")
}

func TestDomainsEndpoint(t *testing.T) {
	f := newFixture(t)
	infos, err := f.client.Domains(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, len(domains.All()))

	var payments DomainInfo
	for _, info := range infos {
		if info.Name == "payments" {
			payments = info
		}
	}
	require.Equal(t, "Payments", payments.Title)
	var keyType settings.FieldDescriptor
	for _, field := range payments.Fields {
		if field.Path == "gateways.pix.key_type" {
			keyType = field
		}
	}
	assert.True(t, keyType.Editable)
	assert.Contains(t, keyType.Allowed, "cpf")
}

func TestGetSettingsReturnsDefaults(t *testing.T) {
	f := newFixture(t)
	doc, err := f.client.Domain("payments").Load(context.Background(), "guild-1")
	require.NoError(t, err)
	currency, _ := layering.Lookup(doc, "checkout.currency")
	assert.Equal(t, "brl", currency)
}

func TestPutSettingsEchoesCanonicalDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := layering.Set(domains.Payments().Defaults, "checkout.currency", "USD")
	payload = layering.Set(payload, "checkout.order_expiration_minutes", float64(1))

	echo, err := f.client.Domain("payments").Persist(ctx, "guild-1", payload)
	require.NoError(t, err)
	currency, _ := layering.Lookup(echo, "checkout.currency")
	minutes, _ := layering.Lookup(echo, "checkout.order_expiration_minutes")
	assert.Equal(t, "usd", currency)
	assert.Equal(t, float64(5), minutes)

	loaded, err := f.client.Domain("payments").Load(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, echo, loaded)
	assert.Equal(t, []string{activity.VerbSettingsUpdated}, f.capture.Verbs())
	assert.Equal(t, "user-1", f.capture.Events()[0].ActorID)
}

func TestPatchSettingsMergesAndHonorsIfMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	domain := f.client.Domain("appearance")

	_, err := domain.Patch(ctx, "guild-1", settings.Document{"embed": map[string]any{"footer": "inkCloud"}}, "")
	require.NoError(t, err)

	resp := f.raw(t, http.MethodGet, "/v1/tenants/guild-1/settings/appearance", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := strings.Trim(resp.Header.Get("ETag"), `"`)
	require.NotEmpty(t, etag)

	patched, err := domain.Patch(ctx, "guild-1", settings.Document{"embed": map[string]any{"color": "#ff0000"}}, etag)
	require.NoError(t, err)
	footer, _ := layering.Lookup(patched, "embed.footer")
	color, _ := layering.Lookup(patched, "embed.color")
	assert.Equal(t, "inkCloud", footer)
	assert.Equal(t, "#FF0000", color)

	_, err = domain.Patch(ctx, "guild-1", settings.Document{"nickname": "stale"}, etag)
	assert.True(t, IsStatus(err, http.StatusPreconditionFailed), "got %v", err)
}

func TestSettingsErrors(t *testing.T) {
	f := newFixture(t, WithEngines(settings.DefaultEngines()))

	resp := f.raw(t, http.MethodGet, "/v1/tenants/guild-1/settings/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.raw(t, http.MethodPut, "/v1/tenants/guild-1/settings/payments", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload := layering.Set(domains.Payments().Defaults, "gateways.stripe.enabled", true)
	payload = layering.Set(payload, "gateways.pix.enabled", true)
	_, err := f.client.Domain("payments").Persist(context.Background(), "guild-1", payload)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "only one payment gateway")
}

func TestSetEnabledDisablesExclusiveSiblings(t *testing.T) {
	f := newFixture(t, WithEngines(settings.DefaultEngines()))
	ctx := context.Background()
	domain := f.client.Domain("payments")

	require.NoError(t, domain.SetEnabled(ctx, "guild-1", "gateways", "stripe", true))
	require.NoError(t, domain.SetEnabled(ctx, "guild-1", "gateways", "pix", true))

	doc, err := domain.Load(ctx, "guild-1")
	require.NoError(t, err)
	stripe, _ := layering.Lookup(doc, "gateways.stripe.enabled")
	pix, _ := layering.Lookup(doc, "gateways.pix.enabled")
	assert.Equal(t, false, stripe)
	assert.Equal(t, true, pix)

	err = domain.SetEnabled(ctx, "guild-1", "gateways", "paypal", true)
	assert.True(t, IsStatus(err, http.StatusNotFound), "got %v", err)

	resp := f.raw(t, http.MethodPut, "/v1/tenants/guild-1/settings/payments/gateways/pix/enabled", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{activity.VerbSettingsToggled, activity.VerbSettingsToggled}, f.capture.Verbs())
}

func TestSummaryListsConfiguredDomains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.client.Domain("cloud").Persist(ctx, "guild-1", domains.Cloud().Defaults)
	require.NoError(t, err)
	_, err = f.client.Domain("saldo").Persist(ctx, "guild-1", domains.Saldo().Defaults)
	require.NoError(t, err)
	_, err = f.client.Domain("cloud").Persist(ctx, "guild-2", domains.Cloud().Defaults)
	require.NoError(t, err)

	summary, err := f.client.Summary(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "guild-1", summary.Tenant)
	assert.Equal(t, []string{"cloud", "saldo"}, summary.Domains)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestStockEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.client.Add(ctx, "prod-1", "monthly", []string{"A", "", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	page, err := f.client.Fetch(ctx, "prod-1", "monthly", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, page.Items)
	assert.Equal(t, 3, page.Total)

	pulled, err := f.client.Pull(ctx, "prod-1", "monthly", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, pulled)

	require.NoError(t, f.client.SetInfinite(ctx, "prod-1", "monthly", "X"))
	entry, err := f.client.Fetch(ctx, "prod-1", "monthly", 0, 0)
	require.NoError(t, err)
	assert.True(t, entry.IsInfinite)
	assert.Equal(t, "X", entry.InfiniteValue)
	assert.Empty(t, entry.Items)

	require.NoError(t, f.client.Clear(ctx, "prod-1", "monthly"))
	entry, err = f.client.Fetch(ctx, "prod-1", "monthly", 0, 0)
	require.NoError(t, err)
	assert.False(t, entry.IsInfinite)

	assert.Equal(t, []string{
		activity.VerbStockAdded,
		activity.VerbStockPulled,
		activity.VerbStockInfinite,
		activity.VerbStockCleared,
	}, f.capture.Verbs())
}

func TestStockValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.raw(t, http.MethodPost, "/v1/stock/add", `{"field_id":"f","items":["a"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.raw(t, http.MethodPost, "/v1/stock/pull", `{"product_id":"p","field_id":"f","quantity":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.raw(t, http.MethodPost, "/v1/stock/pull", `{"product_id":"p","field_id":"f","quantity":1152921504606846976}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.raw(t, http.MethodPost, "/v1/stock/clear", `{"product_id":"p","field_id":"f","extra":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.raw(t, http.MethodGet, "/v1/stock?product_id=p&field_id=f&limit=many", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err := f.client.Fetch(context.Background(), "", "f", 0, 0)
	assert.True(t, IsStatus(err, http.StatusBadRequest), "got %v", err)

	_, err = f.client.Pull(context.Background(), "p", "f", stock.MaxPullQuantity+1)
	assert.ErrorIs(t, err, stock.ErrQuantityTooLarge)
}

func TestStockControllerOverClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	controller := stock.NewController(f.client)
	product := &stock.Product{ID: "prod-1", Fields: []stock.Field{{ID: "monthly"}}}
	controller.Bind(product)

	_, err := controller.Add(ctx, "prod-1", "monthly", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.NoError(t, controller.RemoveAt(ctx, "prod-1", "monthly", 1))

	entry, err := f.ledger.Fetch(ctx, "prod-1", "monthly", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, entry.Items)
	assert.Equal(t, 2, product.Fields[0].StockTotal)
}
