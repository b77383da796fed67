package openapi

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/pkg/domains"
)

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo(Info{Title: "Custom Service", Version: "2.0.0", Description: "custom schema"}),
		WithBasePath("api/v2/"),
		WithContentType("application/vnd.inkcloud+json"),
	)

	if got := custom.config.version; got != "3.1.0" {
		t.Fatalf("expected openapi version 3.1.0, got %q", got)
	}
	if got := custom.config.info.Title; got != "Custom Service" {
		t.Fatalf("expected info title Custom Service, got %q", got)
	}
	if got := custom.config.info.Description; got != "custom schema" {
		t.Fatalf("expected info description custom schema, got %q", got)
	}
	if got := custom.config.basePath; got != "/api/v2" {
		t.Fatalf("expected base path /api/v2, got %q", got)
	}
	if got := custom.config.contentType; got != "application/vnd.inkcloud+json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := NewGenerator(WithBasePath("/")).config.basePath; got != "" {
		t.Fatalf("expected root base path, got %q", got)
	}

	untouched := NewGenerator(WithOpenAPIVersion(""), WithInfo(Info{}), WithContentType(" "))
	if diff := cmp.Diff(defaultGeneratorConfig(), untouched.config, cmp.AllowUnexported(generatorConfig{})); diff != "" {
		t.Fatalf("empty options changed the defaults (-want +got):\n%s", diff)
	}
}

func TestDomainSchemaUsesFieldTable(t *testing.T) {
	schema := DomainSchema(domains.Payments())

	want := map[string]any{
		"type":         "integer",
		"minimum":      float64(5),
		"maximum":      float64(1440),
		"x-field-kind": "number_range",
		"default":      float64(30),
	}
	got := property(t, schema, "checkout", "order_expiration_minutes")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order_expiration_minutes schema mismatch (-want +got):\n%s", diff)
	}

	currency := property(t, schema, "checkout", "currency")
	if diff := cmp.Diff([]any{"brl", "usd", "eur"}, currency["enum"]); diff != "" {
		t.Fatalf("currency enum mismatch (-want +got):\n%s", diff)
	}
	if got := property(t, schema, "gateways", "stripe", "enabled")["type"]; got != "boolean" {
		t.Fatalf("expected boolean gateway flag, got %v", got)
	}
	if got := schema["title"]; got != "Payments" {
		t.Fatalf("expected title Payments, got %v", got)
	}
}

func TestDomainSchemaFieldKinds(t *testing.T) {
	d := domains.Domain{
		Name: "custom",
		Defaults: settings.Document{
			"color": "#5865F2",
			"roles": []any{},
			"note":  "",
			"free":  map[string]any{"count": 1, "tags": []string{"a"}},
		},
		Fields: settings.FieldTable{
			"color": settings.HexColor(),
			"roles": settings.IDList(),
			"note":  settings.RequiredText(),
		},
	}
	schema := DomainSchema(d)

	if got := property(t, schema, "color")["pattern"]; got != "^#[0-9A-Fa-f]{6}$" {
		t.Fatalf("unexpected color pattern %v", got)
	}
	if got := property(t, schema, "roles")["uniqueItems"]; got != true {
		t.Fatalf("expected unique id list, got %v", got)
	}
	if got := property(t, schema, "note")["minLength"]; got != 1 {
		t.Fatalf("expected required text minLength 1, got %v", got)
	}
	if got := property(t, schema, "free", "count")["type"]; got != "integer" {
		t.Fatalf("expected inferred integer, got %v", got)
	}
	if got := property(t, schema, "free", "tags")["type"]; got != "array" {
		t.Fatalf("expected inferred array, got %v", got)
	}
}

func TestGenerateCoversEveryDomain(t *testing.T) {
	doc, err := NewGenerator().Generate(domains.All())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if err := validateDocument(doc); err != nil {
		t.Fatalf("generated document failed validation: %v", err)
	}

	paths := doc["paths"].(map[string]any)
	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	for _, d := range domains.All() {
		if _, ok := paths["/v1/tenants/{tenant}/settings/"+d.Name]; !ok {
			t.Fatalf("missing settings path for %s", d.Name)
		}
		if _, ok := schemas[ComponentName(d.Name)]; !ok {
			t.Fatalf("missing component for %s", d.Name)
		}
	}
	if _, ok := paths["/v1/tenants/{tenant}/settings/payments/gateways/{id}/enabled"]; !ok {
		t.Fatalf("missing exclusive toggle path for payments gateways")
	}

	if _, err := json.Marshal(doc); err != nil {
		t.Fatalf("document is not JSON encodable: %v", err)
	}
}

func TestGenerateRejectsDuplicateComponents(t *testing.T) {
	_, err := NewGenerator().Generate([]domains.Domain{{Name: "store.preferences"}, {Name: "store_preferences"}})
	if err == nil || !strings.Contains(err.Error(), "declared twice") {
		t.Fatalf("expected duplicate component error, got %v", err)
	}
}

func TestValidateDocumentReportsUnresolvedRefs(t *testing.T) {
	doc := map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{},
		"paths": map[string]any{
			"/x": map[string]any{"get": map[string]any{"responses": []any{ref("Missing")}}},
		},
	}
	err := validateDocument(doc)
	if err == nil || !strings.Contains(err.Error(), "#/components/schemas/Missing") {
		t.Fatalf("expected unresolved reference error, got %v", err)
	}
}

func TestComponentName(t *testing.T) {
	cases := map[string]string{
		"payments":             "Payments",
		"store.preferences":    "StorePreferences",
		"protection.anti_raid": "ProtectionAntiRaid",
		"cloud":                "Cloud",
	}
	for input, want := range cases {
		if got := ComponentName(input); got != want {
			t.Fatalf("ComponentName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	t.Parallel()

	generator := NewGenerator()
	list := domains.All()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			doc, err := generator.Generate(list)
			if err != nil {
				t.Errorf("Generate returned error: %v", err)
				return
			}
			if doc["paths"] == nil {
				t.Errorf("expected paths")
			}
		}()
	}
	wg.Wait()
}

func property(t *testing.T, schema map[string]any, path ...string) map[string]any {
	t.Helper()
	current := schema
	for _, name := range path {
		properties, ok := current["properties"].(map[string]any)
		if !ok {
			t.Fatalf("schema has no properties at %q", name)
		}
		next, ok := properties[name].(map[string]any)
		if !ok {
			t.Fatalf("missing property %q", name)
		}
		current = next
	}
	return current
}
