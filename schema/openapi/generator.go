// Package openapi describes the settings REST API as an OpenAPI document,
// with one component schema per settings domain derived from the domain
// defaults and field table.
package openapi

import (
	"fmt"
	"sort"
	"strings"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/layering"
	"github.com/inkcloud/go-settings/pkg/domains"
)

// Generator builds OpenAPI documents.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a generator.
func NewGenerator(opts ...GeneratorOption) Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return Generator{config: cfg}
}

// Generate returns the document covering list. The result only holds
// JSON-shaped values.
func (g Generator) Generate(list []domains.Domain) (map[string]any, error) {
	sorted := append([]domains.Domain(nil), list...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	components := baseComponents()
	for _, d := range sorted {
		name := ComponentName(d.Name)
		if _, exists := components[name]; exists {
			return nil, fmt.Errorf("openapi: component %q declared twice", name)
		}
		components[name] = DomainSchema(d)
	}
	return newDocumentBuilder(g.config, sorted, components).build()
}

// DomainSchema returns the object schema of d's settings document.
func DomainSchema(d domains.Domain) map[string]any {
	schema := schemaFor(d.Defaults, "", d.Fields)
	if d.Title != "" {
		schema["title"] = d.Title
	}
	return schema
}

func schemaFor(value any, path string, fields settings.FieldTable) map[string]any {
	if spec, ok := fields[path]; ok && path != "" {
		return fieldSchema(spec, value)
	}

	switch typed := value.(type) {
	case map[string]any:
		names := make([]string, 0, len(typed))
		for name := range typed {
			names = append(names, name)
		}
		sort.Strings(names)
		properties := make(map[string]any, len(names))
		for _, name := range names {
			properties[name] = schemaFor(typed[name], layering.JoinPath(path, name), fields)
		}
		return map[string]any{
			"type":       "object",
			"properties": properties,
		}
	case []any:
		items := map[string]any{}
		if len(typed) > 0 {
			items = schemaFor(typed[0], "", nil)
		}
		return map[string]any{"type": "array", "items": items}
	case []string:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case bool:
		return map[string]any{"type": "boolean"}
	case int, int32, int64:
		return map[string]any{"type": "integer"}
	case float32, float64:
		return map[string]any{"type": "number"}
	case string:
		return map[string]any{"type": "string"}
	case nil:
		return map[string]any{"nullable": true}
	default:
		return map[string]any{
			"type":   "string",
			"format": fmt.Sprintf("go:%T", typed),
		}
	}
}

func fieldSchema(spec settings.FieldSpec, defaultValue any) map[string]any {
	var schema map[string]any
	switch spec.Kind {
	case settings.KindEnum:
		allowed := make([]any, len(spec.Allowed))
		for i, value := range spec.Allowed {
			allowed[i] = value
		}
		schema = map[string]any{"type": "string", "enum": allowed}
	case settings.KindHexColor:
		schema = map[string]any{"type": "string", "pattern": "^#[0-9A-Fa-f]{6}$"}
	case settings.KindNumberRange:
		kind := "number"
		if spec.Integer {
			kind = "integer"
		}
		schema = map[string]any{"type": kind, "minimum": spec.Min, "maximum": spec.Max}
	case settings.KindBool:
		schema = map[string]any{"type": "boolean"}
	case settings.KindIDList:
		schema = map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"uniqueItems": true,
		}
	default:
		schema = map[string]any{"type": "string"}
		if spec.Required {
			schema["minLength"] = 1
		}
	}
	schema["x-field-kind"] = spec.Kind.String()
	if defaultValue != nil {
		schema["default"] = layering.Clone(defaultValue)
	}
	return schema
}

// ComponentName maps a domain name such as "store.preferences" to
// "StorePreferences".
func ComponentName(domain string) string {
	parts := strings.FieldsFunc(domain, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
