package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inkcloud/go-settings/pkg/domains"
)

const refPrefix = "#/components/schemas/"

type documentBuilder struct {
	config     generatorConfig
	domains    []domains.Domain
	components map[string]any
}

func newDocumentBuilder(config generatorConfig, list []domains.Domain, components map[string]any) *documentBuilder {
	return &documentBuilder{config: config, domains: list, components: components}
}

func (b *documentBuilder) build() (map[string]any, error) {
	document := map[string]any{
		"openapi": b.config.version,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(),
		"components": map[string]any{
			"schemas": b.components,
		},
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *documentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) buildPaths() map[string]any {
	base := b.config.basePath
	paths := map[string]any{
		base + "/domains": map[string]any{
			"get": b.operation("listDomains", "List settings domains", nil, nil, response("200", "Domains", arrayOf(ref("DomainInfo")))),
		},
		base + "/tenants/{tenant}/summary": map[string]any{
			"get": b.operation("getSummary", "Tenant summary", []any{pathParam("tenant")}, nil, response("200", "Summary", ref("Summary"))),
		},
		base + "/stock": map[string]any{
			"get": b.operation("fetchStock", "Fetch a stock entry", []any{
				queryParam("product_id", "string", true),
				queryParam("field_id", "string", true),
				queryParam("limit", "integer", false),
				queryParam("offset", "integer", false),
			}, nil, response("200", "Stock entry", ref("StockEntry"))),
		},
	}
	for _, op := range []string{"add", "infinite", "clear", "pull"} {
		paths[base+"/stock/"+op] = map[string]any{
			"post": b.operation("stock"+strings.ToUpper(op[:1])+op[1:], "Stock "+op, nil,
				b.body(ref("StockRequest")), response("200", "OK", map[string]any{"type": "object"})),
		}
	}

	for _, d := range b.domains {
		component := ComponentName(d.Name)
		params := []any{pathParam("tenant")}
		doc := ref(component)
		item := map[string]any{
			"get":   b.operation("get"+component, "Read "+d.Name+" settings", params, nil, response("200", "Effective document", doc)),
			"put":   b.operation("put"+component, "Replace "+d.Name+" settings", params, b.body(doc), response("200", "Saved document", doc)),
			"patch": b.operation("patch"+component, "Merge into "+d.Name+" settings", params, b.body(map[string]any{"type": "object"}), response("200", "Saved document", doc)),
		}
		paths[base+"/tenants/{tenant}/settings/"+d.Name] = item

		for _, group := range d.Exclusive {
			paths[base+"/tenants/{tenant}/settings/"+d.Name+"/"+group+"/{id}/enabled"] = map[string]any{
				"put": b.operation("setEnabled"+component+ComponentName(group), "Toggle an entry of "+group,
					[]any{pathParam("tenant"), pathParam("id")},
					b.body(ref("EnabledRequest")), response("200", "Saved document", doc)),
			}
		}
	}
	return paths
}

func (b *documentBuilder) operation(id, summary string, params []any, body map[string]any, responses map[string]any) map[string]any {
	responses["default"] = map[string]any{
		"description": "Error",
		"content":     map[string]any{b.config.contentType: map[string]any{"schema": ref("Error")}},
	}
	for status, raw := range responses {
		resp, ok := raw.(map[string]any)
		if !ok || status == "default" {
			continue
		}
		if schema, ok := resp["schema"]; ok {
			delete(resp, "schema")
			resp["content"] = map[string]any{b.config.contentType: map[string]any{"schema": schema}}
		}
	}
	op := map[string]any{
		"operationId": id,
		"summary":     summary,
		"responses":   responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	if body != nil {
		op["requestBody"] = body
	}
	return op
}

func (b *documentBuilder) body(schema map[string]any) map[string]any {
	return map[string]any{
		"required": true,
		"content":  map[string]any{b.config.contentType: map[string]any{"schema": schema}},
	}
}

func response(status, description string, schema map[string]any) map[string]any {
	return map[string]any{status: map[string]any{"description": description, "schema": schema}}
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": refPrefix + name}
}

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func pathParam(name string) map[string]any {
	return map[string]any{"name": name, "in": "path", "required": true, "schema": map[string]any{"type": "string"}}
}

func queryParam(name, kind string, required bool) map[string]any {
	return map[string]any{"name": name, "in": "query", "required": required, "schema": map[string]any{"type": kind}}
}

func baseComponents() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"Error": object(map[string]any{"error": str}, "error"),
		"DomainInfo": object(map[string]any{
			"name":   str,
			"title":  str,
			"fields": arrayOf(map[string]any{"type": "object"}),
		}, "name"),
		"Summary": object(map[string]any{
			"tenant":       str,
			"domains":      arrayOf(str),
			"generated_at": map[string]any{"type": "string", "format": "date-time"},
		}, "tenant"),
		"StockEntry": object(map[string]any{
			"items":          arrayOf(str),
			"total":          map[string]any{"type": "integer"},
			"is_infinite":    map[string]any{"type": "boolean"},
			"infinite_value": str,
		}),
		"StockRequest": object(map[string]any{
			"product_id": str,
			"field_id":   str,
			"items":      arrayOf(str),
			"value":      str,
			"quantity":   map[string]any{"type": "integer", "minimum": 1},
		}, "product_id", "field_id"),
		"EnabledRequest": object(map[string]any{"enabled": map[string]any{"type": "boolean"}}, "enabled"),
	}
}

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		list := make([]any, len(required))
		for i, name := range required {
			list[i] = name
		}
		schema["required"] = list
	}
	return schema
}

// validateDocument checks the required top-level fields and that every $ref
// points at a declared component.
func validateDocument(document map[string]any) error {
	for _, key := range []string{"openapi", "info", "paths"} {
		if _, ok := document[key]; !ok {
			return fmt.Errorf("openapi: document missing %q", key)
		}
	}
	schemas := map[string]any{}
	if components, ok := document["components"].(map[string]any); ok {
		if declared, ok := components["schemas"].(map[string]any); ok {
			schemas = declared
		}
	}
	var missing []string
	walkRefs(document, func(target string) {
		name := strings.TrimPrefix(target, refPrefix)
		if _, ok := schemas[name]; !ok || name == target {
			missing = append(missing, target)
		}
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("openapi: unresolved references: %s", strings.Join(missing, ", "))
	}
	return nil
}

func walkRefs(value any, visit func(string)) {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			if key == "$ref" {
				if target, ok := child.(string); ok {
					visit(target)
				}
				continue
			}
			walkRefs(child, visit)
		}
	case []any:
		for _, child := range typed {
			walkRefs(child, visit)
		}
	}
}
