package settings

import (
	"fmt"
	"sort"

	"github.com/inkcloud/go-settings/layering"
)

// FieldDescriptor describes one document path for clients building forms.
// Editable paths carry their field kind and constraints; the rest only carry
// the inferred Go type of the default value.
type FieldDescriptor struct {
	Path     string   `json:"path"`
	Type     string   `json:"type"`
	Kind     string   `json:"kind,omitempty"`
	Editable bool     `json:"editable"`
	Allowed  []string `json:"allowed,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Required bool     `json:"required,omitempty"`
	Default  any      `json:"default,omitempty"`
}

// Describe lists every leaf of defaults plus every table path, sorted by path.
func Describe(defaults Document, fields FieldTable) []FieldDescriptor {
	byPath := map[string]FieldDescriptor{}
	for _, descriptor := range deriveFieldDescriptors(defaults, "") {
		byPath[descriptor.Path] = descriptor
	}
	for path, spec := range fields {
		descriptor, ok := byPath[path]
		if !ok {
			descriptor = FieldDescriptor{Path: path, Type: "nil"}
		}
		descriptor.Editable = true
		descriptor.Kind = spec.Kind.String()
		descriptor.Required = spec.Required
		if spec.Kind == KindEnum {
			descriptor.Allowed = append([]string(nil), spec.Allowed...)
		}
		if spec.Kind == KindNumberRange {
			lo, hi := spec.Min, spec.Max
			descriptor.Min, descriptor.Max = &lo, &hi
		}
		byPath[path] = descriptor
	}

	out := make([]FieldDescriptor, 0, len(byPath))
	for _, descriptor := range byPath {
		out = append(out, descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	if value == nil {
		return nil
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{Path: prefix, Type: "map[string]any"}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, deriveFieldDescriptors(typed[key], layering.JoinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = typeName(typed[0])
		}
		return []FieldDescriptor{{Path: prefix, Type: "[]" + elementType, Default: layering.Clone(typed)}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: typeName(typed), Default: typed}}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
