// Package settings implements the configuration document model shared by the
// inkCloud dashboard: defaults merged with server payloads, field-level
// normalization, and a controller that loads, patches and persists one
// document per settings domain.
package settings

import (
	"github.com/inkcloud/go-settings/layering"
)

// Document is a JSON-shaped configuration tree. Nested objects are
// map[string]any, arrays are []any or []string.
type Document = map[string]any

// Normalize completes payload against defaults so every default key is
// present. A nil payload yields a copy of defaults.
func Normalize(defaults, payload Document) Document {
	return layering.Merge(layering.CloneMap(defaults), payload)
}

// Clone returns a deep copy of doc.
func Clone(doc Document) Document {
	return layering.CloneMap(doc)
}
