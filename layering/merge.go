// Package layering combines JSON-shaped configuration documents. Documents are
// trees of map[string]any, []any and primitives as produced by encoding/json.
package layering

// Merge returns a new document holding base overlaid with override.
//
// Plain objects recurse key by key. Arrays, primitives and keys that base does
// not carry are replaced wholesale by the override value. Keys only present in
// base survive unchanged. Neither input is mutated; subtrees that the override
// does not touch are shared with base.
func Merge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		next, isObject := asObject(value)
		if !isObject {
			merged[key] = value
			continue
		}
		current, ok := merged[key]
		if !ok {
			merged[key] = value
			continue
		}
		if existing, ok := asObject(current); ok {
			merged[key] = Merge(existing, next)
			continue
		}
		merged[key] = Merge(nil, next)
	}
	return merged
}

// MergeLayers folds layers ordered from strongest to weakest: index 0 wins
// over every later layer. Nil layers are skipped.
func MergeLayers(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil {
			continue
		}
		merged = Merge(merged, layers[i])
	}
	return merged
}

// Clone deep copies a JSON-shaped value. Values of other kinds are returned
// as-is.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneMap(typed)
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []string:
		if typed == nil {
			return typed
		}
		out := make([]string, len(typed))
		copy(out, typed)
		return out
	case []map[string]any:
		if typed == nil {
			return typed
		}
		out := make([]map[string]any, len(typed))
		for i, item := range typed {
			out[i] = CloneMap(item)
		}
		return out
	default:
		return value
	}
}

// CloneMap deep copies a document. A nil input yields nil.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = Clone(value)
	}
	return out
}

func asObject(value any) (map[string]any, bool) {
	object, ok := value.(map[string]any)
	if !ok || object == nil {
		return nil, false
	}
	return object, true
}
