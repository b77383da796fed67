package layering

import "strings"

// SplitPath breaks a dotted path into its segments. Empty segments are dropped.
func SplitPath(path string) []string {
	raw := strings.Split(path, ".")
	segments := raw[:0]
	for _, segment := range raw {
		segment = strings.TrimSpace(segment)
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// JoinPath appends segment to prefix using dotted notation.
func JoinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// Lookup walks doc along a dotted path.
func Lookup(doc map[string]any, path string) (any, bool) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return doc, doc != nil
	}
	var current any = doc
	for _, segment := range segments {
		object, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = object[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set returns a copy of doc with value stored at path. Only the objects along
// path are copied; every other subtree is shared with doc. Missing or
// non-object intermediates are replaced by fresh objects.
func Set(doc map[string]any, path string, value any) map[string]any {
	segments := SplitPath(path)
	if len(segments) == 0 {
		if object, ok := asObject(value); ok {
			return object
		}
		return doc
	}
	return setSegments(doc, segments, value)
}

func setSegments(doc map[string]any, segments []string, value any) map[string]any {
	out := make(map[string]any, len(doc)+1)
	for key, existing := range doc {
		out[key] = existing
	}
	head := segments[0]
	if len(segments) == 1 {
		out[head] = value
		return out
	}
	child, _ := asObject(out[head])
	out[head] = setSegments(child, segments[1:], value)
	return out
}

// Paths lists the dotted paths of every leaf in doc (arrays count as leaves).
func Paths(doc map[string]any) []string {
	var out []string
	collectPaths(doc, "", &out)
	return out
}

func collectPaths(doc map[string]any, prefix string, out *[]string) {
	for key, value := range doc {
		path := JoinPath(prefix, key)
		if object, ok := asObject(value); ok && len(object) > 0 {
			collectPaths(object, path, out)
			continue
		}
		*out = append(*out, path)
	}
}
