package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/inkcloud/go-settings/layering"
)

var (
	// ErrRejected marks a value that failed normalization. The previous value
	// is kept.
	ErrRejected = errors.New("settings: value rejected")
	// ErrUnknownPath marks a mutation against a path outside the field table.
	ErrUnknownPath = errors.New("settings: unknown field path")
)

// FieldKind enumerates the normalization strategies a field can use.
type FieldKind int

const (
	KindFreeText FieldKind = iota
	KindEnum
	KindHexColor
	KindNumberRange
	KindBool
	KindIDList
)

func (k FieldKind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindHexColor:
		return "hex_color"
	case KindNumberRange:
		return "number_range"
	case KindBool:
		return "bool"
	case KindIDList:
		return "id_list"
	default:
		return "free_text"
	}
}

// FieldSpec describes how values for one path are validated.
type FieldSpec struct {
	Kind     FieldKind
	Allowed  []string // KindEnum
	Min      float64  // KindNumberRange
	Max      float64  // KindNumberRange
	Integer  bool     // KindNumberRange truncates to whole numbers
	Required bool     // KindFreeText rejects blank input
}

// Enum declares an enumerated string field.
func Enum(allowed ...string) FieldSpec {
	return FieldSpec{Kind: KindEnum, Allowed: allowed}
}

// HexColor declares a #RRGGBB color field.
func HexColor() FieldSpec {
	return FieldSpec{Kind: KindHexColor}
}

// Number declares a numeric field clamped to [min, max].
func Number(min, max float64) FieldSpec {
	return FieldSpec{Kind: KindNumberRange, Min: min, Max: max}
}

// Integer declares a whole-number field clamped to [min, max].
func Integer(min, max float64) FieldSpec {
	return FieldSpec{Kind: KindNumberRange, Min: min, Max: max, Integer: true}
}

// Bool declares a boolean field.
func Bool() FieldSpec {
	return FieldSpec{Kind: KindBool}
}

// IDList declares a set of identifiers.
func IDList() FieldSpec {
	return FieldSpec{Kind: KindIDList}
}

// Text declares a free-text field.
func Text() FieldSpec {
	return FieldSpec{Kind: KindFreeText}
}

// RequiredText declares a free-text field that must not be blank.
func RequiredText() FieldSpec {
	return FieldSpec{Kind: KindFreeText, Required: true}
}

// RejectionError explains why a value was not accepted.
type RejectionError struct {
	Path   string
	Kind   FieldKind
	Value  any
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: %s field %q rejected %v: %s", e.Kind, e.Path, e.Value, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func reject(path string, spec FieldSpec, value any, reason string) error {
	return &RejectionError{Path: path, Kind: spec.Kind, Value: value, Reason: reason, Err: ErrRejected}
}

// FieldTable maps dotted document paths to field specs. It is the closed set
// of paths a controller accepts mutations for.
type FieldTable map[string]FieldSpec

// Paths returns the declared paths in sorted order.
func (t FieldTable) Paths() []string {
	paths := make([]string, 0, len(t))
	for path := range t {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Normalize validates raw for path. On rejection the returned value is the
// previous value (possibly coerced, e.g. clamped) and the error wraps
// ErrRejected or ErrUnknownPath.
func (t FieldTable) Normalize(path string, raw, previous any) (any, error) {
	spec, ok := t[path]
	if !ok {
		return previous, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	return spec.normalize(path, raw, previous)
}

// Canonicalize normalizes every table path present in doc, falling back to
// the value found in fallback when the document value is rejected. Paths
// missing from doc are left alone. The returned document is a copy.
func (t FieldTable) Canonicalize(doc, fallback Document) (Document, []error) {
	return t.CanonicalizeUnder(doc, fallback, "")
}

// CanonicalizeUnder is Canonicalize restricted to prefix and the paths
// below it. An empty prefix covers the whole table.
func (t FieldTable) CanonicalizeUnder(doc, fallback Document, prefix string) (Document, []error) {
	out := Clone(doc)
	var rejections []error
	for _, path := range t.Paths() {
		if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+".") {
			continue
		}
		raw, ok := layering.Lookup(doc, path)
		if !ok {
			continue
		}
		previous, _ := layering.Lookup(fallback, path)
		value, err := t.Normalize(path, raw, previous)
		if err != nil {
			rejections = append(rejections, err)
		}
		out = layering.Set(out, path, value)
	}
	return out, rejections
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-F]{6}$`)

func (s FieldSpec) normalize(path string, raw, previous any) (any, error) {
	switch s.Kind {
	case KindEnum:
		text, ok := raw.(string)
		if !ok {
			return previous, reject(path, s, raw, "expected string")
		}
		value := strings.ToLower(strings.TrimSpace(text))
		for _, allowed := range s.Allowed {
			if value == allowed {
				return value, nil
			}
		}
		return previous, reject(path, s, raw, "not one of "+strings.Join(s.Allowed, ", "))
	case KindHexColor:
		text, ok := raw.(string)
		if !ok {
			return previous, reject(path, s, raw, "expected string")
		}
		value := strings.ToUpper(strings.TrimSpace(text))
		if !hexColorPattern.MatchString(value) {
			return previous, reject(path, s, raw, "expected #RRGGBB")
		}
		return value, nil
	case KindNumberRange:
		number, ok := toFloat(raw)
		if !ok {
			fallback, _ := toFloat(previous)
			return s.clamp(fallback), reject(path, s, raw, "not a number")
		}
		return s.clamp(number), nil
	case KindBool:
		value, ok := toBool(raw)
		if !ok {
			return previous, reject(path, s, raw, "expected boolean")
		}
		return value, nil
	case KindIDList:
		ids, ok := toIDList(raw)
		if !ok {
			return previous, reject(path, s, raw, "expected list of identifiers")
		}
		return ids, nil
	default:
		text, ok := raw.(string)
		if !ok {
			if raw == nil {
				text = ""
			} else {
				text = fmt.Sprint(raw)
			}
		}
		if s.Required && strings.TrimSpace(text) == "" {
			return previous, reject(path, s, raw, "value is required")
		}
		return text, nil
	}
}

func (s FieldSpec) clamp(value float64) float64 {
	if math.IsNaN(value) {
		value = s.Min
	}
	if s.Integer {
		value = math.Trunc(value)
	}
	if value < s.Min {
		return s.Min
	}
	if value > s.Max {
		return s.Max
	}
	return value
}

func toFloat(raw any) (float64, bool) {
	switch typed := raw.(type) {
	case float64:
		return typed, !math.IsNaN(typed) && !math.IsInf(typed, 0)
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		value, err := typed.Float64()
		return value, err == nil
	case string:
		value, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(typed, ",", ".")), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}

func toBool(raw any) (bool, bool) {
	switch typed := raw.(type) {
	case bool:
		return typed, true
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case float64:
		if typed == 0 || typed == 1 {
			return typed == 1, true
		}
	}
	return false, false
}

func toIDList(raw any) ([]string, bool) {
	var candidates []string
	switch typed := raw.(type) {
	case nil:
		return []string{}, true
	case []string:
		candidates = typed
	case []any:
		for _, item := range typed {
			switch value := item.(type) {
			case string:
				candidates = append(candidates, value)
			case float64:
				candidates = append(candidates, strconv.FormatFloat(value, 'f', -1, 64))
			case json.Number:
				candidates = append(candidates, value.String())
			default:
				return nil, false
			}
		}
	case string:
		candidates = strings.FieldsFunc(typed, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == ';'
		})
	default:
		return nil, false
	}

	seen := make(map[string]struct{}, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		id := strings.TrimSpace(candidate)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, true
}
