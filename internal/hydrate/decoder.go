// Package hydrate turns JSON request bodies into typed values, checking
// required keys before decoding and validating the result after.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidPayload wraps every decoding failure.
var ErrInvalidPayload = errors.New("hydrate: invalid payload")

// Schema describes the body accepted by one endpoint. The zero value decodes
// any JSON object into T.
type Schema[T any] struct {
	// Required keys must be present, non-null and, for strings, non-blank.
	Required []string
	// Strict rejects keys T does not declare.
	Strict bool
	// Prepare may rewrite the raw object before it is decoded.
	Prepare func(payload map[string]any) error
	// Check validates the decoded value.
	Check func(value *T) error
}

// Read decodes a JSON object from r.
func (s Schema[T]) Read(endpoint string, r io.Reader) (T, error) {
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		var zero T
		return zero, invalid(endpoint, err)
	}
	return s.decode(endpoint, payload)
}

// Decode converts payload without modifying it.
func (s Schema[T]) Decode(endpoint string, payload map[string]any) (T, error) {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			var zero T
			return zero, invalid(endpoint, err)
		}
		payload = nil
		if err := json.Unmarshal(raw, &payload); err != nil {
			var zero T
			return zero, invalid(endpoint, err)
		}
	}
	return s.decode(endpoint, payload)
}

func (s Schema[T]) decode(endpoint string, payload map[string]any) (value T, err error) {
	if payload == nil {
		return value, invalid(endpoint, errors.New("payload is empty"))
	}
	if missing := missingKeys(payload, s.Required); len(missing) > 0 {
		return value, invalid(endpoint, fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", ")))
	}
	if s.Prepare != nil {
		if err := s.Prepare(payload); err != nil {
			return value, invalid(endpoint, err)
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return value, invalid(endpoint, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if s.Strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&value); err != nil {
		var zero T
		return zero, invalid(endpoint, err)
	}
	if s.Check != nil {
		if err := s.Check(&value); err != nil {
			var zero T
			return zero, invalid(endpoint, err)
		}
	}
	return value, nil
}

func missingKeys(payload map[string]any, keys []string) []string {
	var missing []string
	for _, key := range keys {
		switch value := payload[key].(type) {
		case nil:
			missing = append(missing, key)
		case string:
			if strings.TrimSpace(value) == "" {
				missing = append(missing, key)
			}
		}
	}
	return missing
}

func invalid(endpoint string, err error) error {
	if endpoint == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, endpoint, err)
}
