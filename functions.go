package settings

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Function is a helper callable from rule expressions.
type Function func(args ...any) (any, error)

// Functions maps lower-case helper names to implementations. Engines copy the
// set when they are built.
type Functions map[string]Function

// DefaultFunctions returns the dashboard helpers: is_snowflake, is_hex_color
// and is_url.
func DefaultFunctions() Functions {
	return Functions{
		"is_snowflake": stringPredicate(isSnowflake),
		"is_hex_color": stringPredicate(func(value string) bool {
			return hexColorPattern.MatchString(strings.ToUpper(value))
		}),
		"is_url": stringPredicate(func(value string) bool {
			parsed, err := url.Parse(value)
			return err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") && parsed.Host != ""
		}),
	}
}

// Register adds fn under name.
func (f Functions) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return fmt.Errorf("settings: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("settings: function %q is nil", name)
	case f[key] != nil:
		return fmt.Errorf("settings: function %q already registered", name)
	}
	f[key] = fn
	return nil
}

// Call runs the helper registered under name.
func (f Functions) Call(name string, args ...any) (any, error) {
	fn := f[strings.ToLower(name)]
	if fn == nil {
		return nil, fmt.Errorf("settings: function %q not registered", name)
	}
	return fn(args...)
}

// Names lists the helpers in sorted order.
func (f Functions) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f Functions) clone() Functions {
	if f == nil {
		return nil
	}
	out := make(Functions, len(f))
	for name, fn := range f {
		out[name] = fn
	}
	return out
}

func stringPredicate(check func(string) bool) Function {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("settings: expected 1 argument, got %d", len(args))
		}
		value, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		return check(strings.TrimSpace(value)), nil
	}
}

// Discord snowflakes are 17-20 digit integers.
func isSnowflake(value string) bool {
	if len(value) < 17 || len(value) > 20 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
