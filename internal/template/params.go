package template

import (
	"strings"

	"github.com/spf13/cast"
)

// DefaultUserName is rendered when a template references userName and the
// caller did not supply one.
const DefaultUserName = "User"

// Params is the caller-supplied parameter bag. Values may be strings,
// numbers, booleans or nested maps addressed with dotted keys.
type Params map[string]any

// Values resolves template tags against caller params first and registry
// defaults second.
type Values struct {
	params   Params
	defaults map[string]string
}

// String returns the textual value for key. Missing keys and values that
// have no scalar form render as "".
func (v Values) String(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if raw, ok := lookup(v.params, key); ok && raw != nil {
		if s, err := cast.ToStringE(raw); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}

	return v.defaults[key]
}

// Has reports whether the caller supplied a non-empty value for key.
func (v Values) Has(key string) bool {
	raw, ok := lookup(v.params, key)
	if !ok || raw == nil {
		return false
	}
	s, err := cast.ToStringE(raw)
	return err == nil && strings.TrimSpace(s) != ""
}

func lookup(params Params, key string) (any, bool) {
	if params == nil {
		return nil, false
	}
	if value, ok := params[key]; ok {
		return value, true
	}

	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return nil, false
	}

	var current any = map[string]any(params)
	for _, part := range parts {
		m, err := cast.ToStringMapE(current)
		if err != nil {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}
