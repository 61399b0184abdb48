// Package sanitize strips characters considered unsafe for downstream
// rendering from user-supplied payload trees. It is a minimal defense
// against tag injection, not an HTML/JS sanitizer.
package sanitize

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
)

// ErrCycle is returned when a payload contains a self-referential
// structure. JSON-decoded bodies can never trigger this; it exists so
// programmatic callers get a defined error instead of a stack overflow.
var ErrCycle = errors.New("sanitize: cyclic structure")

// String trims leading/trailing whitespace and removes every occurrence
// of '<' and '>'.
func String(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '<' || r == '>' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Clean returns a copy of v in which no string leaf contains '<' or '>'
// and every string leaf is trimmed. Map keys, element order, and
// non-string scalars are preserved unchanged. The input is never mutated.
//
// Supported containers are the JSON value types (map[string]any, []any);
// any other value is returned as-is.
func Clean(v any) (any, error) {
	return clean(v, make(map[uintptr]struct{}))
}

func clean(v any, seen map[uintptr]struct{}) (any, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case map[string]any:
		ptr := reflect.ValueOf(t).Pointer()
		if _, ok := seen[ptr]; ok {
			return nil, ErrCycle
		}
		seen[ptr] = struct{}{}
		out := make(map[string]any, len(t))
		for k, val := range t {
			cleaned, err := clean(val, seen)
			if err != nil {
				return nil, err
			}
			out[k] = cleaned
		}
		delete(seen, ptr)
		return out, nil
	case []any:
		ptr := reflect.ValueOf(t).Pointer()
		if _, ok := seen[ptr]; ok {
			return nil, ErrCycle
		}
		seen[ptr] = struct{}{}
		out := make([]any, len(t))
		for i, val := range t {
			cleaned, err := clean(val, seen)
			if err != nil {
				return nil, err
			}
			out[i] = cleaned
		}
		delete(seen, ptr)
		return out, nil
	default:
		return v, nil
	}
}

// Values returns a cleaned copy of URL query values.
func Values(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		cleaned := make([]string, len(vals))
		for i, s := range vals {
			cleaned[i] = String(s)
		}
		out[k] = cleaned
	}
	return out
}

// Vars returns a cleaned copy of route path parameters.
func Vars(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, s := range m {
		out[k] = String(s)
	}
	return out
}
