package webgraph

import (
	"encoding/json"
	"math"
	"strconv"
)

// Document is one edge record keyed by storage alias. Values are plain Go
// scalars or string slices when built in-process; documents read back from a
// JSON-backed index carry float64 and []any instead, so the typed readers
// below accept both shapes.
type Document map[string]any

// Clone returns a shallow copy with string slices duplicated.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		switch tv := v.(type) {
		case []string:
			out[k] = append([]string(nil), tv...)
		case []any:
			out[k] = append([]any(nil), tv...)
		default:
			out[k] = v
		}
	}
	return out
}

// HasValue reports whether key holds a non-nil, non-empty value.
func (d Document) HasValue(key string) bool {
	v, ok := d[key]
	if !ok || v == nil {
		return false
	}
	switch tv := v.(type) {
	case string:
		return tv != ""
	case []string:
		return len(tv) > 0
	case []any:
		return len(tv) > 0
	}
	return true
}

// String returns the value under key when it is a string.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Int returns the value under key as an int, accepting the numeric shapes
// produced by JSON decoding.
func (d Document) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Strings returns the value under key as a string slice. A single string is
// treated as a one-element list.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
