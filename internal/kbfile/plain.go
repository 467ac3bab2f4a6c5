// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kbfile

import "fmt"

// Plain rewrites a value decoded from YAML so every mapping is a
// map[string]any. YAML allows non-string keys (timing: {8: 2}), which
// decode as map[any]any and cannot be encoded as JSON. Keys are
// stringified with fmt.Sprint.
func Plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = Plain(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = Plain(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = Plain(item)
		}
		return t
	default:
		return v
	}
}

// PlainMap applies Plain to every value of m in place and returns m.
func PlainMap(m map[string]any) map[string]any {
	for k, item := range m {
		m[k] = Plain(item)
	}
	return m
}
