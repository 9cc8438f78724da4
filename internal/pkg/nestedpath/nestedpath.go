// Package nestedpath reads and writes dot-separated paths inside trees of
// string-keyed maps decoded from JSON columns.
package nestedpath

import "strings"

// Split breaks a dotted path into its segments. Empty segments are dropped so
// "a..b" and ".a.b." both address a -> b.
func Split(path string) []string {
	raw := strings.Split(path, ".")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Get walks blob along path and returns the leaf value. A missing segment, a
// non-map intermediate or a nil leaf yields def.
func Get(blob map[string]interface{}, path string, def interface{}) interface{} {
	return GetSegments(blob, Split(path), def)
}

// GetSegments is Get for a path that is already split.
func GetSegments(blob map[string]interface{}, segments []string, def interface{}) interface{} {
	if len(segments) == 0 || blob == nil {
		return def
	}
	current := blob
	for i, seg := range segments {
		v, ok := current[seg]
		if !ok || v == nil {
			return def
		}
		if i == len(segments)-1 {
			return v
		}
		next, ok := AsMap(v)
		if !ok {
			return def
		}
		current = next
	}
	return def
}

// Lookup is Get without a default: ok reports whether a non-nil leaf exists.
func Lookup(blob map[string]interface{}, segments []string) (interface{}, bool) {
	v := GetSegments(blob, segments, missing{})
	if _, miss := v.(missing); miss {
		return nil, false
	}
	return v, true
}

type missing struct{}

// Set assigns value at segments inside root, creating intermediate maps as
// needed. A non-map value sitting on an intermediate segment is replaced.
// root is mutated in place.
func Set(root map[string]interface{}, segments []string, value interface{}) {
	if root == nil || len(segments) == 0 {
		return
	}
	current := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := AsMap(current[seg])
		if !ok {
			next = map[string]interface{}{}
		}
		current[seg] = next
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// Merge deep-merges src into dst and returns dst. Nested maps merge key by
// key; any other value in src overwrites the one in dst.
func Merge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, sv := range src {
		srcMap, srcIsMap := AsMap(sv)
		dstMap, dstIsMap := AsMap(dst[k])
		if srcIsMap && dstIsMap {
			dst[k] = Merge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			dst[k] = Clone(srcMap)
			continue
		}
		dst[k] = sv
	}
	return dst
}

// Clone returns a deep copy of m. Slices are copied element by element.
func Clone(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices and returns other values as is.
func CloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return Clone(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// AsMap reports whether v is a string-keyed map and returns it.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}
