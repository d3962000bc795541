// Package records defines the generic record type shared between the JSON
// decode path, the columnar array helpers, and the writer.
//
// A Record is a decoded JSON object (map[string]any) whose values are the
// types produced by encoding/json with UseNumber enabled: json.Number, string,
// bool, nil, []any, and nested map[string]any. Keeping the representation
// this plain lets every stage of the pipeline (sampling, partition reads,
// projection, writing) share data without conversion layers.
package records

import (
	"sort"
	"strings"
)

// Record is a single decoded JSON object.
type Record map[string]any

// Keys returns the record's field names sorted lexicographically. Go maps
// have no stable iteration order, so every place that needs a deterministic
// field ordering goes through Keys.
func (r Record) Keys() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get resolves a dot-separated field path ("points.x") against the record.
// The second result is false when any path segment is missing or a non-object
// value is encountered before the final segment.
func (r Record) Get(path string) (any, bool) {
	segs := strings.Split(path, ".")
	var cur any = map[string]any(r)
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Project returns a copy of the record restricted to the given dot-separated
// field paths. A nil or empty path set means "all fields" and returns the
// record unchanged (no copy). Paths that name a whole field keep that field's
// entire subtree; nested paths keep only the named children of intermediate
// objects. Missing paths are skipped silently: projection narrows, it does
// not validate.
func (r Record) Project(paths []string) Record {
	if len(paths) == 0 {
		return r
	}
	return projectMap(r, splitPaths(paths))
}

// pathTree maps a leading segment to its remaining subtree. A nil subtree
// means the whole field is kept.
type pathTree map[string]pathTree

func splitPaths(paths []string) pathTree {
	t := pathTree{}
	for _, p := range paths {
		seg, rest, nested := strings.Cut(p, ".")
		if !nested {
			// Whole field wins over any nested narrowing seen earlier.
			t[seg] = nil
			continue
		}
		if sub, ok := t[seg]; ok && sub == nil {
			continue
		}
		if t[seg] == nil {
			t[seg] = pathTree{}
		}
		merge(t[seg], splitPaths([]string{rest}))
	}
	return t
}

func merge(dst, src pathTree) {
	for k, v := range src {
		if v == nil {
			dst[k] = nil
			continue
		}
		if cur, ok := dst[k]; ok {
			if cur == nil {
				continue
			}
			merge(cur, v)
			continue
		}
		dst[k] = v
	}
}

func projectMap(m map[string]any, t pathTree) map[string]any {
	out := make(map[string]any, len(t))
	for seg, sub := range t {
		v, ok := m[seg]
		if !ok {
			continue
		}
		if sub == nil {
			out[seg] = v
			continue
		}
		out[seg] = projectValue(v, sub)
	}
	return out
}

// projectValue applies the path subtree through lists: projecting
// "points.x" over {"points": [{"x":1,"y":2}]} keeps x inside each element.
func projectValue(v any, t pathTree) any {
	switch vv := v.(type) {
	case map[string]any:
		return projectMap(vv, t)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = projectValue(e, t)
		}
		return out
	default:
		return v
	}
}
