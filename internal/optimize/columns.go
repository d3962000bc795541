// Package optimize rewrites task graphs before execution. Its single pass,
// Columns, walks the consumer graph backward from the requested outputs,
// accumulates the minimal field set each read layer must supply, and
// rewrites those read layers to decode only that subset.
package optimize

import (
	"sort"
	"strings"

	"lazycol/internal/graph"
	"lazycol/internal/partition"
)

// req is the projection requirement flowing backward through a layer: the
// set of field paths its output must carry. all==true means "everything"
// and dominates any union.
type req struct {
	all    bool
	fields map[string]struct{}
}

func allReq() *req { return &req{all: true} }

func fieldsReq(fields []string) *req {
	r := &req{fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		r.fields[f] = struct{}{}
	}
	return r
}

func (r *req) union(other *req) *req {
	if r == nil {
		return other
	}
	if other == nil {
		return r
	}
	if r.all || other.all {
		return allReq()
	}
	out := &req{fields: make(map[string]struct{}, len(r.fields)+len(other.fields))}
	for f := range r.fields {
		out.fields[f] = struct{}{}
	}
	for f := range other.fields {
		out.fields[f] = struct{}{}
	}
	return out
}

// sorted returns the requirement as a normalized, sorted path list: paths
// covered by a shorter ancestor path are dropped ("goals" subsumes
// "goals.total").
func (r *req) sorted() []string {
	paths := make([]string, 0, len(r.fields))
	for f := range r.fields {
		paths = append(paths, f)
	}
	sort.Strings(paths)
	out := paths[:0]
	for _, p := range paths {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if p == prev || strings.HasPrefix(p, prev+".") {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// Columns returns a sibling graph in which every read layer reachable from
// the requested layers decodes only the fields proven necessary downstream.
// Read layers with no established restriction keep their "all fields"
// default. The input graph is never mutated; row counts, partition counts,
// and partition boundaries are untouched.
//
// The walk is a single backward pass over the (acyclic by construction)
// layer dependency graph: no fixpoint iteration is needed.
func Columns(g *graph.Graph, keys []string) *graph.Graph {
	reqs := walk(g, keys)

	repl := make(map[string]*graph.Layer)
	for name, r := range reqs {
		l, ok := g.Layer(name)
		if !ok || l.Kind != graph.KindRead {
			continue
		}
		if r == nil || r.all {
			continue
		}
		cols := r.sorted()
		nl := *l
		nl.Columns = cols
		nl.Specs = make([]partition.Spec, len(l.Specs))
		for i, s := range l.Specs {
			nl.Specs[i] = s.WithFields(cols)
		}
		repl[name] = &nl
	}
	if len(repl) == 0 {
		return g
	}
	return g.Replace(repl)
}

// NecessaryColumns reports, per read layer, the field paths downstream
// consumers of the requested layers actually need. A nil slice means the
// layer keeps its "all fields" default. The graph is only inspected, never
// executed or modified.
func NecessaryColumns(g *graph.Graph, keys []string) map[string][]string {
	reqs := walk(g, keys)
	out := make(map[string][]string)
	for _, name := range g.Order() {
		l, ok := g.Layer(name)
		if !ok || l.Kind != graph.KindRead {
			continue
		}
		r, seen := reqs[name]
		if !seen || r == nil || r.all {
			out[name] = nil
			continue
		}
		out[name] = r.sorted()
	}
	return out
}

// walk performs the backward reachability pass and returns the accumulated
// requirement per layer. Requested layers are seeded unrestricted: their
// whole output is wanted. Requirements flowing to a shared predecessor from
// several consumers are unioned.
func walk(g *graph.Graph, keys []string) map[string]*req {
	reqs := make(map[string]*req, g.Len())
	for _, k := range keys {
		reqs[k] = reqs[k].union(allReq())
	}

	order := g.Order()
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		r, wanted := reqs[name]
		if !wanted {
			// Nothing downstream consumes this layer and it was not
			// requested; it contributes no requirements.
			continue
		}
		l, _ := g.Layer(name)
		for _, dep := range l.Deps {
			reqs[dep] = reqs[dep].union(inputReq(l, r))
		}
	}
	return reqs
}

// inputReq applies the per-kind projection rule: given what a layer must
// produce, what must its input carry.
func inputReq(l *graph.Layer, r *req) *req {
	switch l.Kind {
	case graph.KindSelect:
		// The output carries exactly the selected fields; an unrestricted
		// consumer therefore needs just the selection, and a restricted one
		// needs its own subset.
		if r.all {
			return fieldsReq(l.Fields)
		}
		return &req{fields: r.fields}
	case graph.KindField:
		f := l.Fields[0]
		if r.all {
			return fieldsReq([]string{f})
		}
		nested := make([]string, 0, len(r.fields))
		for p := range r.fields {
			nested = append(nested, f+"."+p)
		}
		if len(nested) == 0 {
			nested = []string{f}
		}
		return fieldsReq(nested)
	case graph.KindReduce:
		if len(l.Fields) > 0 {
			return fieldsReq(l.Fields[:1])
		}
		return &req{all: r.all, fields: r.fields}
	default:
		// Map and Concat are declared structure-preserving pass-throughs;
		// read layers have no deps.
		return &req{all: r.all, fields: r.fields}
	}
}
