// Package graph models the deferred computation behind a lazy collection: a
// set of named layers, each a group of per-partition tasks plus declared
// dependencies on earlier layers.
//
// Graphs are immutable. Appending an operation builds a new Graph sharing
// the existing layer values; the column optimizer likewise produces a
// sibling graph and never touches its input, so the original stays valid for
// repeated or divergent downstream branches. Layers are treated as frozen
// once added.
package graph

import (
	"context"
	"fmt"

	"lazycol/internal/partition"
	"lazycol/pkg/columnar"
)

// Kind enumerates the closed set of operation kinds. Every kind carries its
// own column-requirement rule in the optimizer; adding an operation means
// adding a variant here and its rule there, not subclassing.
type Kind uint8

const (
	// KindRead performs raw partition reads; the optimizer rewrites exactly
	// these layers.
	KindRead Kind = iota
	// KindSelect restricts rows to a field subset.
	KindSelect
	// KindField extracts a single field's values from each row.
	KindField
	// KindReduce collapses each row's list values to a scalar, optionally
	// extracting a field first.
	KindReduce
	// KindMap applies a caller-supplied, structure-preserving per-partition
	// function.
	KindMap
	// KindConcat stitches the partitions of several inputs end to end.
	KindConcat
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindSelect:
		return "select"
	case KindField:
		return "field"
	case KindReduce:
		return "reduce"
	case KindMap:
		return "map"
	default:
		return "concat"
	}
}

// ReadFunc materializes one partition from its spec. It must be a pure
// function of the spec.
type ReadFunc func(ctx context.Context, spec partition.Spec) (*columnar.Array, error)

// ApplyFunc is the body of a map layer.
type ApplyFunc func(ctx context.Context, in *columnar.Array) (*columnar.Array, error)

// Layer is one named group of per-partition tasks. Fields are set according
// to Kind and frozen once the layer joins a graph.
type Layer struct {
	Name   string
	Kind   Kind
	Deps   []string
	NTasks int

	// Read layers.
	Specs   []partition.Spec
	Read    ReadFunc
	Columns []string // projection installed by the optimizer; nil = all

	// Select: the selected fields. Field/Reduce: Fields[0] when a field is
	// extracted first.
	Fields []string

	// Reduce layers.
	Reduce columnar.ReduceKind

	// Map layers.
	Apply ApplyFunc
}

// Graph is an immutable layer set with a stable insertion order.
type Graph struct {
	layers map[string]*Layer
	order  []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{layers: map[string]*Layer{}}
}

// WithLayer returns a new graph extended by l. The receiver is unchanged.
// Layer names are unique within a graph and dependencies must already be
// present, which also keeps every graph acyclic by construction.
func (g *Graph) WithLayer(l *Layer) (*Graph, error) {
	if l.Name == "" {
		return nil, fmt.Errorf("graph: layer name must not be empty")
	}
	if _, ok := g.layers[l.Name]; ok {
		return nil, fmt.Errorf("graph: duplicate layer %q", l.Name)
	}
	for _, d := range l.Deps {
		if _, ok := g.layers[d]; !ok {
			return nil, fmt.Errorf("graph: layer %q depends on unknown layer %q", l.Name, d)
		}
	}
	if l.Kind == KindRead {
		if l.NTasks != len(l.Specs) {
			return nil, fmt.Errorf("graph: read layer %q has %d specs for %d tasks", l.Name, len(l.Specs), l.NTasks)
		}
		if l.Read == nil {
			return nil, fmt.Errorf("graph: read layer %q has no read function", l.Name)
		}
	}
	layers := make(map[string]*Layer, len(g.layers)+1)
	for k, v := range g.layers {
		layers[k] = v
	}
	layers[l.Name] = l
	order := make([]string, 0, len(g.order)+1)
	order = append(order, g.order...)
	order = append(order, l.Name)
	return &Graph{layers: layers, order: order}, nil
}

// Layer returns the named layer.
func (g *Graph) Layer(name string) (*Layer, bool) {
	l, ok := g.layers[name]
	return l, ok
}

// Order returns layer names in insertion order, which is a topological
// order because dependencies must exist at insertion time.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Len returns the number of layers.
func (g *Graph) Len() int { return len(g.order) }

// Replace returns a new graph where the named layers are swapped for the
// given values, keeping order and all other layers. It is the primitive the
// optimizer builds rewritten graphs with.
func (g *Graph) Replace(repl map[string]*Layer) *Graph {
	layers := make(map[string]*Layer, len(g.layers))
	for k, v := range g.layers {
		if r, ok := repl[k]; ok {
			layers[k] = r
		} else {
			layers[k] = v
		}
	}
	return &Graph{layers: layers, order: g.order}
}
