package lazycol

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lazycol/internal/engine"
	"lazycol/internal/graph"
	"lazycol/internal/optimize"
	"lazycol/pkg/columnar"
)

// Collection is a lazy, partitioned columnar dataset. It owns its task
// graph exclusively; appending an operation builds a new Collection over a
// new graph, and the original stays valid for divergent downstream
// branches.
//
// The form is derived lazily on first need and cached per collection
// instance. Derived collections compute their form from the parent's
// without any I/O of their own.
type Collection struct {
	g           *graph.Graph
	key         string
	npartitions int

	metaFn func(ctx context.Context) (columnar.Form, error)

	mu       sync.Mutex
	meta     columnar.Form
	metaDone bool
	metaErr  error

	parallelism int
}

// NPartitions returns the partition count.
func (c *Collection) NPartitions() int { return c.npartitions }

// Graph exposes the underlying task graph for inspection.
func (c *Collection) Graph() *graph.Graph { return c.g }

// Key returns the name of the layer holding this collection's output.
func (c *Collection) Key() string { return c.key }

// Meta returns the collection's form, sampling the first source on first
// call and caching the result. It never triggers execution of the graph.
func (c *Collection) Meta(ctx context.Context) (columnar.Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.metaDone {
		c.meta, c.metaErr = c.metaFn(ctx)
		c.metaDone = true
	}
	return c.meta, c.metaErr
}

// Fields returns the top-level field names of the collection's form.
func (c *Collection) Fields(ctx context.Context) ([]string, error) {
	form, err := c.Meta(ctx)
	if err != nil {
		return nil, err
	}
	return form.FieldNames(), nil
}

// WithParallelism returns a shallow variant whose Compute caps concurrent
// partition evaluation at n. Zero restores the default (GOMAXPROCS).
func (c *Collection) WithParallelism(n int) *Collection {
	out := c.derive(c.g, c.key, c.npartitions, c.metaFn)
	out.parallelism = n
	return out
}

// derive builds a child collection sharing this one's settings.
func (c *Collection) derive(g *graph.Graph, key string, nparts int, metaFn func(context.Context) (columnar.Form, error)) *Collection {
	return &Collection{
		g:           g,
		key:         key,
		npartitions: nparts,
		metaFn:      metaFn,
		parallelism: c.parallelism,
	}
}

// SelectFields restricts rows to the given field paths. Paths may be
// dot-separated for nested fields.
func (c *Collection) SelectFields(fields ...string) (*Collection, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("lazycol: select needs at least one field")
	}
	fields = append([]string(nil), fields...)
	name := c.opName("select", fields...)
	g, err := c.g.WithLayer(&graph.Layer{
		Name:   name,
		Kind:   graph.KindSelect,
		Deps:   []string{c.key},
		Fields: fields,
	})
	if err != nil {
		return nil, err
	}
	parent := c
	return c.derive(g, name, c.npartitions, func(ctx context.Context) (columnar.Form, error) {
		form, err := parent.Meta(ctx)
		if err != nil {
			return columnar.Form{}, err
		}
		return form.Project(fields)
	}), nil
}

// Field extracts the named top-level field from each row.
func (c *Collection) Field(field string) (*Collection, error) {
	name := c.opName("field", field)
	g, err := c.g.WithLayer(&graph.Layer{
		Name:   name,
		Kind:   graph.KindField,
		Deps:   []string{c.key},
		Fields: []string{field},
	})
	if err != nil {
		return nil, err
	}
	parent := c
	return c.derive(g, name, c.npartitions, func(ctx context.Context) (columnar.Form, error) {
		form, err := parent.Meta(ctx)
		if err != nil {
			return columnar.Form{}, err
		}
		sub, ok := form.FieldForm(field)
		if !ok {
			return columnar.Form{}, &columnar.FormError{Path: field, Msg: "no such field"}
		}
		return sub, nil
	}), nil
}

// Reduce collapses each row's list values to a scalar. A non-empty field
// extracts that field first, so c.Reduce(columnar.ReduceMax, "goals") is
// shorthand for c.Field("goals") followed by the row-wise max.
func (c *Collection) Reduce(kind columnar.ReduceKind, field string) (*Collection, error) {
	var fields []string
	if field != "" {
		fields = []string{field}
	}
	name := c.opName(kind.String(), field)
	g, err := c.g.WithLayer(&graph.Layer{
		Name:   name,
		Kind:   graph.KindReduce,
		Deps:   []string{c.key},
		Fields: fields,
		Reduce: kind,
	})
	if err != nil {
		return nil, err
	}
	parent := c
	return c.derive(g, name, c.npartitions, func(ctx context.Context) (columnar.Form, error) {
		form, err := parent.Meta(ctx)
		if err != nil {
			return columnar.Form{}, err
		}
		if field != "" {
			sub, ok := form.FieldForm(field)
			if !ok {
				return columnar.Form{}, &columnar.FormError{Path: field, Msg: "no such field"}
			}
			form = sub
		}
		return reducedForm(form, kind), nil
	}), nil
}

// MapPartitions applies a structure-preserving function to each partition.
// The label keys the new layer's name; fn must keep rows assignable to the
// collection's form.
func (c *Collection) MapPartitions(label string, fn graph.ApplyFunc) (*Collection, error) {
	if fn == nil {
		return nil, fmt.Errorf("lazycol: map needs a function")
	}
	name := c.opName(label)
	g, err := c.g.WithLayer(&graph.Layer{
		Name:  name,
		Kind:  graph.KindMap,
		Deps:  []string{c.key},
		Apply: fn,
	})
	if err != nil {
		return nil, err
	}
	return c.derive(g, name, c.npartitions, c.metaFn), nil
}

// Concat stitches collections end to end, partitions in argument order.
// Forms of all members must merge cleanly. A collection may appear more
// than once; its partitions repeat in the output and are read once per
// appearance.
func Concat(cs ...*Collection) (*Collection, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("lazycol: concat needs at least one collection")
	}
	if len(cs) == 1 {
		return cs[0], nil
	}

	// Merge the member graphs. Shared ancestry keeps identical layer
	// values under identical names, so collisions are resolved by keeping
	// the first occurrence.
	g := graph.New()
	deps := make([]string, len(cs))
	nparts := 0
	var err error
	for i, m := range cs {
		deps[i] = m.key
		nparts += m.npartitions
		for _, lname := range m.g.Order() {
			if _, ok := g.Layer(lname); ok {
				continue
			}
			l, _ := m.g.Layer(lname)
			g, err = g.WithLayer(l)
			if err != nil {
				return nil, err
			}
		}
	}

	name := graph.LayerName("concat", graph.Token(deps...))
	g, err = g.WithLayer(&graph.Layer{
		Name: name,
		Kind: graph.KindConcat,
		Deps: deps,
	})
	if err != nil {
		return nil, err
	}

	members := cs
	out := cs[0].derive(g, name, nparts, func(ctx context.Context) (columnar.Form, error) {
		form, err := members[0].Meta(ctx)
		if err != nil {
			return columnar.Form{}, err
		}
		for _, m := range members[1:] {
			mf, err := m.Meta(ctx)
			if err != nil {
				return columnar.Form{}, err
			}
			form, err = columnar.Merge(form, mf)
			if err != nil {
				return columnar.Form{}, err
			}
		}
		return form, nil
	})
	out.npartitions = nparts
	return out, nil
}

// NecessaryColumns reports, per read layer, the fields this collection's
// output actually requires, without executing anything. nil means the read
// layer would decode all fields.
func (c *Collection) NecessaryColumns() map[string][]string {
	return optimize.NecessaryColumns(c.g, []string{c.key})
}

// Compute runs the projection pass, executes the rewritten graph, and
// concatenates the partitions in order.
func (c *Collection) Compute(ctx context.Context) (*columnar.Array, error) {
	chunks, err := c.ComputePartitions(ctx)
	if err != nil {
		return nil, err
	}
	arr, err := columnar.Concat(chunks)
	if err != nil {
		return nil, fmt.Errorf("lazycol: %w", err)
	}
	return arr, nil
}

// ComputePartitions is Compute without the final concatenation: one array
// per partition, in partition order.
func (c *Collection) ComputePartitions(ctx context.Context) ([]*columnar.Array, error) {
	g := optimize.Columns(c.g, []string{c.key})
	return engine.Compute(ctx, g, c.key, engine.Options{Parallelism: c.parallelism})
}

// opName builds the conventional layer name for an operation appended to
// this collection, deterministic in the parent layer and arguments.
func (c *Collection) opName(label string, args ...string) string {
	parts := append([]string{c.key, label}, args...)
	return graph.LayerName(label, graph.Token(strings.Join(parts, "\x00")))
}

// reducedForm is the scalar form produced by reducing a list-shaped form.
func reducedForm(form columnar.Form, kind columnar.ReduceKind) columnar.Form {
	if kind == columnar.ReduceCount {
		return columnar.Form{Kind: columnar.KindInt}
	}
	if form.Kind == columnar.KindList && form.Elem != nil {
		return *form.Elem
	}
	return columnar.Form{Kind: columnar.KindUnknown}
}
