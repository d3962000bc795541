// Package engine executes task graphs locally. Evaluation is blockwise:
// each output partition is produced by walking its own chain of per-layer
// tasks, so partitions are independent and run concurrently.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"lazycol/internal/graph"
	"lazycol/internal/metrics"
	"lazycol/pkg/columnar"
)

// Options tune the local executor.
type Options struct {
	// Parallelism caps the number of partitions evaluated at once. Zero
	// means GOMAXPROCS.
	Parallelism int
}

// NTasks returns the partition count of the named layer. Concat layers sum
// their inputs; every other non-read layer is blockwise and inherits the
// count of its first dependency.
func NTasks(g *graph.Graph, name string) (int, error) {
	l, ok := g.Layer(name)
	if !ok {
		return 0, fmt.Errorf("engine: unknown layer %q", name)
	}
	switch l.Kind {
	case graph.KindRead:
		return l.NTasks, nil
	case graph.KindConcat:
		total := 0
		for _, dep := range l.Deps {
			n, err := NTasks(g, dep)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	default:
		if len(l.Deps) == 0 {
			return 0, fmt.Errorf("engine: layer %q has no dependencies", name)
		}
		return NTasks(g, l.Deps[0])
	}
}

// Compute evaluates the named layer and returns its partitions in order.
// The first task failure cancels the remaining tasks via the group context.
func Compute(ctx context.Context, g *graph.Graph, key string, opt Options) ([]*columnar.Array, error) {
	start := time.Now()
	out, err := compute(ctx, g, key, opt)
	metrics.RecordStage("compute", err, time.Since(start))
	if err == nil {
		metrics.RecordPartitions("computed", len(out))
	}
	return out, err
}

func compute(ctx context.Context, g *graph.Graph, key string, opt Options) ([]*columnar.Array, error) {
	n, err := NTasks(g, key)
	if err != nil {
		return nil, err
	}
	par := opt.Parallelism
	if par <= 0 {
		par = runtime.GOMAXPROCS(0)
	}

	out := make([]*columnar.Array, n)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(par)
	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			arr, err := evalTask(ctx, g, key, i)
			if err != nil {
				return err
			}
			out[i] = arr
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// evalTask produces partition i of the named layer. Chains are linear per
// partition index, so plain recursion suffices and nothing is memoized.
func evalTask(ctx context.Context, g *graph.Graph, name string, i int) (*columnar.Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, ok := g.Layer(name)
	if !ok {
		return nil, fmt.Errorf("engine: unknown layer %q", name)
	}

	switch l.Kind {
	case graph.KindRead:
		if i < 0 || i >= len(l.Specs) {
			return nil, fmt.Errorf("engine: layer %q has no task %d", name, i)
		}
		return l.Read(ctx, l.Specs[i])

	case graph.KindConcat:
		dep, local, err := concatTask(g, l, i)
		if err != nil {
			return nil, fmt.Errorf("engine: layer %q: %w", name, err)
		}
		return evalTask(ctx, g, dep, local)
	}

	in, err := evalTask(ctx, g, l.Deps[0], i)
	if err != nil {
		return nil, err
	}

	var arr *columnar.Array
	switch l.Kind {
	case graph.KindSelect:
		arr, err = selectRows(in, l.Fields)
	case graph.KindField:
		arr, err = in.Field(l.Fields[0])
	case graph.KindReduce:
		arr = in
		if len(l.Fields) > 0 {
			arr, err = in.Field(l.Fields[0])
		}
		if err == nil {
			arr, err = columnar.ReduceRows(arr, l.Reduce)
		}
	case graph.KindMap:
		arr, err = l.Apply(ctx, in)
	default:
		err = fmt.Errorf("unsupported kind %s", l.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: layer %q task %d: %w", name, i, err)
	}
	return arr, nil
}

// selectRows restricts rows to the given field paths at the record level.
// Paths absent from the input are skipped rather than rejected: the column
// optimizer may have narrowed the upstream read to a subset of the selected
// fields, and the read task already dropped the rest.
func selectRows(in *columnar.Array, fields []string) (*columnar.Array, error) {
	recs, err := in.Records()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(recs))
	for i, r := range recs {
		vals[i] = map[string]any(r.Project(fields))
	}
	return columnar.FromValues(vals)
}

// concatTask maps a concat layer's global task index to the owning
// dependency and its local index.
func concatTask(g *graph.Graph, l *graph.Layer, i int) (string, int, error) {
	rest := i
	for _, dep := range l.Deps {
		n, err := NTasks(g, dep)
		if err != nil {
			return "", 0, err
		}
		if rest < n {
			return dep, rest, nil
		}
		rest -= n
	}
	return "", 0, fmt.Errorf("no task %d", i)
}
