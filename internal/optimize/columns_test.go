package optimize

import (
	"context"
	"reflect"
	"testing"

	"lazycol/internal/graph"
	"lazycol/internal/partition"
	"lazycol/pkg/columnar"
)

func noopRead(context.Context, partition.Spec) (*columnar.Array, error) {
	return columnar.FromValues(nil)
}

const readName = "from-json-000000000000"

func baseGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New().WithLayer(&graph.Layer{
		Name:   readName,
		Kind:   graph.KindRead,
		NTasks: 2,
		Specs:  make([]partition.Spec, 2),
		Read:   noopRead,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func withLayer(t *testing.T, g *graph.Graph, l *graph.Layer) *graph.Graph {
	t.Helper()
	g2, err := g.WithLayer(l)
	if err != nil {
		t.Fatal(err)
	}
	return g2
}

func readColumns(t *testing.T, g *graph.Graph) []string {
	t.Helper()
	l, ok := g.Layer(readName)
	if !ok {
		t.Fatal("read layer missing")
	}
	return l.Columns
}

func TestColumns_UnrestrictedKeepsAllFields(t *testing.T) {
	t.Parallel()

	g := baseGraph(t)
	out := Columns(g, []string{readName})
	if cols := readColumns(t, out); cols != nil {
		t.Fatalf("Columns = %v, want nil (all fields)", cols)
	}
}

func TestColumns_SelectInstallsFields(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "select-a",
		Kind:   graph.KindSelect,
		Deps:   []string{readName},
		Fields: []string{"name", "goals"},
	})

	out := Columns(g, []string{"select-a"})
	if cols := readColumns(t, out); !reflect.DeepEqual(cols, []string{"goals", "name"}) {
		t.Fatalf("Columns = %v, want [goals name]", cols)
	}

	// Specs carry the projection too.
	l, _ := out.Layer(readName)
	for i, s := range l.Specs {
		if !reflect.DeepEqual(s.Fields, []string{"goals", "name"}) {
			t.Fatalf("spec %d fields = %v", i, s.Fields)
		}
	}

	// The input graph is untouched.
	if cols := readColumns(t, g); cols != nil {
		t.Fatal("optimizer mutated its input graph")
	}
}

// TestColumns_DownstreamDropNarrowsSelection is the projection-correctness
// property: selecting {"name","goals"} and then never touching name again
// leaves goals as the sole field the leaf task reads.
func TestColumns_DownstreamDropNarrowsSelection(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "select-a",
		Kind:   graph.KindSelect,
		Deps:   []string{readName},
		Fields: []string{"name", "goals"},
	})
	g = withLayer(t, g, &graph.Layer{
		Name:   "field-goals",
		Kind:   graph.KindField,
		Deps:   []string{"select-a"},
		Fields: []string{"goals"},
	})

	out := Columns(g, []string{"field-goals"})
	if cols := readColumns(t, out); !reflect.DeepEqual(cols, []string{"goals"}) {
		t.Fatalf("Columns = %v, want [goals]", cols)
	}
}

func TestColumns_ReduceRequiresOnlyItsField(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "max-goals",
		Kind:   graph.KindReduce,
		Deps:   []string{readName},
		Fields: []string{"goals"},
		Reduce: columnar.ReduceMax,
	})

	out := Columns(g, []string{"max-goals"})
	if cols := readColumns(t, out); !reflect.DeepEqual(cols, []string{"goals"}) {
		t.Fatalf("Columns = %v, want [goals]", cols)
	}
}

func TestColumns_FieldPrefixesNestedRequirements(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "field-pts",
		Kind:   graph.KindField,
		Deps:   []string{readName},
		Fields: []string{"pts"},
	})
	g = withLayer(t, g, &graph.Layer{
		Name:   "select-x",
		Kind:   graph.KindSelect,
		Deps:   []string{"field-pts"},
		Fields: []string{"x"},
	})

	out := Columns(g, []string{"select-x"})
	if cols := readColumns(t, out); !reflect.DeepEqual(cols, []string{"pts.x"}) {
		t.Fatalf("Columns = %v, want [pts.x]", cols)
	}
}

func TestColumns_SharedConsumersUnion(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "select-a",
		Kind:   graph.KindSelect,
		Deps:   []string{readName},
		Fields: []string{"name"},
	})
	g = withLayer(t, g, &graph.Layer{
		Name:   "max-goals",
		Kind:   graph.KindReduce,
		Deps:   []string{readName},
		Fields: []string{"goals"},
		Reduce: columnar.ReduceMax,
	})

	out := Columns(g, []string{"select-a", "max-goals"})
	if cols := readColumns(t, out); !reflect.DeepEqual(cols, []string{"goals", "name"}) {
		t.Fatalf("Columns = %v, want [goals name]", cols)
	}
}

func TestColumns_UnrestrictedConsumerDominates(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "select-a",
		Kind:   graph.KindSelect,
		Deps:   []string{readName},
		Fields: []string{"name"},
	})

	// Requesting the read layer itself alongside the selection wants every
	// field, which dominates the union.
	out := Columns(g, []string{"select-a", readName})
	if cols := readColumns(t, out); cols != nil {
		t.Fatalf("Columns = %v, want nil (all fields)", cols)
	}
}

func TestColumns_MapPassesThrough(t *testing.T) {
	t.Parallel()

	identity := func(_ context.Context, in *columnar.Array) (*columnar.Array, error) { return in, nil }
	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "select-a",
		Kind:   graph.KindSelect,
		Deps:   []string{readName},
		Fields: []string{"goals"},
	})
	g = withLayer(t, g, &graph.Layer{
		Name:  "map-x",
		Kind:  graph.KindMap,
		Deps:  []string{"select-a"},
		Apply: identity,
	})

	out := Columns(g, []string{"map-x"})
	if cols := readColumns(t, out); !reflect.DeepEqual(cols, []string{"goals"}) {
		t.Fatalf("Columns = %v, want [goals]", cols)
	}
}

func TestColumns_ParentPathSubsumesChild(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "select-a",
		Kind:   graph.KindSelect,
		Deps:   []string{readName},
		Fields: []string{"pts", "pts.x", "name"},
	})

	out := Columns(g, []string{"select-a"})
	if cols := readColumns(t, out); !reflect.DeepEqual(cols, []string{"name", "pts"}) {
		t.Fatalf("Columns = %v, want [name pts]", cols)
	}
}

func TestNecessaryColumns(t *testing.T) {
	t.Parallel()

	g := withLayer(t, baseGraph(t), &graph.Layer{
		Name:   "select-a",
		Kind:   graph.KindSelect,
		Deps:   []string{readName},
		Fields: []string{"goals"},
	})

	got := NecessaryColumns(g, []string{"select-a"})
	want := map[string][]string{readName: {"goals"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NecessaryColumns = %v, want %v", got, want)
	}

	// Unrestricted request reports nil for the read layer.
	got = NecessaryColumns(g, []string{readName})
	if cols, ok := got[readName]; !ok || cols != nil {
		t.Fatalf("NecessaryColumns(unrestricted) = %v", got)
	}
}
