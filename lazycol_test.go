package lazycol

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"lazycol/internal/codec"
	"lazycol/pkg/columnar"
)

/*
 * End to end scenarios over the public surface: build a collection from
 * files on disk, derive restricted views, compute, and round-trip through
 * the JSON writer.
 */

var testFiles = map[string]string{
	"a.json": `{"name": "ada", "goals": [1, 2]}
{"name": "bob", "goals": [3]}
`,
	"b.json": `{"name": "cyd", "goals": []}
{"name": "dee", "goals": [4, 5, 6]}
`,
	"c.json": `{"name": "eve", "goals": [7]}
`,
}

func writeTestFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range testFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// decodeRows parses NDJSON the way the read path does, so expected values
// carry json.Number and compare cleanly against computed rows.
func decodeRows(t *testing.T, ndjson string) []any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(ndjson))
	dec.UseNumber()
	var out []any
	for dec.More() {
		var v any
		if err := dec.Decode(&v); err != nil {
			t.Fatal(err)
		}
		out = append(out, v)
	}
	return out
}

func allRows(t *testing.T) []any {
	t.Helper()
	var rows []any
	for _, name := range []string{"a.json", "b.json", "c.json"} {
		rows = append(rows, decodeRows(t, testFiles[name])...)
	}
	return rows
}

func mustFromJSON(t *testing.T, pattern string, opt ReadOptions) *Collection {
	t.Helper()
	c, err := FromJSON(context.Background(), pattern, opt)
	if err != nil {
		t.Fatalf("FromJSON(%s): %v", pattern, err)
	}
	return c
}

func TestFromJSON_Glob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	c := mustFromJSON(t, filepath.Join(dir, "*.json"), ReadOptions{})

	if c.NPartitions() != 3 {
		t.Fatalf("NPartitions = %d, want 3 (one per file)", c.NPartitions())
	}

	form, err := c.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if got, want := form.String(), "{goals: [int64], name: string}"; got != want {
		t.Errorf("form = %s, want %s", got, want)
	}
	fields, err := c.Fields(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fields, []string{"goals", "name"}) {
		t.Errorf("Fields = %v", fields)
	}

	arr, err := c.Compute(ctx)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !reflect.DeepEqual(arr.Values(), allRows(t)) {
		t.Errorf("computed rows = %v", arr.Values())
	}
}

func TestFromJSONPaths_OrderPreserved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	paths := []string{
		filepath.Join(dir, "c.json"),
		filepath.Join(dir, "a.json"),
	}
	c, err := FromJSONPaths(ctx, paths, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	arr, err := c.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := append(decodeRows(t, testFiles["c.json"]), decodeRows(t, testFiles["a.json"])...)
	if !reflect.DeepEqual(arr.Values(), want) {
		t.Errorf("rows = %v, want c.json before a.json", arr.Values())
	}
}

func TestFromJSONBuffers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := FromJSONBuffers(ctx, []NamedBuffer{
		{Name: "one", Data: []byte(testFiles["a.json"])},
		{Name: "two", Data: []byte(testFiles["c.json"])},
	}, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c.NPartitions() != 2 {
		t.Fatalf("NPartitions = %d, want 2", c.NPartitions())
	}
	arr, err := c.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := append(decodeRows(t, testFiles["a.json"]), decodeRows(t, testFiles["c.json"])...)
	if !reflect.DeepEqual(arr.Values(), want) {
		t.Errorf("rows = %v", arr.Values())
	}
}

func TestBytePartitionedMatchesWholeFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	pattern := filepath.Join(dir, "*.json")

	whole := mustFromJSON(t, pattern, ReadOptions{})
	wantArr, err := whole.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}

	for _, blocksize := range []int64{8, 24, 100} {
		split := mustFromJSON(t, pattern, ReadOptions{
			Blocksize: blocksize,
			Delimiter: []byte("\n"),
		})
		arr, err := split.Compute(ctx)
		if err != nil {
			t.Fatalf("blocksize %d: %v", blocksize, err)
		}
		if !arr.Equal(wantArr) {
			t.Errorf("blocksize %d: split read diverges from whole-file read", blocksize)
		}
	}
}

func TestLinePartitioned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	c := mustFromJSON(t, filepath.Join(dir, "a.json"), ReadOptions{LinesPerPartition: 1})
	if c.NPartitions() != 2 {
		t.Fatalf("NPartitions = %d, want 2", c.NPartitions())
	}
	arr, err := c.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(arr.Values(), decodeRows(t, testFiles["a.json"])) {
		t.Errorf("rows = %v", arr.Values())
	}
}

func TestSelectFieldReduce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	c := mustFromJSON(t, filepath.Join(dir, "*.json"), ReadOptions{})

	sel, err := c.SelectFields("name", "goals")
	if err != nil {
		t.Fatal(err)
	}
	goals, err := sel.Field("goals")
	if err != nil {
		t.Fatal(err)
	}
	form, err := goals.Meta(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := form.String(); got != "[int64]" {
		t.Errorf("field form = %s, want [int64]", got)
	}

	maxed, err := goals.Reduce(columnar.ReduceMax, "")
	if err != nil {
		t.Fatal(err)
	}
	arr, err := maxed.Compute(ctx)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := []any{
		json.Number("2"), json.Number("3"),
		nil, json.Number("6"),
		json.Number("7"),
	}
	if !reflect.DeepEqual(arr.Values(), want) {
		t.Errorf("max per row = %v, want %v", arr.Values(), want)
	}

	// The parent chain stays usable after deriving.
	if _, err := c.Compute(ctx); err != nil {
		t.Errorf("original collection broken by derived ops: %v", err)
	}
}

func TestReduceWithFieldShorthand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	c := mustFromJSON(t, filepath.Join(dir, "a.json"), ReadOptions{})

	counted, err := c.Reduce(columnar.ReduceCount, "goals")
	if err != nil {
		t.Fatal(err)
	}
	arr, err := counted.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{json.Number("2"), json.Number("1")}
	if !reflect.DeepEqual(arr.Values(), want) {
		t.Errorf("counts = %v, want %v", arr.Values(), want)
	}
}

func TestNecessaryColumns(t *testing.T) {
	t.Parallel()

	dir := writeTestFiles(t)
	c := mustFromJSON(t, filepath.Join(dir, "*.json"), ReadOptions{})

	// An unrestricted collection needs every field.
	for name, cols := range c.NecessaryColumns() {
		if cols != nil {
			t.Errorf("layer %s: columns = %v, want nil (all)", name, cols)
		}
	}

	// Selecting then extracting drops the selected-but-unused field.
	sel, err := c.SelectFields("name", "goals")
	if err != nil {
		t.Fatal(err)
	}
	goals, err := sel.Field("goals")
	if err != nil {
		t.Fatal(err)
	}
	nc := goals.NecessaryColumns()
	if len(nc) != 1 {
		t.Fatalf("NecessaryColumns = %v, want one read layer", nc)
	}
	for _, cols := range nc {
		if !reflect.DeepEqual(cols, []string{"goals"}) {
			t.Errorf("columns = %v, want [goals]", cols)
		}
	}
}

func TestMapPartitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	c := mustFromJSON(t, filepath.Join(dir, "c.json"), ReadOptions{})

	upper, err := c.MapPartitions("upper-names", func(_ context.Context, a *columnar.Array) (*columnar.Array, error) {
		out := make([]any, a.Len())
		for i, v := range a.Values() {
			row := v.(map[string]any)
			clone := make(map[string]any, len(row))
			for k, rv := range row {
				clone[k] = rv
			}
			clone["name"] = strings.ToUpper(clone["name"].(string))
			out[i] = clone
		}
		return columnar.FromValues(out)
	})
	if err != nil {
		t.Fatal(err)
	}

	arr, err := upper.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	row := arr.Values()[0].(map[string]any)
	if row["name"] != "EVE" {
		t.Errorf("mapped name = %v, want EVE", row["name"])
	}

	// Structure-preserving maps keep the parent's form.
	pf, _ := c.Meta(ctx)
	mf, err := upper.Meta(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !mf.Equal(pf) {
		t.Errorf("map changed form: %s vs %s", mf, pf)
	}
}

func TestConcat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	first := mustFromJSON(t, filepath.Join(dir, "a.json"), ReadOptions{})
	second := mustFromJSON(t, filepath.Join(dir, "b.json"), ReadOptions{})

	cat, err := Concat(first, second)
	if err != nil {
		t.Fatal(err)
	}
	if cat.NPartitions() != 2 {
		t.Fatalf("NPartitions = %d, want 2", cat.NPartitions())
	}
	arr, err := cat.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := append(decodeRows(t, testFiles["a.json"]), decodeRows(t, testFiles["b.json"])...)
	if !reflect.DeepEqual(arr.Values(), want) {
		t.Errorf("rows = %v", arr.Values())
	}

	// Concatenating a collection with a derived view of itself shares the
	// underlying read layer.
	sel, err := first.SelectFields("name")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Concat(first, sel); err != nil {
		t.Fatalf("concat over shared ancestry: %v", err)
	}
}

func TestConcat_DuplicateMember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	first := mustFromJSON(t, filepath.Join(dir, "a.json"), ReadOptions{})

	cat, err := Concat(first, first)
	if err != nil {
		t.Fatal(err)
	}
	if cat.NPartitions() != 2 {
		t.Fatalf("NPartitions = %d, want 2", cat.NPartitions())
	}
	arr, err := cat.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rows := decodeRows(t, testFiles["a.json"])
	want := append(append([]any(nil), rows...), rows...)
	if !reflect.DeepEqual(arr.Values(), want) {
		t.Errorf("rows = %v, want a.json twice", arr.Values())
	}
}

func TestKnownMetaSkipsSampling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeTestFiles(t)
	known := columnar.Form{
		Kind: columnar.KindRecord,
		Fields: []columnar.Field{
			{Name: "goals", Form: columnar.Form{Kind: columnar.KindList, Elem: &columnar.Form{Kind: columnar.KindInt}}},
			{Name: "name", Form: columnar.Form{Kind: columnar.KindString}},
		},
	}
	c := mustFromJSON(t, filepath.Join(dir, "*.json"), ReadOptions{Meta: &known})
	form, err := c.Meta(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !form.Equal(known) {
		t.Errorf("Meta = %s, want supplied form", form)
	}
}

func TestToJSONRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := writeTestFiles(t)
	orig := mustFromJSON(t, filepath.Join(src, "*.json"), ReadOptions{})
	origArr, err := orig.Compute(ctx)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range append([]string{""}, codec.Names()...) {
		name := name
		label := name
		if label == "" {
			label = "plain"
		}
		t.Run(label, func(t *testing.T) {
			t.Parallel()

			out := filepath.Join(t.TempDir(), "out")
			if err := orig.ToJSON(ctx, out, WriteOptions{Compression: name}); err != nil {
				t.Fatalf("ToJSON: %v", err)
			}

			back := mustFromJSON(t, filepath.Join(out, "part_*"), ReadOptions{})
			if back.NPartitions() != orig.NPartitions() {
				t.Errorf("NPartitions = %d, want %d", back.NPartitions(), orig.NPartitions())
			}
			backArr, err := back.Compute(ctx)
			if err != nil {
				t.Fatalf("Compute after round trip: %v", err)
			}
			if !backArr.Equal(origArr) {
				t.Errorf("round trip through %q changed the data", label)
			}
			bf, err := back.Meta(ctx)
			if err != nil {
				t.Fatal(err)
			}
			of, _ := orig.Meta(ctx)
			if !bf.Equal(of) {
				t.Errorf("round trip form = %s, want %s", bf, of)
			}
		})
	}
}

func TestFromJSON_NoMatches(t *testing.T) {
	t.Parallel()

	_, err := FromJSON(context.Background(), filepath.Join(t.TempDir(), "*.json"), ReadOptions{})
	if err == nil {
		t.Fatal("pattern matching nothing should fail")
	}
}

func TestEmptyInputLists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, err := FromJSONPaths(ctx, nil, ReadOptions{}); err == nil {
		t.Error("empty path list should fail")
	}
	if _, err := FromJSONBuffers(ctx, nil, ReadOptions{}); err == nil {
		t.Error("empty buffer list should fail")
	}
}
