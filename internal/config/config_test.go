package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// -----------------------------------------------------------------------------
// Job decoding tests
// -----------------------------------------------------------------------------
//
// These tests validate that the top-level Job JSON structure decodes into the
// intended Go struct graph. We prefer parsing from JSON strings here to keep
// tests hermetic and focused on the API surface rather than filesystem wiring.

func TestJob_DecodeRoundTrip(t *testing.T) {
	t.Parallel()

	const js = `{
	  "name": "points-by-day",
	  "input": { "pattern": "data/*.json", "one_obj_per_file": false },
	  "partitioning": { "blocksize": 65536, "delimiter": "\n" },
	  "sampling": { "force_by_lines": true, "sample_rows": 3 },
	  "output": { "dir": "out", "compression": "gzip", "parallelism": 4 },
	  "metrics": {
	    "backend": "prometheus",
	    "options": { "push_url": "http://localhost:9091", "tags": ["env:dev"] }
	  }
	}`

	var j Job
	if err := json.Unmarshal([]byte(js), &j); err != nil {
		t.Fatalf("json.Unmarshal(Job): %v", err)
	}

	if j.Name != "points-by-day" {
		t.Fatalf("name = %q, want points-by-day", j.Name)
	}
	if j.Input.Pattern != "data/*.json" || j.Input.OneObjPerFile {
		t.Fatalf("input decoded = %#v, want pattern=data/*.json one_obj_per_file=false", j.Input)
	}
	if j.Partitioning.Blocksize != 65536 || j.Partitioning.Delimiter != "\n" {
		t.Fatalf("partitioning decoded = %#v", j.Partitioning)
	}
	if !j.Sampling.ForceByLines || j.Sampling.SampleRows != 3 {
		t.Fatalf("sampling decoded = %#v", j.Sampling)
	}
	if j.Output.Dir != "out" || j.Output.Compression != "gzip" || j.Output.Parallelism != 4 {
		t.Fatalf("output decoded = %#v", j.Output)
	}
	if j.Metrics.Backend != "prometheus" {
		t.Fatalf("metrics.backend = %q, want prometheus", j.Metrics.Backend)
	}
	if got := j.Metrics.Options.String("push_url", ""); got != "http://localhost:9091" {
		t.Fatalf("metrics.options.push_url = %q", got)
	}
	if got := j.Metrics.Options.StringSlice("tags"); !reflect.DeepEqual(got, []string{"env:dev"}) {
		t.Fatalf("metrics.options.tags = %#v", got)
	}
}

func TestJob_MissingOptionsDecodesEmpty(t *testing.T) {
	t.Parallel()

	var j Job
	if err := json.Unmarshal([]byte(`{"metrics":{"backend":"datadog"}}`), &j); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if j.Metrics.Options == nil {
		t.Fatal("metrics.options should decode to a non-nil empty map")
	}
	if got := j.Metrics.Options.String("addr", "localhost:8125"); got != "localhost:8125" {
		t.Fatalf("default lookup = %q, want localhost:8125", got)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	const js = `{"name":"n","input":{"paths":["a.json"]},"output":{"dir":"out"}}`
	if err := os.WriteFile(path, []byte(js), 0o644); err != nil {
		t.Fatal(err)
	}

	j, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if j.Name != "n" || len(j.Input.Paths) != 1 || j.Output.Dir != "out" {
		t.Fatalf("Load = %#v", j)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("Load(missing) should fail")
	}
}

// -----------------------------------------------------------------------------
// Options helper tests
// -----------------------------------------------------------------------------

func TestOptions_TypedAccess(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":    "hello",
		"b":    true,
		"n":    float64(7),
		"list": []any{"a", "b", 3},
	}

	if got := o.String("s", "def"); got != "hello" {
		t.Errorf("String(s) = %q", got)
	}
	if got := o.String("missing", "def"); got != "def" {
		t.Errorf("String(missing) = %q", got)
	}
	if got := o.String("b", "def"); got != "def" {
		t.Errorf("String of bool should return default, got %q", got)
	}
	if !o.Bool("b", false) {
		t.Error("Bool(b) = false")
	}
	if got := o.Int("n", -1); got != 7 {
		t.Errorf("Int(n) = %d", got)
	}
	if got := o.Int("s", -1); got != -1 {
		t.Errorf("Int of string should return default, got %d", got)
	}
	if got := o.StringSlice("list"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("StringSlice(list) = %#v, non-strings should be skipped", got)
	}
	if got := o.StringSlice("missing"); got != nil {
		t.Errorf("StringSlice(missing) = %#v, want nil", got)
	}
}
