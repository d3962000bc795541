package write

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"lazycol/internal/codec"
	"lazycol/pkg/columnar"
	"lazycol/pkg/records"
)

func chunk(t *testing.T, recs ...records.Record) *columnar.Array {
	t.Helper()
	a, err := columnar.FromRecords(recs)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func rec(name string, id int) records.Record {
	return records.Record{"name": name, "id": float64(id)}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	sort.Strings(out)
	return out
}

func TestPartitions_PlainNaming(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	chunks := []*columnar.Array{
		chunk(t, rec("ada", 1)),
		chunk(t, rec("bob", 2)),
		chunk(t, rec("cyd", 3)),
	}
	if err := Partitions(context.Background(), dir, chunks, Options{}); err != nil {
		t.Fatalf("Partitions: %v", err)
	}

	want := []string{"part_0000.json", "part_0001.json", "part_0002.json"}
	if got := listDir(t, dir); len(got) != 3 || got[0] != want[0] || got[2] != want[2] {
		t.Fatalf("files = %v, want %v", got, want)
	}
}

func TestPartitions_CompressedRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range codec.Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := filepath.Join(t.TempDir(), "out")
			chunks := []*columnar.Array{
				chunk(t, rec("ada", 1), rec("bob", 2)),
				chunk(t, rec("cyd", 3)),
			}
			if err := Partitions(context.Background(), dir, chunks, Options{Compression: name}); err != nil {
				t.Fatalf("Partitions: %v", err)
			}

			c, err := codec.Lookup(name)
			if err != nil {
				t.Fatal(err)
			}
			files := listDir(t, dir)
			if len(files) != 2 {
				t.Fatalf("files = %v, want 2 entries", files)
			}
			for i, f := range files {
				if want := "part_000" + string(rune('0'+i)) + ".json" + c.Suffix(); f != want {
					t.Fatalf("file %d = %s, want %s", i, f, want)
				}
				raw, err := os.Open(filepath.Join(dir, f))
				if err != nil {
					t.Fatal(err)
				}
				r, err := c.NewReader(raw)
				if err != nil {
					t.Fatalf("NewReader(%s): %v", f, err)
				}
				body, err := io.ReadAll(r)
				r.Close()
				raw.Close()
				if err != nil {
					t.Fatal(err)
				}
				if len(body) == 0 || body[len(body)-1] != '\n' {
					t.Fatalf("partition %s body %q is not newline-delimited", f, body)
				}
			}
		})
	}
}

func TestPartName_WidensWithCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		i, n int
		want string
	}{
		{0, 1, "part_0000.json"},
		{2, 3, "part_0002.json"},
		{9999, 10000, "part_9999.json"},
		{42, 10001, "part_00042.json"},
		{10000, 10001, "part_10000.json"},
		{7, 200000, "part_000007.json"},
	}
	for _, tt := range tests {
		if got := partName(tt.i, tt.n); got != tt.want {
			t.Errorf("partName(%d, %d) = %s, want %s", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestPartitions_UnknownCodec(t *testing.T) {
	t.Parallel()

	err := Partitions(context.Background(), t.TempDir(), []*columnar.Array{chunk(t, rec("a", 1))}, Options{Compression: "lz77"})
	if err == nil {
		t.Fatal("unknown codec should fail before writing")
	}
}

func TestPartitions_IndependentFailures(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	// Pre-create the destination of partition 1 as a directory so its write
	// fails while the others succeed.
	if err := os.MkdirAll(filepath.Join(dir, "part_0001.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	chunks := []*columnar.Array{
		chunk(t, rec("ada", 1)),
		chunk(t, rec("bob", 2)),
		chunk(t, rec("cyd", 3)),
	}
	err := Partitions(context.Background(), dir, chunks, Options{})
	if err == nil {
		t.Fatal("write with a failing partition should report failure")
	}

	// The healthy partitions still landed.
	for _, f := range []string{"part_0000.json", "part_0002.json"} {
		if _, statErr := os.Stat(filepath.Join(dir, f)); statErr != nil {
			t.Errorf("partition %s missing after partial failure: %v", f, statErr)
		}
	}
}
