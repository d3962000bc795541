package json

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeAll(t *testing.T) {
	t.Parallel()

	const in = `{"id":1,"name":"a"}
{"id":2,"name":"b"}
{"id":3,"name":"c"}
`
	recs, err := DecodeAll(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("decoded %d records, want 3", len(recs))
	}
	if v, _ := recs[1].Get("name"); v != "b" {
		t.Fatalf("record 1 name = %v", v)
	}
	// Numbers must come back as json.Number, not float64.
	if v, _ := recs[0].Get("id"); v != json.Number("1") {
		t.Fatalf("record 0 id = %v (%T)", v, v)
	}
}

func TestDecodeAll_Bounded(t *testing.T) {
	t.Parallel()

	const in = `{"id":1}
{"id":2}
{"id":3}
`
	recs, err := DecodeAll(strings.NewReader(in), 2)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("decoded %d records, want 2", len(recs))
	}
}

func TestDecodeAll_Empty(t *testing.T) {
	t.Parallel()

	recs, err := DecodeAll(strings.NewReader(""), 0)
	if err != nil {
		t.Fatalf("DecodeAll(empty): %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("decoded %d records from empty input", len(recs))
	}
}

func TestDecodeAll_RejectsNonObject(t *testing.T) {
	t.Parallel()

	for _, in := range []string{`42`, `"x"`, `[1,2]`, `{"ok":1}` + "\n" + `17`} {
		if _, err := DecodeAll(strings.NewReader(in), 0); err == nil {
			t.Errorf("DecodeAll(%q) should fail on non-object value", in)
		}
	}
}

func TestDecodeAll_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := DecodeAll(strings.NewReader(`{"id":1`), 0); err == nil {
		t.Fatal("truncated object should fail")
	}
}

func TestDecodeOne(t *testing.T) {
	t.Parallel()

	rec, err := DecodeOne(strings.NewReader(`{"a": {"b": [1, 2]}}`))
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	if v, ok := rec.Get("a.b"); !ok || v == nil {
		t.Fatalf("a.b = (%v, %t)", v, ok)
	}

	if _, err := DecodeOne(strings.NewReader("")); err == nil {
		t.Fatal("DecodeOne of empty input should fail")
	}
}

func BenchmarkDecodeAll(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		sb.WriteString(`{"id":`)
		sb.WriteString(strings.Repeat("7", 1+i%5))
		sb.WriteString(`,"name":"row","tags":["a","b"]}` + "\n")
	}
	payload := sb.String()

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeAll(strings.NewReader(payload), 0); err != nil {
			b.Fatal(err)
		}
	}
}
