package columnar

import (
	"fmt"

	"lazycol/pkg/records"
)

// Array is an in-memory columnar chunk: a sequence of decoded values together
// with the Form describing their common structure. Arrays are immutable once
// constructed; every operation returns a new Array sharing value storage
// where safe.
type Array struct {
	form Form
	vals []any
}

// FromRecords builds an array from decoded JSON objects, inferring the form
// across all records with numeric widening. Structural drift between records
// (field absence or addition) is a *FormError.
func FromRecords(recs []records.Record) (*Array, error) {
	vals := make([]any, len(recs))
	for i, r := range recs {
		vals[i] = map[string]any(r)
	}
	return FromValues(vals)
}

// FromValues builds an array from arbitrary decoded JSON values.
func FromValues(vals []any) (*Array, error) {
	form, err := InferValues(vals)
	if err != nil {
		return nil, err
	}
	return &Array{form: form, vals: vals}, nil
}

// Len returns the number of rows.
func (a *Array) Len() int { return len(a.vals) }

// Form returns the structural form shared by all rows.
func (a *Array) Form() Form { return a.form }

// Values returns the backing value slice. Callers must not mutate it.
func (a *Array) Values() []any { return a.vals }

// FieldNames returns the sorted top-level field names for record-shaped
// arrays, nil otherwise.
func (a *Array) FieldNames() []string { return a.form.FieldNames() }

// Records returns the rows as records. It fails when the array does not hold
// record-shaped values.
func (a *Array) Records() ([]records.Record, error) {
	if a.form.Kind != KindRecord && len(a.vals) > 0 {
		return nil, &FormError{Msg: fmt.Sprintf("rows are %s, not records", a.form.Kind)}
	}
	out := make([]records.Record, len(a.vals))
	for i, v := range a.vals {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &FormError{Msg: fmt.Sprintf("row %d is %T, not an object", i, v)}
		}
		out[i] = records.Record(m)
	}
	return out, nil
}

// Project restricts every row to the given dot-separated field paths and
// narrows the form accordingly. An empty path set returns the array
// unchanged.
func (a *Array) Project(paths []string) (*Array, error) {
	if len(paths) == 0 {
		return a, nil
	}
	form, err := a.form.Project(paths)
	if err != nil {
		// Empty arrays carry no structure to validate against.
		if len(a.vals) == 0 {
			return &Array{form: Form{Kind: KindUnknown}}, nil
		}
		return nil, err
	}
	vals := make([]any, len(a.vals))
	for i, v := range a.vals {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &FormError{Msg: fmt.Sprintf("row %d is %T, not an object", i, v)}
		}
		vals[i] = map[string]any(records.Record(m).Project(paths))
	}
	return &Array{form: form, vals: vals}, nil
}

// Field extracts the named top-level field from every row, producing an array
// of the field's values.
func (a *Array) Field(name string) (*Array, error) {
	form, ok := a.form.FieldForm(name)
	if !ok {
		if len(a.vals) == 0 {
			return &Array{form: Form{Kind: KindUnknown}}, nil
		}
		return nil, &FormError{Path: name, Msg: "no such field"}
	}
	vals := make([]any, len(a.vals))
	for i, v := range a.vals {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &FormError{Msg: fmt.Sprintf("row %d is %T, not an object", i, v)}
		}
		vals[i] = m[name]
	}
	return &Array{form: form, vals: vals}, nil
}

// Concat concatenates same-form arrays in order. Forms are unified with
// numeric widening; any other structural conflict is a *FormError carrying
// the index of the offending chunk. Empty chunks are absorbed.
func Concat(arrays []*Array) (*Array, error) {
	form := Form{Kind: KindUnknown}
	n := 0
	for i, a := range arrays {
		if a.Len() == 0 {
			continue
		}
		merged, err := Merge(form, a.form)
		if err != nil {
			return nil, fmt.Errorf("concat chunk %d: %w", i, err)
		}
		form = merged
		n += a.Len()
	}
	vals := make([]any, 0, n)
	for _, a := range arrays {
		if a.Len() == 0 {
			continue
		}
		vals = append(vals, a.vals...)
	}
	return &Array{form: form, vals: vals}, nil
}

// Equal reports whether two arrays hold the same rows in the same order with
// equal forms. Intended for tests and verification paths, not hot loops.
func (a *Array) Equal(b *Array) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	if !a.form.Equal(b.form) {
		return false
	}
	for i := range a.vals {
		if !valueEqual(a.vals[i], b.vals[i]) {
			return false
		}
	}
	return true
}

func valueEqual(x, y any) bool {
	switch xv := x.(type) {
	case map[string]any:
		yv, ok := y.(map[string]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for k, v := range xv {
			w, ok := yv[k]
			if !ok || !valueEqual(v, w) {
				return false
			}
		}
		return true
	case []any:
		yv, ok := y.([]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for i := range xv {
			if !valueEqual(xv[i], yv[i]) {
				return false
			}
		}
		return true
	default:
		return x == y
	}
}
