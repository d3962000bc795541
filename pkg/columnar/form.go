// Package columnar is the in-memory columnar collaborator used by the lazy
// collection core. It provides exactly the operations the core contracts for:
// array construction from decoded JSON values, structural form extraction,
// form-checked concatenation, and field-subset projection.
//
// The representation is intentionally simple: an Array is a slice of decoded
// values plus the structural Form describing their shape. The core never
// inspects the layout beyond this API, so a heavier columnar backend could be
// swapped in behind the same operations.
package columnar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"lazycol/pkg/records"
)

// Kind classifies the structural type of a form node.
type Kind uint8

const (
	// KindUnknown marks a node whose type could not be established, e.g. the
	// element form of an empty list. It is assignable to and from anything.
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindRecord
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int64",
	KindFloat:   "float64",
	KindString:  "string",
	KindList:    "list",
	KindRecord:  "record",
}

func (k Kind) String() string { return kindNames[k] }

// Form is a structural description of a columnar shape: field names, nesting,
// and element kinds. Forms describe data without materializing it.
//
// Record fields are kept sorted lexicographically by name so that two forms
// inferred from the same logical data always compare equal regardless of the
// (unordered) Go map iteration that produced them.
type Form struct {
	Kind   Kind
	Fields []Field // populated when Kind == KindRecord
	Elem   *Form   // populated when Kind == KindList
}

// Field is one named member of a record form.
type Field struct {
	Name string
	Form Form
}

// FormError reports a structural conflict between two forms, e.g. a partition
// whose parsed output cannot be safely widened to the collection's derived
// form.
type FormError struct {
	Path string // dotted location of the conflict; empty for the root
	Msg  string
}

func (e *FormError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("form mismatch: %s", e.Msg)
	}
	return fmt.Sprintf("form mismatch at %q: %s", e.Path, e.Msg)
}

// Infer derives the form of a single decoded JSON value.
func Infer(v any) Form {
	switch vv := v.(type) {
	case nil:
		return Form{Kind: KindNull}
	case bool:
		return Form{Kind: KindBool}
	case json.Number:
		if isIntNumber(vv) {
			return Form{Kind: KindInt}
		}
		return Form{Kind: KindFloat}
	case float64:
		// Tolerate values decoded without UseNumber.
		return Form{Kind: KindFloat}
	case string:
		return Form{Kind: KindString}
	case []any:
		elem := Form{Kind: KindUnknown}
		for _, e := range vv {
			m, err := Merge(elem, Infer(e))
			if err != nil {
				m = Form{Kind: KindUnknown}
			}
			elem = m
		}
		return Form{Kind: KindList, Elem: &elem}
	case map[string]any:
		return inferRecord(vv)
	case records.Record:
		return inferRecord(vv)
	default:
		return Form{Kind: KindUnknown}
	}
}

func inferRecord(m map[string]any) Form {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, Field{Name: name, Form: Infer(m[name])})
	}
	return Form{Kind: KindRecord, Fields: fields}
}

func isIntNumber(n json.Number) bool {
	s := n.String()
	return !strings.ContainsAny(s, ".eE")
}

// InferValues derives the common form of a sequence of decoded values,
// merging per-value forms with numeric widening. An empty sequence yields
// KindUnknown.
func InferValues(vals []any) (Form, error) {
	form := Form{Kind: KindUnknown}
	for i, v := range vals {
		merged, err := Merge(form, Infer(v))
		if err != nil {
			return Form{}, fmt.Errorf("value %d: %w", i, err)
		}
		form = merged
	}
	return form, nil
}

// Merge unifies two forms describing the same logical position. Int widens to
// float; null unifies with anything (the non-null side wins); unknown yields
// the other side. Record forms must carry identical field name sets; field
// absence or addition is a structural conflict, not a widening.
func Merge(a, b Form) (Form, error) {
	return mergeAt("", a, b)
}

func mergeAt(path string, a, b Form) (Form, error) {
	switch {
	case a.Kind == KindUnknown:
		return b, nil
	case b.Kind == KindUnknown:
		return a, nil
	case a.Kind == KindNull:
		return b, nil
	case b.Kind == KindNull:
		return a, nil
	}
	if (a.Kind == KindInt && b.Kind == KindFloat) || (a.Kind == KindFloat && b.Kind == KindInt) {
		return Form{Kind: KindFloat}, nil
	}
	if a.Kind != b.Kind {
		return Form{}, &FormError{Path: path, Msg: fmt.Sprintf("%s vs %s", a.Kind, b.Kind)}
	}
	switch a.Kind {
	case KindList:
		elem, err := mergeAt(joinPath(path, "[]"), *a.Elem, *b.Elem)
		if err != nil {
			return Form{}, err
		}
		return Form{Kind: KindList, Elem: &elem}, nil
	case KindRecord:
		if len(a.Fields) != len(b.Fields) {
			return Form{}, &FormError{Path: path, Msg: fmt.Sprintf("field count %d vs %d", len(a.Fields), len(b.Fields))}
		}
		fields := make([]Field, len(a.Fields))
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name {
				return Form{}, &FormError{Path: path, Msg: fmt.Sprintf("field %q vs %q", a.Fields[i].Name, b.Fields[i].Name)}
			}
			f, err := mergeAt(joinPath(path, a.Fields[i].Name), a.Fields[i].Form, b.Fields[i].Form)
			if err != nil {
				return Form{}, err
			}
			fields[i] = Field{Name: a.Fields[i].Name, Form: f}
		}
		return Form{Kind: KindRecord, Fields: fields}, nil
	default:
		return a, nil
	}
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "." + seg
}

// AssignableTo reports whether data of form a can be safely treated as data
// of form want: same field names and nesting, with int-to-float widening
// (either direction of declaration) tolerated. It returns a *FormError
// describing the first conflict, or nil.
func AssignableTo(a, want Form) error {
	_, err := Merge(a, want)
	return err
}

// Equal reports structural equality of two forms.
func (f Form) Equal(other Form) bool {
	if f.Kind != other.Kind {
		return false
	}
	switch f.Kind {
	case KindList:
		return f.Elem.Equal(*other.Elem)
	case KindRecord:
		if len(f.Fields) != len(other.Fields) {
			return false
		}
		for i := range f.Fields {
			if f.Fields[i].Name != other.Fields[i].Name || !f.Fields[i].Form.Equal(other.Fields[i].Form) {
				return false
			}
		}
	}
	return true
}

// FieldNames returns the sorted top-level field names of a record form, or
// nil for non-record forms.
func (f Form) FieldNames() []string {
	if f.Kind != KindRecord {
		return nil
	}
	out := make([]string, len(f.Fields))
	for i, fld := range f.Fields {
		out[i] = fld.Name
	}
	return out
}

// FieldForm returns the form of the named top-level field.
func (f Form) FieldForm(name string) (Form, bool) {
	for _, fld := range f.Fields {
		if fld.Name == name {
			return fld.Form, true
		}
	}
	return Form{}, false
}

// Project restricts a record form to the given dot-separated field paths.
// Nested paths narrow the corresponding nested record (through lists).
// An empty path set returns the form unchanged. Unknown paths are an error:
// projecting a form is a metadata operation and silent narrowing here would
// let a typo masquerade as an empty column.
func (f Form) Project(paths []string) (Form, error) {
	if len(paths) == 0 {
		return f, nil
	}
	return f.projectTree(splitFormPaths(paths), "")
}

type formPathTree map[string]formPathTree

func splitFormPaths(paths []string) formPathTree {
	t := formPathTree{}
	for _, p := range paths {
		seg, rest, nested := strings.Cut(p, ".")
		if !nested {
			t[seg] = nil
			continue
		}
		if sub, ok := t[seg]; ok && sub == nil {
			continue
		}
		if t[seg] == nil {
			t[seg] = formPathTree{}
		}
		sub := splitFormPaths([]string{rest})
		for k, v := range sub {
			t[seg][k] = v
		}
	}
	return t
}

func (f Form) projectTree(t formPathTree, at string) (Form, error) {
	if f.Kind == KindList {
		elem, err := f.Elem.projectTree(t, at)
		if err != nil {
			return Form{}, err
		}
		return Form{Kind: KindList, Elem: &elem}, nil
	}
	if f.Kind != KindRecord {
		return Form{}, &FormError{Path: at, Msg: fmt.Sprintf("cannot project fields out of %s", f.Kind)}
	}
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		ff, ok := f.FieldForm(name)
		if !ok {
			return Form{}, &FormError{Path: joinPath(at, name), Msg: "no such field"}
		}
		if sub := t[name]; sub != nil {
			var err error
			ff, err = ff.projectTree(sub, joinPath(at, name))
			if err != nil {
				return Form{}, err
			}
		}
		fields = append(fields, Field{Name: name, Form: ff})
	}
	return Form{Kind: KindRecord, Fields: fields}, nil
}

// String renders a compact, single-line description, e.g.
// {goals: [int64], name: string}.
func (f Form) String() string {
	var b strings.Builder
	f.render(&b)
	return b.String()
}

func (f Form) render(b *strings.Builder) {
	switch f.Kind {
	case KindList:
		b.WriteByte('[')
		f.Elem.render(b)
		b.WriteByte(']')
	case KindRecord:
		b.WriteByte('{')
		for i, fld := range f.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fld.Name)
			b.WriteString(": ")
			fld.Form.render(b)
		}
		b.WriteByte('}')
	default:
		b.WriteString(f.Kind.String())
	}
}
