// Package partition defines partition specs and the planner that computes
// them. A partition is one independently producible unit of a collection,
// bound to a contiguous byte or line range of a single source.
//
// The planner only ever reads the metadata and scan windows needed to place
// boundaries; partition contents are first touched by the read tasks at
// execution time.
package partition

import (
	"fmt"

	"lazycol/internal/datasource"
)

// Unit says how a spec's Start/End address the source.
type Unit uint8

const (
	// UnitWholeFile covers the entire source; Start/End are unused.
	UnitWholeFile Unit = iota
	// UnitBytes addresses stored bytes [Start, End); End == -1 means to the
	// end of the source.
	UnitBytes
	// UnitLines addresses decoded lines [Start, End); End == -1 means to the
	// end of the source.
	UnitLines
)

func (u Unit) String() string {
	switch u {
	case UnitBytes:
		return "bytes"
	case UnitLines:
		return "lines"
	default:
		return "whole-file"
	}
}

// Spec fully describes one partition. Specs are created once at planning
// time and are immutable thereafter; the optimizer replaces specs rather
// than mutating them when it installs a field filter.
type Spec struct {
	Source datasource.Resolved
	Unit   Unit
	Start  int64
	End    int64

	// OneObj marks sources holding exactly one JSON value per file instead
	// of newline-delimited records.
	OneObj bool

	// Fields is the projection set installed by the column optimizer:
	// dot-separated field paths the read task must decode. nil means all
	// fields.
	Fields []string
}

// Range renders the addressed range for error tagging.
func (s Spec) Range() string {
	switch s.Unit {
	case UnitBytes:
		return fmt.Sprintf("bytes [%d, %d)", s.Start, s.End)
	case UnitLines:
		return fmt.Sprintf("lines [%d, %d)", s.Start, s.End)
	default:
		return "whole file"
	}
}

// WithFields returns a copy of the spec carrying the given projection set.
func (s Spec) WithFields(fields []string) Spec {
	out := s
	out.Fields = append([]string(nil), fields...)
	return out
}

// Error tags a task-execution failure with the originating source identity
// and range, so a parse or I/O failure is attributable to a specific slice
// of input.
type Error struct {
	Path  string
	Range string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("partition %s of %s: %v", e.Range, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WrapError tags err with the spec's source identity and range.
func WrapError(s Spec, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Path: s.Source.Path, Range: s.Range(), Err: err}
}
