package columnar

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ReduceKind enumerates the per-row reductions the collection layer can push
// over a list-valued column.
type ReduceKind uint8

const (
	ReduceMax ReduceKind = iota
	ReduceMin
	ReduceSum
	ReduceCount
)

var reduceNames = map[ReduceKind]string{
	ReduceMax:   "max",
	ReduceMin:   "min",
	ReduceSum:   "sum",
	ReduceCount: "count",
}

func (k ReduceKind) String() string { return reduceNames[k] }

// ReduceRows applies a per-row reduction to a list-shaped array: each row's
// list collapses to a single numeric value. Empty lists reduce to nil for
// max/min and to zero for sum/count.
func ReduceRows(a *Array, kind ReduceKind) (*Array, error) {
	if a.Len() > 0 && a.form.Kind != KindList {
		return nil, &FormError{Msg: fmt.Sprintf("cannot reduce rows of %s", a.form.Kind)}
	}
	vals := make([]any, a.Len())
	for i, v := range a.vals {
		list, ok := v.([]any)
		if !ok {
			if v == nil {
				list = nil
			} else {
				return nil, &FormError{Msg: fmt.Sprintf("row %d is %T, not a list", i, v)}
			}
		}
		red, err := reduceList(list, kind)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		vals[i] = red
	}
	return FromValues(vals)
}

func reduceList(list []any, kind ReduceKind) (any, error) {
	if kind == ReduceCount {
		return json.Number(strconv.Itoa(len(list))), nil
	}
	if len(list) == 0 {
		if kind == ReduceSum {
			return json.Number("0"), nil
		}
		return nil, nil
	}
	// Reduce in float space, render back as a json.Number so the value kind
	// matches what a decode of the same result would produce.
	intsOnly := true
	var acc float64
	for i, e := range list {
		n, ok := e.(json.Number)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not a number", i, e)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		if !isIntNumber(n) {
			intsOnly = false
		}
		switch {
		case i == 0:
			acc = f
		case kind == ReduceMax && f > acc:
			acc = f
		case kind == ReduceMin && f < acc:
			acc = f
		case kind == ReduceSum:
			acc += f
		}
	}
	if intsOnly {
		return json.Number(strconv.FormatInt(int64(acc), 10)), nil
	}
	return json.Number(strconv.FormatFloat(acc, 'g', -1, 64)), nil
}
