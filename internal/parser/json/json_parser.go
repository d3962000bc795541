// Package json implements the JSON record decoding used by partition read
// tasks and sampling.
//
// It is deliberately simple and conservative:
//
//   - Supports newline-delimited JSON objects:
//     {"id":1,"name":"a"}
//     {"id":2,"name":"b"}
//   - Also supports multiple JSON objects in a stream (same as NDJSON).
//   - Supports the one-value-per-file shape via DecodeOne.
//   - Rejects non-object top-level values: every row of a collection is a
//     record, and a stray primitive is a data error worth surfacing rather
//     than skipping.
package json

import (
	"encoding/json"
	"fmt"
	"io"

	"lazycol/pkg/records"
)

// Decoder wraps encoding/json.Decoder to provide a record-oriented API for
// NDJSON streams. Numbers are decoded with UseNumber so the columnar layer
// can distinguish integer from floating shapes.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder constructs a Decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	d := json.NewDecoder(r)
	d.UseNumber()
	return &Decoder{dec: d}
}

// Next reads the next JSON object and converts it into a records.Record.
// io.EOF is returned when the stream is exhausted.
func (d *Decoder) Next() (records.Record, error) {
	var raw any
	if err := d.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("json decode: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("json decode: top-level value is %T, expected object", raw)
	}
	return records.Record(m), nil
}

// DecodeAll reads every object from r. The max argument bounds the number of
// records read; max <= 0 reads to EOF.
func DecodeAll(r io.Reader, max int) ([]records.Record, error) {
	d := NewDecoder(r)
	var out []records.Record
	for max <= 0 || len(out) < max {
		rec, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeOne reads exactly one JSON object from r, the one-value-per-file
// shape. Trailing content after the value is ignored.
func DecodeOne(r io.Reader) (records.Record, error) {
	rec, err := NewDecoder(r).Next()
	if err == io.EOF {
		return nil, fmt.Errorf("json decode: empty input, expected one object")
	}
	return rec, err
}
