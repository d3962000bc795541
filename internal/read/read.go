// Package read implements the partition read task: the pure function that
// turns a partition spec into a concrete columnar chunk. It performs the
// byte-range fetch, decompression, JSON decoding, field projection, and
// array construction; building the graph never calls into this package.
package read

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"lazycol/internal/metrics"
	jsonparser "lazycol/internal/parser/json"
	"lazycol/internal/partition"
	"lazycol/pkg/columnar"
	"lazycol/pkg/records"
)

// Partition materializes one partition. It is a pure function of the spec:
// the same spec always yields a structurally form-compatible chunk. Failures
// are tagged with the spec's source identity and range.
func Partition(ctx context.Context, spec partition.Spec) (*columnar.Array, error) {
	start := time.Now()
	arr, err := readPartition(ctx, spec)
	metrics.RecordStage("read", err, time.Since(start))
	if err != nil {
		return nil, partition.WrapError(spec, err)
	}
	metrics.RecordRows("read", arr.Len())
	return arr, nil
}

func readPartition(ctx context.Context, spec partition.Spec) (*columnar.Array, error) {
	recs, err := decode(ctx, spec)
	if err != nil {
		return nil, err
	}
	if len(spec.Fields) > 0 {
		for i, r := range recs {
			recs[i] = r.Project(spec.Fields)
		}
	}
	return columnar.FromRecords(recs)
}

func decode(ctx context.Context, spec partition.Spec) ([]records.Record, error) {
	switch spec.Unit {
	case partition.UnitBytes:
		rc, err := spec.Source.Src.OpenRange(ctx, spec.Start, spec.End)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return jsonparser.DecodeAll(rc, 0)

	case partition.UnitLines:
		rc, err := spec.Source.OpenDecoded(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		chunk, err := sliceLines(rc, spec.Start, spec.End)
		if err != nil {
			return nil, err
		}
		return jsonparser.DecodeAll(bytes.NewReader(chunk), 0)

	default: // whole file
		rc, err := spec.Source.OpenDecoded(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		if spec.OneObj {
			rec, err := jsonparser.DecodeOne(rc)
			if err != nil {
				return nil, err
			}
			return []records.Record{rec}, nil
		}
		return jsonparser.DecodeAll(rc, 0)
	}
}

// sliceLines gathers the raw bytes of lines [start, end) from r; end == -1
// reads to the end of the stream. Line indices are zero-based and lines are
// terminated by '\n' (a trailing unterminated segment counts as a line).
func sliceLines(r io.Reader, start, end int64) ([]byte, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var out bytes.Buffer
	var idx int64
	for end == -1 || idx < end {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && idx >= start {
			out.Write(line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		idx++
	}
	return out.Bytes(), nil
}
