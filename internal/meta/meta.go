// Package meta derives the structural form of a collection from a bounded
// sample of its first source. The sample is read solely to infer structure
// and never serves as actual data; two collections built from differently
// sized partitions over the same rows derive the identical form.
package meta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"lazycol/internal/ctxlog"
	"lazycol/internal/datasource"
	"lazycol/internal/metrics"
	jsonparser "lazycol/internal/parser/json"
	"lazycol/pkg/columnar"
	"lazycol/pkg/records"
)

// Defaults for the two sampling modes.
const (
	DefaultSampleRows = 5
	DefaultByteChunks = 16384
)

// Options control sampling. The zero value samples DefaultByteChunks bytes.
//
// Precedence when modes conflict: any line-mode signal (ForceByLines or an
// explicit SampleRows) fully overrides a byte sample width. Supplying
// ByteChunks together with a line-mode signal is merely redundant: it logs
// a warning and proceeds with line sampling, never an error.
type Options struct {
	// ForceByLines selects line-based sampling. Byte sampling of highly
	// variable-length records can yield too few or zero complete records;
	// line sampling always yields whole records.
	ForceByLines bool

	// SampleRows is the number of records to sample in line mode
	// (DefaultSampleRows when zero). Setting it implies line mode.
	SampleRows int

	// ByteChunks is the byte sample width for byte mode (DefaultByteChunks
	// when zero).
	ByteChunks int
}

// Derive infers the form from a bounded prefix of src. Only the first
// resolved source of a collection is ever passed here: sampling every source
// is wasteful and unnecessary under the homogeneity invariant.
func Derive(ctx context.Context, src datasource.Resolved, oneObj bool, opt Options) (columnar.Form, error) {
	start := time.Now()
	form, err := derive(ctx, src, oneObj, opt)
	metrics.RecordStage("sample", err, time.Since(start))
	if err != nil {
		return columnar.Form{}, fmt.Errorf("derive meta from %s: %w", src.Path, err)
	}
	return form, nil
}

func derive(ctx context.Context, src datasource.Resolved, oneObj bool, opt Options) (columnar.Form, error) {
	if oneObj {
		rc, err := src.OpenDecoded(ctx)
		if err != nil {
			return columnar.Form{}, err
		}
		defer rc.Close()
		rec, err := jsonparser.DecodeOne(rc)
		if err != nil {
			return columnar.Form{}, err
		}
		return columnar.Infer(rec), nil
	}

	lineMode := opt.ForceByLines || opt.SampleRows > 0
	if lineMode && opt.ByteChunks > 0 {
		ctxlog.FromContext(ctx).Warn(
			"conflicting sample options: line sampling is forced and ignores the byte sample width",
			"source", src.Path,
			"bytechunks", opt.ByteChunks,
			"sample_rows", opt.SampleRows,
		)
	}
	if lineMode {
		return deriveByLines(ctx, src, opt.SampleRows)
	}

	form, ok, err := deriveByBytes(ctx, src, opt.ByteChunks)
	if err != nil {
		return columnar.Form{}, err
	}
	if !ok {
		// The byte window held no complete record. Records are longer than
		// the sample width; fall back to whole-record sampling.
		ctxlog.FromContext(ctx).Warn(
			"byte sample contained no complete record; falling back to line sampling",
			"source", src.Path,
		)
		return deriveByLines(ctx, src, 0)
	}
	return form, nil
}

func deriveByLines(ctx context.Context, src datasource.Resolved, rows int) (columnar.Form, error) {
	if rows <= 0 {
		rows = DefaultSampleRows
	}
	rc, err := src.OpenDecoded(ctx)
	if err != nil {
		return columnar.Form{}, err
	}
	defer rc.Close()

	recs, err := jsonparser.DecodeAll(io.LimitReader(rc, maxSampleBytes), rows)
	if err != nil {
		return columnar.Form{}, err
	}
	if len(recs) == 0 {
		return columnar.Form{}, fmt.Errorf("sample is empty")
	}
	return inferRecords(recs)
}

// maxSampleBytes caps line sampling so a pathological single-line input
// cannot pull the whole dataset through the sampler.
const maxSampleBytes = 64 << 20

func deriveByBytes(ctx context.Context, src datasource.Resolved, width int) (columnar.Form, bool, error) {
	if width <= 0 {
		width = DefaultByteChunks
	}
	rc, err := src.OpenDecoded(ctx)
	if err != nil {
		return columnar.Form{}, false, err
	}
	defer rc.Close()

	buf := make([]byte, width)
	n, err := io.ReadFull(rc, buf)
	truncated := true
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// The whole stream fit in the window: every record is complete.
		truncated = false
	} else if err != nil {
		return columnar.Form{}, false, err
	}
	metrics.RecordSampleBytes(n)
	sample := buf[:n]

	if truncated {
		// Drop the trailing partial record.
		last := lastNewline(sample)
		if last < 0 {
			return columnar.Form{}, false, nil
		}
		sample = sample[:last+1]
	}

	recs, err := jsonparser.DecodeAll(bytes.NewReader(sample), 0)
	if err != nil {
		return columnar.Form{}, false, err
	}
	if len(recs) == 0 {
		return columnar.Form{}, false, nil
	}
	form, err := inferRecords(recs)
	if err != nil {
		return columnar.Form{}, false, err
	}
	return form, true, nil
}

func inferRecords(recs []records.Record) (columnar.Form, error) {
	vals := make([]any, len(recs))
	for i, r := range recs {
		vals[i] = map[string]any(r)
	}
	return columnar.InferValues(vals)
}

func lastNewline(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == '\n' {
			return i
		}
	}
	return -1
}
