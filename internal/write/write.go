// Package write materializes computed partitions as newline-delimited JSON
// files, one file per partition, optionally compressed.
package write

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"lazycol/internal/codec"
	"lazycol/internal/metrics"
	"lazycol/pkg/columnar"
)

// Options tune output placement and encoding.
type Options struct {
	// Compression names a registered codec ("gzip", "xz", "zip"); empty
	// writes plain files. The codec's suffix is appended to each file name.
	Compression string

	// Parallelism caps concurrent partition writes. Zero means GOMAXPROCS.
	Parallelism int
}

// Partitions writes one file per chunk under dir, named part_0000.json
// onward with the codec suffix appended. Indexes pad to at least four
// digits and widen together past 10000 partitions, keeping lexicographic
// name order equal to partition order. The directory is created if
// missing. Partitions are written concurrently; failures from distinct
// partitions are joined into a single error.
func Partitions(ctx context.Context, dir string, chunks []*columnar.Array, opt Options) error {
	start := time.Now()
	err := write(ctx, dir, chunks, opt)
	metrics.RecordStage("write", err, time.Since(start))
	if err == nil {
		metrics.RecordPartitions("written", len(chunks))
	}
	return err
}

func write(ctx context.Context, dir string, chunks []*columnar.Array, opt Options) error {
	c, err := codec.Lookup(opt.Compression)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	par := opt.Parallelism
	if par <= 0 {
		par = runtime.GOMAXPROCS(0)
	}

	errs := make([]error, len(chunks))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(par)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			errs[i] = writePartition(dir, i, partName(i, len(chunks)), chunk, c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// partName pads the partition index to at least four digits, widening when
// the partition count overflows that so a lexicographic sort of the output
// names keeps partition order.
func partName(i, n int) string {
	width := 4
	if d := len(strconv.Itoa(n - 1)); d > width {
		width = d
	}
	return fmt.Sprintf("part_%0*d.json", width, i)
}

func writePartition(dir string, i int, base string, chunk *columnar.Array, c codec.Codec) (err error) {
	name := base
	if c != nil {
		name += c.Suffix()
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write partition %d: %w", i, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write partition %d: %w", i, cerr)
		}
	}()

	var dst io.Writer = f
	var wc io.WriteCloser
	if c != nil {
		wc, err = c.NewWriter(f, base)
		if err != nil {
			return fmt.Errorf("write partition %d: %w", i, err)
		}
		dst = wc
	}

	if err := encodeRows(dst, chunk); err != nil {
		if wc != nil {
			wc.Close()
		}
		return fmt.Errorf("write partition %d: %w", i, err)
	}
	if wc != nil {
		if err := wc.Close(); err != nil {
			return fmt.Errorf("write partition %d: %w", i, err)
		}
	}
	metrics.RecordRows("write", chunk.Len())
	return nil
}

// encodeRows emits one JSON document per row, newline terminated. The
// stdlib encoder appends the newline itself.
func encodeRows(w io.Writer, chunk *columnar.Array) error {
	enc := json.NewEncoder(w)
	for _, v := range chunk.Values() {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}
