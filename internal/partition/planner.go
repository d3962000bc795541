package partition

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"lazycol/internal/datasource"
)

// Policy selects exactly one of the three sizing strategies:
//
//   - Blocksize > 0 with a Delimiter: byte-chunked partitions whose
//     boundaries snap forward to the next delimiter so no record is split.
//   - Blocksize > 0 without a Delimiter: the reader has no safe split
//     points, so each source becomes exactly one partition.
//   - LinesPerPartition > 0: line-chunked partitions synthesized by counting
//     line terminators; the final partition of a source absorbs any
//     remainder.
//   - Neither: whole-file partitioning, one partition per source. This is
//     forced when OneObj is set, since a single JSON object cannot be
//     sub-divided.
type Policy struct {
	Blocksize         int64
	Delimiter         []byte
	LinesPerPartition int
	OneObj            bool
}

// Validate rejects policies that mix mutually exclusive sizing strategies.
func (p Policy) Validate() error {
	if p.Blocksize < 0 {
		return fmt.Errorf("planner: blocksize must be positive")
	}
	if p.LinesPerPartition < 0 {
		return fmt.Errorf("planner: lines per partition must be positive")
	}
	if p.Blocksize > 0 && p.LinesPerPartition > 0 {
		return fmt.Errorf("planner: blocksize and lines-per-partition are mutually exclusive")
	}
	if p.OneObj && (p.Blocksize > 0 || p.LinesPerPartition > 0) {
		return fmt.Errorf("planner: one-object-per-file sources cannot be sub-divided")
	}
	if len(p.Delimiter) > 0 && p.Blocksize == 0 {
		return fmt.Errorf("planner: delimiter requires a blocksize")
	}
	return nil
}

// scanWindow is the read granularity used when snapping byte boundaries
// forward to a delimiter.
const scanWindow = 64 * 1024

// Plan computes the ordered partition list for the given sources under the
// policy. Given identical sources and policy the result is bit-for-bit
// reproducible: boundaries depend only on source bytes and the policy.
func Plan(ctx context.Context, sources []datasource.Resolved, p Policy) ([]Spec, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var specs []Spec
	for _, src := range sources {
		ps, err := planSource(ctx, src, p)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", src.Path, err)
		}
		specs = append(specs, ps...)
	}
	return specs, nil
}

func planSource(ctx context.Context, src datasource.Resolved, p Policy) ([]Spec, error) {
	whole := []Spec{{Source: src, Unit: UnitWholeFile, OneObj: p.OneObj}}

	switch {
	case p.Blocksize > 0 && len(p.Delimiter) > 0:
		// Compressed bytes have no addressable record boundaries.
		if src.Compression != "" {
			return whole, nil
		}
		return planBytes(ctx, src, p.Blocksize, p.Delimiter)
	case p.Blocksize > 0:
		// No delimiter: the only safe split points are file boundaries.
		return whole, nil
	case p.LinesPerPartition > 0:
		return planLines(ctx, src, p.LinesPerPartition)
	default:
		return whole, nil
	}
}

func planBytes(ctx context.Context, src datasource.Resolved, blocksize int64, delim []byte) ([]Spec, error) {
	size := src.Size
	if size < 0 {
		var err error
		size, err = src.Src.Size(ctx)
		if err != nil {
			return nil, err
		}
	}
	if size < 0 || size <= blocksize {
		return []Spec{{Source: src, Unit: UnitWholeFile}}, nil
	}

	var specs []Spec
	start := int64(0)
	for start < size {
		tentative := start + blocksize
		if tentative >= size {
			specs = append(specs, Spec{Source: src, Unit: UnitBytes, Start: start, End: size})
			break
		}
		pos, err := nextDelimiter(ctx, src.Src, tentative, delim)
		if err != nil {
			return nil, err
		}
		end := size
		if pos >= 0 {
			end = pos + int64(len(delim))
		}
		specs = append(specs, Spec{Source: src, Unit: UnitBytes, Start: start, End: end})
		start = end
	}
	return specs, nil
}

// nextDelimiter returns the absolute offset of the first occurrence of delim
// at or after from, or -1 when the source ends first. It reads scan windows
// only, keeping a len(delim)-1 overlap so occurrences spanning window
// boundaries are found.
func nextDelimiter(ctx context.Context, src datasource.Source, from int64, delim []byte) (int64, error) {
	rc, err := src.OpenRange(ctx, from, -1)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	overlap := len(delim) - 1
	buf := make([]byte, scanWindow+overlap)
	carry := 0   // bytes kept from the previous window
	base := from // absolute offset of buf[0]
	for {
		n, err := io.ReadFull(rc, buf[carry:])
		total := carry + n
		if i := bytes.Index(buf[:total], delim); i >= 0 {
			return base + int64(i), nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return -1, nil
		}
		if err != nil {
			return 0, err
		}
		if overlap > 0 {
			copy(buf, buf[total-overlap:total])
		}
		base += int64(total - overlap)
		carry = overlap
	}
}

func planLines(ctx context.Context, src datasource.Resolved, perPart int) ([]Spec, error) {
	total, err := countLines(ctx, src)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []Spec{{Source: src, Unit: UnitLines, Start: 0, End: 0}}, nil
	}
	n := int(total) / perPart
	if n == 0 {
		return []Spec{{Source: src, Unit: UnitLines, Start: 0, End: total}}, nil
	}
	specs := make([]Spec, 0, n)
	for i := 0; i < n; i++ {
		start := int64(i * perPart)
		end := int64((i + 1) * perPart)
		if i == n-1 {
			// The final partition absorbs the remainder.
			end = total
		}
		specs = append(specs, Spec{Source: src, Unit: UnitLines, Start: start, End: end})
	}
	return specs, nil
}

// countLines counts logical lines in the decoded stream. A trailing segment
// without a terminator still counts as a line; a trailing terminator does
// not create an empty one.
func countLines(ctx context.Context, src datasource.Resolved) (int64, error) {
	rc, err := src.OpenDecoded(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var count int64
	lastByte := byte('\n')
	buf := make([]byte, scanWindow)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			count += int64(bytes.Count(buf[:n], []byte{'\n'}))
			lastByte = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if lastByte != '\n' {
		count++
	}
	return count, nil
}
