// Package lazycol builds lazy, partitioned columnar collections from
// JSON-encoded record sets. Construction resolves sources and plans
// partition boundaries but reads no data; parsing happens when a collection
// is computed, and a projection pass first rewrites the graph so only the
// fields actually consumed are ever decoded.
package lazycol

import (
	"context"
	"fmt"
	"strings"

	"lazycol/internal/datasource"
	"lazycol/internal/graph"
	"lazycol/internal/meta"
	"lazycol/internal/metrics"
	"lazycol/internal/partition"
	"lazycol/internal/read"
	"lazycol/pkg/columnar"
)

// ReadOptions configure source partitioning and schema sampling. The zero
// value reads newline-delimited records, one partition per file, sampling
// the default byte width for the form.
type ReadOptions struct {
	// Blocksize is the target bytes per partition. It requires Delimiter to
	// produce sub-file partitions; without a delimiter the reader has no
	// safe split points and each source stays one partition.
	Blocksize int64

	// Delimiter is the byte sequence marking safe split points, typically
	// "\n". nil disables byte-splitting.
	Delimiter []byte

	// LinesPerPartition partitions each source by decoded line count
	// instead of bytes. Mutually exclusive with Blocksize.
	LinesPerPartition int

	// OneObjPerFile marks sources holding exactly one JSON value per file.
	// Forces whole-file partitioning.
	OneObjPerFile bool

	// ForceByLines, SampleRows, and SampleBytes control form sampling; see
	// the sampling precedence rules on meta.Options.
	ForceByLines bool
	SampleRows   int
	SampleBytes  int

	// Meta supplies a known form directly, skipping sampling entirely.
	Meta *columnar.Form
}

func (o ReadOptions) policy() partition.Policy {
	return partition.Policy{
		Blocksize:         o.Blocksize,
		Delimiter:         o.Delimiter,
		LinesPerPartition: o.LinesPerPartition,
		OneObj:            o.OneObjPerFile,
	}
}

func (o ReadOptions) sampling() meta.Options {
	return meta.Options{
		ForceByLines: o.ForceByLines,
		SampleRows:   o.SampleRows,
		ByteChunks:   o.SampleBytes,
	}
}

// FromJSON builds a collection from a glob pattern, a single path, or an
// http(s) URL. Pattern matches are ordered lexicographically; a pattern
// matching nothing is an error.
func FromJSON(ctx context.Context, pattern string, opt ReadOptions) (*Collection, error) {
	return fromInputs(ctx, []datasource.Input{datasource.Pattern(pattern)}, opt)
}

// FromJSONPaths builds a collection from an explicit ordered path list.
// Every path must exist; order is preserved. An empty list is an error.
func FromJSONPaths(ctx context.Context, paths []string, opt ReadOptions) (*Collection, error) {
	inputs := make([]datasource.Input, len(paths))
	for i, p := range paths {
		inputs[i] = datasource.Path(p)
	}
	return fromInputs(ctx, inputs, opt)
}

// NamedBuffer is an in-memory source with a label used in error tagging.
type NamedBuffer struct {
	Name string
	Data []byte
}

// FromJSONBuffers builds a collection from in-memory sources, in order.
// An empty list is an error.
func FromJSONBuffers(ctx context.Context, bufs []NamedBuffer, opt ReadOptions) (*Collection, error) {
	inputs := make([]datasource.Input, len(bufs))
	for i, b := range bufs {
		inputs[i] = datasource.Buffer(b.Name, b.Data)
	}
	return fromInputs(ctx, inputs, opt)
}

func fromInputs(ctx context.Context, inputs []datasource.Input, opt ReadOptions) (*Collection, error) {
	sources, err := datasource.Resolve(ctx, inputs)
	if err != nil {
		return nil, err
	}

	specs, err := partition.Plan(ctx, sources, opt.policy())
	if err != nil {
		return nil, err
	}
	for i := range specs {
		specs[i].OneObj = opt.OneObjPerFile
	}
	metrics.RecordPartitions("planned", len(specs))

	name := graph.ReadLayerName(readToken(sources, opt))
	g, err := graph.New().WithLayer(&graph.Layer{
		Name:   name,
		Kind:   graph.KindRead,
		NTasks: len(specs),
		Specs:  specs,
		Read:   read.Partition,
	})
	if err != nil {
		return nil, err
	}

	first := sources[0]
	sampling := opt.sampling()
	metaFn := func(ctx context.Context) (columnar.Form, error) {
		return meta.Derive(ctx, first, opt.OneObjPerFile, sampling)
	}
	if opt.Meta != nil {
		known := *opt.Meta
		metaFn = func(context.Context) (columnar.Form, error) { return known, nil }
	}

	return &Collection{
		g:           g,
		key:         name,
		npartitions: len(specs),
		metaFn:      metaFn,
	}, nil
}

// readToken derives the read layer's name token from everything that
// determines its output, so identical inputs and options reproduce the same
// layer name across runs.
func readToken(sources []datasource.Resolved, opt ReadOptions) string {
	parts := make([]string, 0, len(sources)+4)
	for _, s := range sources {
		parts = append(parts, s.Path)
	}
	parts = append(parts,
		fmt.Sprintf("blocksize=%d", opt.Blocksize),
		"delimiter="+string(opt.Delimiter),
		fmt.Sprintf("lines=%d", opt.LinesPerPartition),
		fmt.Sprintf("oneobj=%t", opt.OneObjPerFile),
	)
	return graph.Token(strings.Join(parts, "\x00"))
}
