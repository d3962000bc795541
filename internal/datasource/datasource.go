// Package datasource defines the byte-addressable source contract consumed
// by the partition planner and the read tasks, plus the resolver that expands
// path patterns and explicit lists into ordered source sets.
package datasource

import (
	"context"
	"io"
)

// Source is a byte-addressable origin of raw (possibly compressed) bytes.
// Implementations must be safe for concurrent use: partition tasks open
// ranges of the same source from independent goroutines.
type Source interface {
	// Open returns a reader over the full raw byte stream.
	Open(ctx context.Context) (io.ReadCloser, error)

	// OpenRange returns a reader over raw bytes [start, end). An end of -1
	// means "to the end of the source". Ranges address the stored bytes;
	// compressed sources cannot be range-read meaningfully and the planner
	// never asks them to be.
	OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error)

	// Size returns the total stored length in bytes, or -1 when unknown.
	Size(ctx context.Context) (int64, error)
}

// Resolved is one planner-visible source entry: the Source plus the metadata
// the planner needs (identity, length, compression scheme). Resolved values
// are immutable once returned by Resolve.
type Resolved struct {
	// Path is the source identity used in error tagging and output naming:
	// a filesystem path, a URL, or a buffer label.
	Path string

	// Src performs the actual byte access.
	Src Source

	// Size is the stored length in bytes, -1 when unknown (e.g. remote
	// sources that refuse range probing).
	Size int64

	// Compression is the codec name classified from the path suffix
	// ("gzip", "xz", "zip"), or empty for plain bytes.
	Compression string
}
