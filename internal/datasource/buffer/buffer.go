// Package buffer implements an in-memory data source, used for collections
// built over already-materialized byte payloads and in tests.
package buffer

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Buffer is a data source over an immutable byte slice. The slice is shared,
// not copied; callers must not mutate it after handing it over.
type Buffer struct{ data []byte }

// New returns a Buffer over data.
func New(data []byte) *Buffer { return &Buffer{data: data} }

// Open returns a reader over the whole payload.
func (b *Buffer) Open(ctx context.Context) (io.ReadCloser, error) {
	return b.OpenRange(ctx, 0, -1)
}

// OpenRange returns a reader over bytes [start, end); end == -1 reads to the
// end of the payload.
func (b *Buffer) OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	n := int64(len(b.data))
	if end == -1 || end > n {
		end = n
	}
	if start < 0 || start > end {
		return nil, fmt.Errorf("buffer: invalid range [%d, %d) of %d", start, end, n)
	}
	return io.NopCloser(bytes.NewReader(b.data[start:end])), nil
}

// Size returns the payload length.
func (b *Buffer) Size(ctx context.Context) (int64, error) {
	return int64(len(b.data)), nil
}
