package lazycol

import (
	"context"

	"lazycol/internal/write"
)

// WriteOptions configure ToJSON output.
type WriteOptions struct {
	// Compression names the output codec ("gzip", "xz", "zip"); empty
	// writes plain files.
	Compression string
}

// ToJSON computes the collection and writes one newline-delimited JSON file
// per partition under dir, named part_0000.json onward with the codec
// suffix appended. The layout reads back with FromJSON over a glob.
//
// Partitions are written independently; a failing partition does not stop
// the others, but any failure makes the overall write fail. Completed
// partitions are not removed on failure.
func (c *Collection) ToJSON(ctx context.Context, dir string, opt WriteOptions) error {
	chunks, err := c.ComputePartitions(ctx)
	if err != nil {
		return err
	}
	return write.Partitions(ctx, dir, chunks, write.Options{
		Compression: opt.Compression,
		Parallelism: c.parallelism,
	})
}
