// Package codec holds the compression codecs the reader and writer support.
//
// Each codec knows its conventional file suffix, how to wrap a raw reader for
// decompression, and how to wrap a destination writer for compression. The
// registry is static: adding a codec means adding an entry here, mirroring
// how the closed set of supported schemes is part of the on-disk contract
// (output files are named part_<k>.json<suffix> and read back by suffix).
package codec

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"
)

// Codec is one named compression scheme.
type Codec interface {
	// Name is the configuration name, e.g. "gzip".
	Name() string

	// Suffix is the conventional file suffix including the dot, e.g. ".gz".
	Suffix() string

	// NewReader wraps a raw stored-byte reader with decompression.
	NewReader(r io.Reader) (io.ReadCloser, error)

	// NewWriter wraps a destination with compression. entry is the logical
	// file name, used by archive-style codecs (zip) for the member name.
	NewWriter(w io.Writer, entry string) (io.WriteCloser, error)
}

var registry = map[string]Codec{
	"gzip": gzipCodec{},
	"xz":   xzCodec{},
	"zip":  zipCodec{},
}

// Lookup returns the codec registered under name. Unknown names are an
// error; an empty name means "no compression" and returns (nil, nil).
func Lookup(name string) (Codec, error) {
	if name == "" {
		return nil, nil
	}
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("codec: unsupported compression %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// ByPath classifies a path by its suffix, returning nil when the path does
// not end in a known codec suffix.
func ByPath(p string) Codec {
	ext := path.Ext(p)
	for _, c := range registry {
		if c.Suffix() == ext {
			return c
		}
	}
	return nil
}

// Names returns the registered codec names sorted for stable messages.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type gzipCodec struct{}

func (gzipCodec) Name() string   { return "gzip" }
func (gzipCodec) Suffix() string { return ".gz" }

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func (gzipCodec) NewWriter(w io.Writer, _ string) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

type xzCodec struct{}

func (xzCodec) Name() string   { return "xz" }
func (xzCodec) Suffix() string { return ".xz" }

func (xzCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

func (xzCodec) NewWriter(w io.Writer, _ string) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}

// zipCodec stores each partition as a single-member archive. Reading decodes
// the first member; zip needs random access, so the stored bytes are
// buffered in memory (partition files are bounded by the write-side
// partitioning, so this stays small).
type zipCodec struct{}

func (zipCodec) Name() string   { return "zip" }
func (zipCodec) Suffix() string { return ".zip" }

func (zipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("codec: zip archive has no members")
	}
	return zr.File[0].Open()
}

func (zipCodec) NewWriter(w io.Writer, entry string) (io.WriteCloser, error) {
	zw := zip.NewWriter(w)
	if entry == "" {
		entry = "part.json"
	}
	ew, err := zw.Create(entry)
	if err != nil {
		return nil, err
	}
	return &zipEntryWriter{zw: zw, w: ew}, nil
}

type zipEntryWriter struct {
	zw *zip.Writer
	w  io.Writer
}

func (z *zipEntryWriter) Write(p []byte) (int, error) { return z.w.Write(p) }

func (z *zipEntryWriter) Close() error { return z.zw.Close() }
