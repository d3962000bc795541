package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lazycol/internal/codec"
	"lazycol/internal/datasource/buffer"
	"lazycol/internal/datasource/file"
	"lazycol/internal/datasource/httpds"
)

// Input is one resolver request entry: a glob pattern, an explicit path or
// URL, or a named in-memory buffer. Construct inputs with Pattern, Path, or
// Buffer.
type Input struct {
	pattern string
	path    string
	url     string
	name    string
	data    []byte
}

// Pattern requests glob expansion of a filesystem pattern. Matches are
// sorted lexicographically for determinism. A pattern that names a plain
// existing file matches itself. Remote URLs are never glob-expanded; a
// Pattern carrying an http(s) scheme behaves like Path.
func Pattern(p string) Input {
	if isRemote(p) {
		return Path(p)
	}
	return Input{pattern: p}
}

// Path requests a single explicit path or URL, which must exist.
func Path(p string) Input {
	if isRemote(p) {
		return Input{url: p}
	}
	return Input{path: p}
}

// Buffer requests a named in-memory source.
func Buffer(name string, data []byte) Input {
	return Input{name: name, data: data}
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// ResolutionError reports a fatal source-resolution failure: a pattern that
// matched nothing, or a listed path that does not exist. It is raised at
// collection-construction time, before any partition task runs.
type ResolutionError struct {
	Input string
	Err   error
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Input == "":
		return fmt.Sprintf("resolve: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("resolve %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("resolve %q: no sources matched", e.Input)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolve expands the given inputs, in order, into resolved sources. Glob
// matches are sorted; explicit entries keep their position. The only side
// effects are filesystem metadata lookups (existence, size) needed for
// planning.
func Resolve(ctx context.Context, inputs []Input) ([]Resolved, error) {
	if len(inputs) == 0 {
		return nil, &ResolutionError{Err: errors.New("no inputs given")}
	}
	var out []Resolved
	for _, in := range inputs {
		switch {
		case in.pattern != "":
			matches, err := filepath.Glob(in.pattern)
			if err != nil {
				return nil, &ResolutionError{Input: in.pattern, Err: err}
			}
			if len(matches) == 0 {
				return nil, &ResolutionError{Input: in.pattern}
			}
			sort.Strings(matches)
			for _, m := range matches {
				r, err := resolveLocal(m)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
			}
		case in.path != "":
			r, err := resolveLocal(in.path)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		case in.url != "":
			remote := httpds.NewRemote(in.url, httpds.Config{})
			size, err := remote.Size(ctx)
			if err != nil {
				return nil, &ResolutionError{Input: in.url, Err: err}
			}
			out = append(out, Resolved{
				Path:        in.url,
				Src:         remote,
				Size:        size,
				Compression: codecName(in.url),
			})
		default:
			out = append(out, Resolved{
				Path:        in.name,
				Src:         buffer.New(in.data),
				Size:        int64(len(in.data)),
				Compression: codecName(in.name),
			})
		}
	}
	return out, nil
}

func resolveLocal(path string) (Resolved, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Resolved{}, &ResolutionError{Input: path, Err: err}
	}
	if info.IsDir() {
		return Resolved{}, &ResolutionError{Input: path, Err: fmt.Errorf("is a directory")}
	}
	return Resolved{
		Path:        path,
		Src:         file.NewLocal(path),
		Size:        info.Size(),
		Compression: codecName(path),
	}, nil
}

func codecName(path string) string {
	if c := codec.ByPath(path); c != nil {
		return c.Name()
	}
	return ""
}

// OpenDecoded opens the source and transparently decompresses it according
// to the resolved compression scheme. This is the reader used by whole-file
// and line-addressed partitions, and by sampling.
func (r Resolved) OpenDecoded(ctx context.Context) (io.ReadCloser, error) {
	raw, err := r.Src.Open(ctx)
	if err != nil {
		return nil, err
	}
	if r.Compression == "" {
		return raw, nil
	}
	c, err := codec.Lookup(r.Compression)
	if err != nil {
		raw.Close()
		return nil, err
	}
	dec, err := c.NewReader(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("decompress %s: %w", r.Path, err)
	}
	return &decodedReader{ReadCloser: dec, raw: raw}, nil
}

// decodedReader closes both the decompressor and the underlying raw stream.
type decodedReader struct {
	io.ReadCloser
	raw io.ReadCloser
}

func (d *decodedReader) Close() error {
	err := d.ReadCloser.Close()
	if cerr := d.raw.Close(); err == nil {
		err = cerr
	}
	return err
}
