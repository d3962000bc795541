package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Remote adapts a Client into a byte-addressable data source for a single
// URL. Ranged reads use HTTP Range requests; servers that ignore Range and
// answer 200 are handled by discarding and limiting client-side.
type Remote struct {
	url    string
	client *Client
}

// NewRemote returns a Remote source for url using a client built from cfg.
func NewRemote(url string, cfg Config) *Remote {
	return &Remote{url: url, client: NewClient(cfg)}
}

// Open starts a full GET stream of the URL.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("httpds: GET %s: status %d", r.url, resp.StatusCode)
	}
	return resp.Body, nil
}

// OpenRange reads stored bytes [start, end) via a Range request; end == -1
// requests through the end of the resource.
func (r *Remote) OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	if start < 0 || (end != -1 && end < start) {
		return nil, fmt.Errorf("httpds: invalid range [%d, %d)", start, end)
	}
	h := make(http.Header)
	if end == -1 {
		h.Set("Range", fmt.Sprintf("bytes=%d-", start))
	} else {
		h.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))
	}
	resp, err := r.client.Get(ctx, r.url, h)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusOK:
		// Server ignored Range: emulate by skipping and limiting.
		if _, err := io.CopyN(io.Discard, resp.Body, start); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("httpds: skip to %d in %s: %w", start, r.url, err)
		}
		if end == -1 {
			return resp.Body, nil
		}
		return &limitedBody{r: io.LimitReader(resp.Body, end-start), c: resp.Body}, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("httpds: GET %s range: status %d", r.url, resp.StatusCode)
	}
}

// Size probes the total resource length with a one-byte Range request,
// parsing the Content-Range total. Servers that support neither Range nor
// Content-Length yield -1 (unknown), which restricts the planner to
// whole-file partitioning for this source.
func (r *Remote) Size(ctx context.Context) (int64, error) {
	h := make(http.Header)
	h.Set("Range", "bytes=0-0")
	resp, err := r.client.Get(ctx, r.url, h)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4))
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Content-Range: bytes 0-0/12345
		cr := resp.Header.Get("Content-Range")
		if i := strings.LastIndexByte(cr, '/'); i >= 0 && cr[i+1:] != "*" {
			if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return n, nil
			}
		}
		return -1, nil
	case http.StatusOK:
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
		return -1, nil
	default:
		return 0, fmt.Errorf("httpds: GET %s size probe: status %d", r.url, resp.StatusCode)
	}
}

type limitedBody struct {
	r io.Reader
	c io.Closer
}

func (l *limitedBody) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedBody) Close() error               { return l.c.Close() }
