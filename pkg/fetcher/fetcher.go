// Package fetcher is the abstract transport boundary spec.md §1 calls
// out as an external collaborator: everything above this package talks
// to a Fetcher interface, never to *http.Client directly, so a fake
// fetcher can drive every test without a real network.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mossbeam/hlsfetch/pkg/hlserr"
)

// Response is what a Fetcher returns for a successful round trip: a
// status code, a body the caller is responsible for closing, and the
// declared content length (-1 when the server didn't send one) that the
// space guard's probe reads instead of downloading the body.
type Response struct {
	StatusCode    int
	ContentLength int64
	Body          io.ReadCloser
}

// Fetcher is the abstract HTTP GET the downloader core depends on.
// GetRange lets the space guard (§4.5) ask for a byte range without the
// core needing to know anything about *http.Request.
type Fetcher interface {
	Get(ctx context.Context, url string) (*Response, error)
	GetRange(ctx context.Context, url string, start, end int64) (*Response, error)
}

// HTTPFetcher is the default Fetcher, grounded on the teacher's
// pkg/media/playlist.go and pkg/media/segment.go request-building
// (manual http.NewRequest + User-Agent/Referer headers, client.Do).
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	Referer   string
}

const (
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// New builds an HTTPFetcher with the teacher's default headers and a
// plain *http.Client (transport pooling, no retries — retries are the
// fetch pool's job per spec.md §4.6).
func New() *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{},
		UserAgent: DefaultUserAgent,
	}
}

func (f *HTTPFetcher) Get(ctx context.Context, url string) (*Response, error) {
	return f.do(ctx, url, -1, -1)
}

func (f *HTTPFetcher) GetRange(ctx context.Context, url string, start, end int64) (*Response, error) {
	return f.do(ctx, url, start, end)
}

func (f *HTTPFetcher) do(ctx context.Context, url string, start, end int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, hlserr.Wrap(hlserr.InputUnreachable, "building request for "+url, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	if f.Referer != "" {
		req.Header.Set("Referer", f.Referer)
	}
	if start >= 0 {
		if end >= start {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		if isNetworkError(err) {
			return nil, hlserr.Wrap(hlserr.NoNetwork, "connecting to "+url, err)
		}
		return nil, hlserr.Wrap(hlserr.InputUnreachable, "requesting "+url, err)
	}
	return &Response{StatusCode: resp.StatusCode, ContentLength: resp.ContentLength, Body: resp.Body}, nil
}

// isNetworkError distinguishes "never reached the server" failures
// (DNS, connection refused, timeout before any bytes) from an HTTP
// response that simply carries a non-2xx status — spec.md §4.1 requires
// these to surface as different error kinds.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// StatusOK reports whether status is a successful 2xx response.
func StatusOK(status int) bool { return status >= 200 && status < 300 }

// DefaultTimeout bounds a single segment fetch; the fetch pool wraps
// each attempt's context with this, matching the teacher's per-job
// context.WithTimeout(ctx, 10*time.Second) in VariantDownloader.
const DefaultTimeout = 30 * time.Second
