package fetcher

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Fake is an in-memory Fetcher used by tests across the repo (playlist
// loading, fetch pool retries, space guard probing) so none of them need
// a real network. Its maps key a URL to a canned body, status, or error;
// Attempts records how many times each URL was requested.
type Fake struct {
	mu       sync.Mutex
	Bodies   map[string][]byte
	Statuses map[string]int
	Errors   map[string]error
	// ContentLengths overrides the reported length for a URL; absent
	// entries fall back to len(Bodies[url]).
	ContentLengths map[string]int64
	// Sequence, when set for a URL, returns successive canned responses
	// (one per call) — used to simulate "fails twice, then succeeds".
	Sequence map[string][]FakeResult
	Attempts map[string]int
}

// FakeResult is one canned response/error pair for Fake.Sequence.
type FakeResult struct {
	Status int
	Body   []byte
	Err    error
}

func NewFake() *Fake {
	return &Fake{
		Bodies:         make(map[string][]byte),
		Statuses:       make(map[string]int),
		Errors:         make(map[string]error),
		ContentLengths: make(map[string]int64),
		Sequence:       make(map[string][]FakeResult),
		Attempts:       make(map[string]int),
	}
}

func (f *Fake) Get(ctx context.Context, url string) (*Response, error) {
	return f.GetRange(ctx, url, -1, -1)
}

func (f *Fake) GetRange(ctx context.Context, url string, start, end int64) (*Response, error) {
	f.mu.Lock()
	f.Attempts[url]++
	attempt := f.Attempts[url]
	f.mu.Unlock()

	if seq, ok := f.Sequence[url]; ok && len(seq) > 0 {
		idx := attempt - 1
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		r := seq[idx]
		if r.Err != nil {
			return nil, r.Err
		}
		return &Response{
			StatusCode:    r.Status,
			ContentLength: int64(len(r.Body)),
			Body:          io.NopCloser(strings.NewReader(string(r.Body))),
		}, nil
	}

	if err, ok := f.Errors[url]; ok {
		return nil, err
	}
	status, ok := f.Statuses[url]
	if !ok {
		status = 200
	}
	body := f.Bodies[url]
	length, ok := f.ContentLengths[url]
	if !ok {
		length = int64(len(body))
	}
	return &Response{StatusCode: status, ContentLength: length, Body: io.NopCloser(strings.NewReader(string(body)))}, nil
}
