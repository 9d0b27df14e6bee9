package fetchpool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mossbeam/hlsfetch/pkg/fetcher"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
	"github.com/mossbeam/hlsfetch/pkg/playlist"
)

func segmentsFor(urls ...string) []playlist.Segment {
	segs := make([]playlist.Segment, len(urls))
	for i, u := range urls {
		segs[i] = playlist.Segment{Index: i, URI: u}
	}
	return segs
}

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://example.com/s0.ts"] = []byte("aaaa")
	fake.Bodies["https://example.com/s1.ts"] = []byte("bbbb")

	segs := segmentsFor("https://example.com/s0.ts", "https://example.com/s1.ts")

	var reported []int
	result, err := Run(context.Background(), fake, segs, dir, "out", 4, func(j *FetchJob) {
		reported = append(reported, j.Index)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(result.Jobs))
	}
	for _, j := range result.Jobs {
		if j.State != Done {
			t.Errorf("job %d: expected Done, got %v", j.Index, j.State)
		}
		if _, err := os.Stat(j.TempPath); err != nil {
			t.Errorf("job %d: expected temp file at %s: %v", j.Index, j.TempPath, err)
		}
	}
	if len(reported) != 2 {
		t.Errorf("expected 2 progress callbacks, got %d", len(reported))
	}
}

func TestRun_TransientFailureRecovers(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	url := "https://example.com/flaky.ts"
	fake.Sequence[url] = []fetcher.FakeResult{
		{Status: 503, Body: nil},
		{Status: 503, Body: nil},
		{Status: 200, Body: []byte("payload")},
	}

	segs := segmentsFor(url)
	result, err := Run(context.Background(), fake, segs, dir, "out", 1, nil)
	if err != nil {
		t.Fatalf("expected eventual success, got error: %v", err)
	}
	if result.Jobs[0].State != Done {
		t.Errorf("expected job to recover after retries, got %v", result.Jobs[0].State)
	}
}

func TestRun_FatalFailureCleansUpTemps(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://example.com/s0.ts"] = []byte("ok")
	fake.Statuses["https://example.com/s1.ts"] = 500
	fake.Bodies["https://example.com/s2.ts"] = []byte("ok")

	segs := segmentsFor(
		"https://example.com/s0.ts",
		"https://example.com/s1.ts",
		"https://example.com/s2.ts",
	)

	_, err := Run(context.Background(), fake, segs, dir, "out", 1, nil)
	if !hlserr.IsKind(err, hlserr.SegmentFetchFailed) {
		t.Fatalf("expected SegmentFetchFailed, got %v", err)
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatalf("unexpected error reading dir: %v", readErr)
	}
	for _, e := range entries {
		t.Errorf("expected no leftover temp files, found %s", e.Name())
	}
}

func TestRun_Empty(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	result, err := Run(context.Background(), fake, nil, dir, "out", 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(result.Jobs))
	}
}

func TestTempPath(t *testing.T) {
	got := tempPath("/tmp/out", "video", 3)
	want := filepath.Join("/tmp/out", "video.3.part")
	if got != want {
		t.Errorf("tempPath() = %q, want %q", got, want)
	}
}
