// Package fetchpool implements the bounded concurrent segment fetcher
// (spec.md §4.6), grounded on the teacher's pkg/media VariantDownloader
// and DownloadSegment: a semaphore-bounded worker pool that streams each
// segment into a per-index temp file, retrying transient failures with
// backoff before giving up and cancelling the whole invocation.
package fetchpool

import "github.com/mossbeam/hlsfetch/pkg/playlist"

// State is a FetchJob's lifecycle state (spec.md §3).
type State int

const (
	Pending State = iota
	Running
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

// FetchJob tracks one segment's fetch-and-write lifecycle.
type FetchJob struct {
	Index    int
	URI      string
	TempPath string
	State    State
	Bytes    int64
	Err      error
}

// jobsFromSegments seeds one FetchJob per planned segment, each pointed
// at its own disjoint tempPath so workers never share a write target
// (spec.md §5: "No two workers write to the same path").
func jobsFromSegments(segments []playlist.Segment, outputDir, base string) []*FetchJob {
	jobs := make([]*FetchJob, len(segments))
	for i, seg := range segments {
		jobs[i] = &FetchJob{
			Index:    seg.Index,
			URI:      seg.URI,
			TempPath: tempPath(outputDir, base, seg.Index),
			State:    Pending,
		}
	}
	return jobs
}
