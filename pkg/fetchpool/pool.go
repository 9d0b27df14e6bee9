package fetchpool

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mossbeam/hlsfetch/pkg/fetcher"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
	"github.com/mossbeam/hlsfetch/pkg/playlist"
)

// Progress is invoked by the worker that finished a job (successfully
// or not), under a mutex shared by all workers, so calls are totally
// ordered (spec.md §5) — callers never see interleaved updates.
type Progress func(job *FetchJob)

// Result is the outcome of a fully successful Run: every job in index
// order, each State == Done.
type Result struct {
	Jobs []*FetchJob
}

// Run drains segments through a worker pool of size
// min(maxThreads, len(segments)) (spec.md §4.6), streaming each into its
// own temp file with retry-and-backoff. On the first exhausted job it
// stops handing out new work, cancels in-flight transfers, deletes every
// temp file written so far, and returns hlserr.SegmentFetchFailed —
// grounded on the teacher's VariantDownloader semaphore-acquire/release
// loop, reworked from a fire-and-forget goroutine swarm into a pool with
// cooperative cancellation.
func Run(ctx context.Context, f fetcher.Fetcher, segments []playlist.Segment, outputDir, base string, maxThreads int, onProgress Progress) (*Result, error) {
	jobs := jobsFromSegments(segments, outputDir, base)
	if len(jobs) == 0 {
		return &Result{Jobs: jobs}, nil
	}

	workers := maxThreads
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	queue := make(chan *FetchJob, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu         sync.Mutex
		firstErr   error
		progressMu sync.Mutex
	)

	report := func(j *FetchJob) {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		onProgress(j)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for job := range queue {
				select {
				case <-poolCtx.Done():
					return
				default:
				}

				job.State = Running
				err := fetchWithRetry(poolCtx, f, job)
				if err != nil {
					job.State = Failed
					job.Err = err
					mu.Lock()
					if firstErr == nil {
						firstErr = hlserr.Wrap(hlserr.SegmentFetchFailed,
							fmt.Sprintf("segment %d (%s) exhausted retries", job.Index, job.URI), err)
						cancel()
					}
					mu.Unlock()
					report(job)
					continue
				}

				job.State = Done
				report(job)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		cleanupTemps(jobs)
		return nil, firstErr
	}
	return &Result{Jobs: jobs}, nil
}

// cleanupTemps removes every temp file a job may have written, ignoring
// missing files — a job that never got past Pending has nothing to
// remove. Matches spec.md §4.6's "already-written temp files are deleted
// before the error propagates".
func cleanupTemps(jobs []*FetchJob) {
	for _, j := range jobs {
		os.Remove(j.TempPath)
	}
}
