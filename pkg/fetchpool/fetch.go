package fetchpool

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/mossbeam/hlsfetch/pkg/fetcher"
)

const (
	maxAttempts  = 3
	baseBackoff  = 200 * time.Millisecond
	backoffFactor = 2
)

// fetchWithRetry implements spec.md §4.6 step 4: up to maxAttempts GETs,
// exponential backoff with full jitter between attempts, returning the
// last error once retries are exhausted.
func fetchWithRetry(ctx context.Context, f fetcher.Fetcher, job *FetchJob) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return err
			}
		}

		n, err := fetchOnce(ctx, f, job)
		if err == nil {
			job.Bytes = n
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// sleepBackoff waits base*2^attempt scaled by a uniform [0,1) jitter
// factor (full jitter), or returns ctx.Err() if cancelled first.
func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := baseBackoff
	for i := 0; i < attempt; i++ {
		backoff *= backoffFactor
	}
	wait := time.Duration(rand.Float64() * float64(backoff))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchOnce performs a single GET and streams the body into job.TempPath,
// returning the number of bytes written.
func fetchOnce(ctx context.Context, f fetcher.Fetcher, job *FetchJob) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, fetcher.DefaultTimeout)
	defer cancel()

	resp, err := f.Get(ctx, job.URI)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !fetcher.StatusOK(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("non-2xx status %d fetching %s", resp.StatusCode, job.URI)
	}

	if err := os.MkdirAll(filepath.Dir(job.TempPath), 0o755); err != nil {
		return 0, err
	}

	out, err := os.Create(job.TempPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := copyWithContext(ctx, out, resp.Body)
	if err != nil {
		os.Remove(job.TempPath)
		return 0, err
	}
	if n == 0 {
		os.Remove(job.TempPath)
		return 0, fmt.Errorf("zero-byte download for %s", job.URI)
	}
	return n, nil
}

// copyWithContext copies in small chunks, checking ctx between each one
// so a pool cancellation aborts an in-flight transfer promptly rather
// than waiting for the whole body (spec.md §5's "next I/O suspension
// point").
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

// tempPath builds the per-index temp file path spec.md §4.6 mandates:
// outputDir/<base>.<index>.part.
func tempPath(outputDir, base string, index int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s.%d.part", base, index))
}
