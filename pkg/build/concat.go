// Package build implements the Concatenator (spec.md §4.7): strict
// index-order assembly of per-segment temp files into the final output,
// grounded on the teacher's pkg/nas CopyFile (cancellable buffered copy
// + explicit Sync).
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mossbeam/hlsfetch/pkg/fetchpool"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
)

// Concatenate opens outputPath fresh, then in strict index order copies
// each job's temp file into it and removes the temp. On any I/O failure
// the partial output is deleted and hlserr.BuildFailed is returned.
// Jobs must already be sorted or indexed 0..N-1 contiguous; Concatenate
// sorts a copy to be safe against pool scheduling order.
func Concatenate(ctx context.Context, outputPath string, jobs []*fetchpool.FetchJob) error {
	ordered := orderedByIndex(jobs)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return hlserr.Wrap(hlserr.BuildFailed, "creating output directory", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return hlserr.Wrap(hlserr.BuildFailed, "creating output file", err)
	}

	for _, job := range ordered {
		if err := appendTemp(ctx, out, job.TempPath); err != nil {
			out.Close()
			os.Remove(outputPath)
			return hlserr.Wrap(hlserr.BuildFailed, fmt.Sprintf("appending segment %d", job.Index), err)
		}
		if err := os.Remove(job.TempPath); err != nil {
			out.Close()
			os.Remove(outputPath)
			return hlserr.Wrap(hlserr.BuildFailed, fmt.Sprintf("removing temp for segment %d", job.Index), err)
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(outputPath)
		return hlserr.Wrap(hlserr.BuildFailed, "syncing output file", err)
	}
	return out.Close()
}

// appendTemp streams one temp file's contents into the already-open
// output, honoring ctx cancellation mid-copy like the teacher's
// CopyFile.
func appendTemp(ctx context.Context, out *os.File, tempPath string) error {
	src, err := os.Open(tempPath)
	if err != nil {
		return err
	}
	defer src.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, src)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// RenameStable implements the merge=false path: each temp file is
// renamed to a stable outputDir/<base>.<index><ext> path and retained,
// with no concatenation performed.
func RenameStable(jobs []*fetchpool.FetchJob, outputDir, base, ext string) ([]string, error) {
	ordered := orderedByIndex(jobs)
	paths := make([]string, 0, len(ordered))
	for _, job := range ordered {
		stable := filepath.Join(outputDir, fmt.Sprintf("%s.%d%s", base, job.Index, ext))
		if err := os.Rename(job.TempPath, stable); err != nil {
			return nil, hlserr.Wrap(hlserr.BuildFailed, fmt.Sprintf("renaming segment %d", job.Index), err)
		}
		paths = append(paths, stable)
	}
	return paths, nil
}

func orderedByIndex(jobs []*fetchpool.FetchJob) []*fetchpool.FetchJob {
	ordered := make([]*fetchpool.FetchJob, len(jobs))
	copy(ordered, jobs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	return ordered
}
