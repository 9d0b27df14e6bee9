// Package spaceguard implements the Space Guard (spec.md §4.5): estimate
// total required bytes for a segment plan and compare against free disk
// space before any segment is fully downloaded. Grounded on the
// teacher's pkg/nas (which targets a destination path's free space) with
// the probe itself wired to github.com/shirou/gopsutil/v3/disk, a real
// dependency carried by the pack's manifests for exactly this kind of
// free-byte oracle.
package spaceguard

import (
	"context"

	"github.com/mossbeam/hlsfetch/pkg/fetcher"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
	"github.com/mossbeam/hlsfetch/pkg/playlist"
	"github.com/shirou/gopsutil/v3/disk"
)

// safetyMargin is the 5% cushion spec.md §4.5 adds to the estimate.
const safetyMargin = 1.05

// sampleSize bounds how many segments are ranged-GET probed before
// falling back to extrapolation from the sampled average.
const sampleSize = 5

// diskUsage is swappable in tests so they don't depend on the real
// filesystem's free space.
var diskUsage = func(path string) (*disk.UsageStat, error) {
	return disk.Usage(path)
}

// Check estimates the bytes required to fetch every segment in the plan
// and fails with hlserr.InsufficientSpace when that estimate (plus
// margin) exceeds the free space at outputDir. It never downloads a
// segment body in full: each probe is a ranged GET of byte 0 only
// (Range: bytes=0-0), since the abstract Fetcher has no HEAD method.
func Check(ctx context.Context, f fetcher.Fetcher, segments []playlist.Segment, outputDir string) error {
	if len(segments) == 0 {
		return nil
	}

	required, err := estimateRequired(ctx, f, segments)
	if err != nil {
		return err
	}
	required = int64(float64(required) * safetyMargin)

	usage, err := diskUsage(outputDir)
	if err != nil {
		return hlserr.Wrap(hlserr.InsufficientSpace, "probing free space at "+outputDir, err)
	}

	if required > int64(usage.Free) {
		return hlserr.New(hlserr.InsufficientSpace,
			"estimated download exceeds free space at "+outputDir)
	}
	return nil
}

// estimateRequired probes each segment for a byte count via a ranged GET
// and sums them when every probe reports a size. If any probe can't
// report a size (e.g. no Content-Length), it falls back to sampling up
// to sampleSize segments and multiplying their average by the total
// segment count.
func estimateRequired(ctx context.Context, f fetcher.Fetcher, segments []playlist.Segment) (int64, error) {
	sizes := make([]int64, 0, len(segments))
	for _, seg := range segments {
		n, ok, err := probeSize(ctx, f, seg.URI)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		sizes = append(sizes, n)
	}

	if len(sizes) == len(segments) {
		var total int64
		for _, n := range sizes {
			total += n
		}
		return total, nil
	}

	return extrapolate(ctx, f, segments)
}

// extrapolate samples up to sampleSize segments and scales the average
// observed size across the full segment count.
func extrapolate(ctx context.Context, f fetcher.Fetcher, segments []playlist.Segment) (int64, error) {
	limit := sampleSize
	if limit > len(segments) {
		limit = len(segments)
	}

	var total int64
	var sampled int
	for _, seg := range segments[:limit] {
		n, ok, err := probeSize(ctx, f, seg.URI)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		total += n
		sampled++
	}

	if sampled == 0 {
		return 0, nil
	}
	avg := float64(total) / float64(sampled)
	return int64(avg * float64(len(segments))), nil
}

// probeSize issues a single-byte ranged GET (the HEAD substitute) and
// reads the declared Content-Length off the response without consuming
// its body. A missing or zero length means the server didn't report
// one, so the caller should fall back to extrapolation.
func probeSize(ctx context.Context, f fetcher.Fetcher, uri string) (int64, bool, error) {
	resp, err := f.GetRange(ctx, uri, 0, 0)
	if err != nil {
		return 0, false, hlserr.Wrap(hlserr.InsufficientSpace, "probing segment "+uri, err)
	}
	resp.Body.Close()

	if !fetcher.StatusOK(resp.StatusCode) && resp.StatusCode != 206 {
		return 0, false, nil
	}
	if resp.ContentLength <= 0 {
		return 0, false, nil
	}
	return resp.ContentLength, true, nil
}
