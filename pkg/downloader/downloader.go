// Package downloader is the Facade (spec.md §4.8): the two public entry
// points, download_playlist and download_master_playlist, each driving
// the Load → Classify → Plan → Guard → Fetch → Build/Rename pipeline
// through the state diagram in spec.md §4.8. Grounded on the teacher's
// cmd/downloader/Download, generalized from a one-shot CLI function into
// a reusable Downloader bound to one config.DownloadContext.
package downloader

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mossbeam/hlsfetch/pkg/build"
	"github.com/mossbeam/hlsfetch/pkg/config"
	"github.com/mossbeam/hlsfetch/pkg/fetcher"
	"github.com/mossbeam/hlsfetch/pkg/fetchpool"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
	"github.com/mossbeam/hlsfetch/pkg/playlist"
	"github.com/mossbeam/hlsfetch/pkg/progress"
	"github.com/mossbeam/hlsfetch/pkg/spaceguard"
	"github.com/sirupsen/logrus"
)

// Downloader owns one config.DownloadContext and the pipeline state for
// a single in-flight invocation. Not safe for concurrent invocations
// against the same instance, matching spec.md §4.8's "no invocation may
// run concurrently against the same DownloadContext".
type Downloader struct {
	cfg      *config.DownloadContext
	fetcher  fetcher.Fetcher
	log      *logrus.Entry
	reporter *progress.Reporter

	mu                 sync.Mutex
	state              State
	isDownloadComplete bool
}

func New(cfg *config.DownloadContext, f fetcher.Fetcher, log *logrus.Entry, reporter *progress.Reporter) *Downloader {
	return &Downloader{cfg: cfg, fetcher: f, log: log, reporter: reporter, state: Idle}
}

// State reports the invocation's current pipeline position.
func (d *Downloader) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsDownloadComplete reports whether the last invocation finished
// successfully (spec.md §3's terminal isDownloadComplete flag).
func (d *Downloader) IsDownloadComplete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isDownloadComplete
}

func (d *Downloader) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// DownloadPlaylist implements download_playlist: the input must classify
// as MEDIA.
func (d *Downloader) DownloadPlaylist(ctx context.Context, merge bool) error {
	return d.run(ctx, merge, func(doc *playlist.Document) (*playlist.Document, error) {
		switch doc.Kind {
		case playlist.Master:
			return nil, hlserr.New(hlserr.WrongMethodMaster, "input is a master playlist; call download_master_playlist")
		case playlist.Unknown:
			return nil, hlserr.New(hlserr.NotAPlaylist, "input does not classify as a playlist")
		default:
			return doc, nil
		}
	})
}

// DownloadMasterPlaylist implements download_master_playlist: the input
// must classify as MASTER; a variant is selected, its media playlist
// loaded, and the pipeline continues as in DownloadPlaylist.
func (d *Downloader) DownloadMasterPlaylist(ctx context.Context, name, bandwidth, resolution string, merge bool) error {
	keys := playlist.SelectionKeys{Name: name, Bandwidth: bandwidth, Resolution: resolution}

	return d.run(ctx, merge, func(doc *playlist.Document) (*playlist.Document, error) {
		switch doc.Kind {
		case playlist.Media:
			return nil, hlserr.New(hlserr.WrongMethodMedia, "input is a media playlist; call download_playlist")
		case playlist.Unknown:
			return nil, hlserr.New(hlserr.NotAPlaylist, "input does not classify as a playlist")
		}

		variants := playlist.ParseVariants(doc.Lines, doc.BaseURI)
		variant, err := playlist.Select(variants, keys)
		if err != nil {
			d.log.WithField("event", "variant_ambiguous").Warn(err.Error())
			return nil, err
		}

		mediaDoc, err := playlist.Load(ctx, d.fetcher, variant.URI)
		if err != nil {
			return nil, err
		}
		if mediaDoc.Kind != playlist.Media {
			return nil, hlserr.New(hlserr.MalformedMaster, "selected variant does not resolve to a media playlist")
		}
		return mediaDoc, nil
	})
}

// resolver turns the loaded root document into the media document the
// pipeline will actually plan and fetch, applying each entry point's
// own classification rules.
type resolver func(doc *playlist.Document) (*playlist.Document, error)

func (d *Downloader) run(ctx context.Context, merge bool, resolve resolver) (err error) {
	d.mu.Lock()
	if d.state != Idle && d.state != Done && d.state != Failed {
		d.mu.Unlock()
		return hlserr.New(hlserr.InvalidConfig, "a download is already in progress for this context")
	}
	d.isDownloadComplete = false
	d.mu.Unlock()

	defer func() {
		if err != nil {
			d.setState(Failed)
		}
	}()

	d.setState(Verifying)
	doc, err := playlist.Load(ctx, d.fetcher, d.cfg.Input())
	if err != nil {
		return err
	}
	if !playlist.HasM3UHeader(doc.Lines) {
		d.log.WithField("event", "missing_extm3u").Debug("playlist does not start with #EXTM3U")
	}

	mediaDoc, err := resolve(doc)
	if err != nil {
		return err
	}

	if playlist.HasEncryptionTag(mediaDoc.Lines) {
		return hlserr.New(hlserr.EncryptedUnsupported, "playlist declares #EXT-X-KEY; encrypted segments are not supported")
	}

	d.setState(Planning)
	segments := playlist.PlanSegments(mediaDoc.Lines, mediaDoc.BaseURI)

	outputDir, err := d.cfg.OutputDir()
	if err != nil {
		return err
	}

	if !d.cfg.SkipSpaceCheck() {
		d.setState(Guarding)
		d.report(progress.PhaseVerify, 0, len(segments), 0, 0)
		if err := spaceguard.Check(ctx, d.fetcher, segments, outputDir); err != nil {
			return err
		}
		d.report(progress.PhaseVerify, len(segments), len(segments), 0, 0)
	}

	d.setState(Downloading)
	base := outputBase(d.cfg.Output())
	total := len(segments)
	var completed int
	result, err := fetchpool.Run(ctx, d.fetcher, segments, outputDir, base, d.cfg.MaxThreads(), func(job *fetchpool.FetchJob) {
		completed++
		d.report(progress.PhaseDownload, completed, total, job.Bytes, 0)
	})
	if err != nil {
		return err
	}

	d.setState(Building)
	if merge {
		if err := build.Concatenate(ctx, d.cfg.Output(), result.Jobs); err != nil {
			return err
		}
	} else {
		ext := filepath.Ext(d.cfg.Output())
		if ext == "" {
			ext = ".ts"
		}
		if _, err := build.RenameStable(result.Jobs, outputDir, base, ext); err != nil {
			return err
		}
	}
	d.report(progress.PhaseBuild, total, total, 0, 0)

	d.mu.Lock()
	d.isDownloadComplete = true
	d.mu.Unlock()
	d.setState(Done)
	return nil
}

func (d *Downloader) report(phase progress.Phase, completed, total int, bytes, totalBytes int64) {
	if d.reporter == nil {
		return
	}
	d.reporter.Report(progress.Update{Phase: phase, Completed: completed, Total: total, Bytes: bytes, TotalBytes: totalBytes})
}

// outputBase derives the per-segment temp-file base name from the
// configured output path: its filename without extension.
func outputBase(outputPath string) string {
	base := filepath.Base(outputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
