// Command hlsfetch is the CLI entry point for the downloader core,
// grounded on the teacher's cmd/main/main.go flag-driven dispatch,
// rebuilt on github.com/spf13/cobra subcommands per SPEC_FULL.md §6.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mossbeam/hlsfetch/pkg/archive"
	"github.com/mossbeam/hlsfetch/pkg/config"
	"github.com/mossbeam/hlsfetch/pkg/downloader"
	"github.com/mossbeam/hlsfetch/pkg/fetcher"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
	"github.com/mossbeam/hlsfetch/pkg/progress"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hlsfetch",
		Short: "Download HLS playlists into a single ordered artifact",
	}
	root.AddCommand(downloadCmd(), archiveCmd())
	return root
}

func downloadCmd() *cobra.Command {
	var (
		input             string
		output            string
		maxThreads        int
		skipSpaceCheck    bool
		debug             bool
		debugPath         string
		noMerge           bool
		variantName       string
		variantBandwidth  string
		variantResolution string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Resolve a playlist URL or path and fetch its segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(input, output)
			if err != nil {
				return err
			}
			if err := cfg.SetMaxThreads(maxThreads); err != nil {
				return err
			}
			cfg.SetSkipSpaceCheck(skipSpaceCheck)
			cfg.SetDebug(debug)
			if err := cfg.SetDebugPath(debugPath); err != nil {
				return err
			}

			log := newLogger(cfg)
			reporter := progress.New(os.Stdout, progress.IsTerminal(os.Stdout.Fd()))
			defer reporter.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Warn("received interrupt, cancelling")
				cancel()
			}()

			d := downloader.New(cfg, fetcher.New(), log, reporter)
			merge := !noMerge

			err = d.DownloadPlaylist(ctx, merge)
			if hlserr.IsKind(err, hlserr.WrongMethodMaster) {
				log.Info("input is a master playlist, selecting a variant")
				err = d.DownloadMasterPlaylist(ctx, variantName, variantBandwidth, variantResolution, merge)
			}
			if err != nil {
				return err
			}

			log.WithField("complete", d.IsDownloadComplete()).Info("download finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "playlist URL or local path (required)")
	cmd.Flags().StringVar(&output, "output", "", "output file path (required)")
	cmd.Flags().IntVar(&maxThreads, "max-threads", config.DefaultMaxThreads, "bound on concurrent segment fetches")
	cmd.Flags().BoolVar(&skipSpaceCheck, "skip-space-check", false, "skip the free-space preflight")
	cmd.Flags().BoolVar(&debug, "debug", false, "write structured debug records")
	cmd.Flags().StringVar(&debugPath, "debug-path", config.DefaultDebugPath, "path for debug records")
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "keep per-segment files instead of concatenating")
	cmd.Flags().StringVar(&variantName, "variant-name", "", "select a master-playlist variant by NAME")
	cmd.Flags().StringVar(&variantBandwidth, "variant-bandwidth", "", "select a master-playlist variant by BANDWIDTH")
	cmd.Flags().StringVar(&variantResolution, "variant-resolution", "", "select a master-playlist variant by RESOLUTION")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func archiveCmd() *cobra.Command {
	var (
		watchDir    string
		mirrorDir   string
		retainHours int
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Watch a directory of completed downloads and mirror them elsewhere",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New().WithField("component", "archive")

			cfg := archive.DefaultConfig(watchDir, mirrorDir)
			cfg.RetainHours = retainHours
			cfg.CleanupEnabled = retainHours > 0

			svc, err := archive.NewService(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Warn("received interrupt, shutting down")
				cancel()
			}()

			return svc.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&watchDir, "watch", "", "directory to watch for completed downloads (required)")
	cmd.Flags().StringVar(&mirrorDir, "mirror", "", "directory to mirror completed downloads into (required)")
	cmd.Flags().IntVar(&retainHours, "retain-hours", 0, "remove mirrored originals after this many hours (0 disables cleanup)")
	cmd.MarkFlagRequired("watch")
	cmd.MarkFlagRequired("mirror")

	return cmd
}

// newLogger builds the app logger, adding a JSON file hook for the
// debug sink when cfg.Debug() is set (spec.md §6 "Debug log").
func newLogger(cfg *config.DownloadContext) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.Debug() {
		f, err := os.OpenFile(cfg.DebugPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			debugLog := logrus.New()
			debugLog.SetFormatter(&logrus.JSONFormatter{})
			debugLog.SetOutput(f)
			l.AddHook(&fileHook{logger: debugLog})
		}
		l.SetLevel(logrus.DebugLevel)
	}

	return l.WithField("input", cfg.Input())
}

// fileHook mirrors every log entry into a separate JSON-formatted
// logger, giving the debug sink its own file independent of the
// interactive stderr output.
type fileHook struct {
	logger *logrus.Logger
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	e := h.logger.WithFields(entry.Data)
	e.Log(entry.Level, entry.Message)
	return nil
}
