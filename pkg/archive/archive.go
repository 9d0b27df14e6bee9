package archive

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config bundles the knobs the CLI's `archive` subcommand exposes
// (SPEC_FULL.md §6).
type Config struct {
	WatchDir        string
	MirrorDir       string
	Ext             string
	WorkerCount     int
	MaxQueueSize    int
	SettlingDelay   time.Duration
	RetainHours     int
	CleanupEnabled  bool
	CleanupBatch    int
	CleanupInterval time.Duration
}

// DefaultConfig returns sane defaults matching the teacher's transfer
// config constants, generalized off NAS-specific naming.
func DefaultConfig(watchDir, mirrorDir string) Config {
	return Config{
		WatchDir:        watchDir,
		MirrorDir:       mirrorDir,
		Ext:             ".ts",
		WorkerCount:     4,
		MaxQueueSize:    1000,
		SettlingDelay:   2 * time.Second,
		RetainHours:     0,
		CleanupEnabled:  false,
		CleanupBatch:    50,
		CleanupInterval: 30 * time.Second,
	}
}

// Service owns the Queue, Watcher and Cleanup sweeper and runs them
// together until its context is cancelled. Grounded on the teacher's
// TransferService.
type Service struct {
	queue   *Queue
	watcher *Watcher
	cleanup *Cleanup
	log     *logrus.Entry
}

func NewService(cfg Config, log *logrus.Entry) (*Service, error) {
	cleanup := NewCleanup(CleanupConfig{
		Enabled:         cfg.CleanupEnabled,
		RetentionPeriod: time.Duration(cfg.RetainHours) * time.Hour,
		BatchSize:       cfg.CleanupBatch,
		CheckInterval:   cfg.CleanupInterval,
	}, log)

	queue := NewQueue(QueueConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
	}, cfg.MirrorDir, cleanup, log)

	watcher, err := NewWatcher(cfg.WatchDir, cfg.Ext, queue, cfg.SettlingDelay, log)
	if err != nil {
		return nil, err
	}

	return &Service{queue: queue, watcher: watcher, cleanup: cleanup, log: log}, nil
}

// Run starts the watcher, queue workers, and cleanup sweeper, blocking
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if err := s.watcher.Start(ctx); err != nil && err != context.Canceled {
			s.log.WithError(err).Warn("archive watcher stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.queue.Run(ctx); err != nil && err != context.Canceled {
			s.log.WithError(err).Warn("archive queue stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.cleanup.Run(ctx); err != nil && err != context.Canceled {
			s.log.WithError(err).Warn("archive cleanup stopped")
		}
	}()

	wg.Wait()
	return nil
}

// Stats exposes the underlying queue's running counters.
func (s *Service) Stats() *Stats { return s.queue.Stats() }
