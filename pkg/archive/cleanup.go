package archive

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cleanup removes source files once they've been successfully mirrored
// and have sat past config.RetentionPeriod, batching removals so a burst
// of completions doesn't hammer the filesystem. Grounded on the
// teacher's CleanupService.
type Cleanup struct {
	config  CleanupConfig
	pending []string
	log     *logrus.Entry
	mu      sync.Mutex
}

func NewCleanup(config CleanupConfig, log *logrus.Entry) *Cleanup {
	return &Cleanup{config: config, log: log}
}

// Schedule queues a file for later removal. A no-op when cleanup is
// disabled.
func (c *Cleanup) Schedule(path string) {
	if !c.config.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, path)
}

// Run sweeps the pending list on config.CheckInterval until ctx is
// cancelled.
func (c *Cleanup) Run(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cleanup) sweep() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.config.BatchSize
	if batch > len(c.pending) {
		batch = len(c.pending)
	}
	toProcess := append([]string(nil), c.pending[:batch]...)
	c.pending = c.pending[batch:]
	c.mu.Unlock()

	var retained []string
	for _, path := range toProcess {
		if err := c.removeIfStale(path); err != nil {
			c.log.WithError(err).WithField("path", path).Warn("archive cleanup failed")
			continue
		}
		if _, err := os.Stat(path); err == nil {
			retained = append(retained, path)
		}
	}

	if len(retained) > 0 {
		c.mu.Lock()
		c.pending = append(c.pending, retained...)
		c.mu.Unlock()
	}
}

func (c *Cleanup) removeIfStale(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if c.config.RetentionPeriod > 0 && time.Since(info.ModTime()) < c.config.RetentionPeriod {
		return nil
	}
	return os.Remove(path)
}

// Pending reports how many files are awaiting cleanup.
func (c *Cleanup) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
