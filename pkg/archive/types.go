// Package archive is the optional post-download mirror pipeline (ADDED
// component 11 — generalizes the teacher's pkg/transfer NAS-transfer
// subsystem into a domain-neutral "copy completed downloads somewhere
// else" feature: a priority queue of pending copies, a filesystem
// watcher that notices new output files, and a retention-based cleanup
// sweeper. Disabled by default; its failures are logged, never surfaced
// as a download_* error, since it only ever runs after
// isDownloadComplete is already true.
package archive

import (
	"sync"
	"time"
)

// Status is a MirrorItem's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusRetrying
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusRetrying:
		return "retrying"
	default:
		return "pending"
	}
}

// MirrorItem is one file queued for mirroring, adapted from the
// teacher's TransferItem with NAS-specific fields dropped.
type MirrorItem struct {
	ID              string
	SourcePath      string
	DestinationPath string
	Timestamp       time.Time
	RetryCount      int
	Status          Status
	FileSize        int64
	LastError       string
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	WorkerCount  int
	MaxQueueSize int
}

// CleanupConfig configures a Cleanup sweeper.
type CleanupConfig struct {
	Enabled         bool
	RetentionPeriod time.Duration
	BatchSize       int
	CheckInterval   time.Duration
}

// Stats tracks aggregate queue activity, mirrored from the teacher's
// QueueStats.
type Stats struct {
	mu               sync.Mutex
	TotalAdded       int
	TotalCompleted   int
	TotalFailed      int
	CurrentPending   int
	BytesTransferred int64
}

func (s *Stats) incrementAdded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalAdded++
	s.CurrentPending++
}

func (s *Stats) incrementCompleted(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalCompleted++
	s.CurrentPending--
	s.BytesTransferred += bytes
}

func (s *Stats) incrementFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalFailed++
	s.CurrentPending--
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() (added, completed, failed, pending int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TotalAdded, s.TotalCompleted, s.TotalFailed, s.CurrentPending, s.BytesTransferred
}
