package archive

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// priorityQueue orders MirrorItems oldest-first, matching the teacher's
// TransferQueue.PriorityQueue (container/heap ordered by Timestamp).
type priorityQueue []*MirrorItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].Timestamp.Before(pq[j].Timestamp) }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*MirrorItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Queue dispatches queued MirrorItems to a fixed worker pool that copies
// each source file to mirrorDir, retrying transient I/O failures.
// Grounded on the teacher's TransferQueue, stripped of NAS existence
// checks and JSON state persistence (the mirror directory is local, so
// there's nothing to reconnect to after a restart).
type Queue struct {
	config    QueueConfig
	mirrorDir string
	items     *priorityQueue
	stats     *Stats
	cleanup   *Cleanup
	log       *logrus.Entry
	mu        sync.Mutex
}

func NewQueue(config QueueConfig, mirrorDir string, cleanup *Cleanup, log *logrus.Entry) *Queue {
	pq := &priorityQueue{}
	heap.Init(pq)
	return &Queue{
		config:    config,
		mirrorDir: mirrorDir,
		items:     pq,
		stats:     &Stats{},
		cleanup:   cleanup,
		log:       log,
	}
}

// Add enqueues a file for mirroring.
func (q *Queue) Add(sourcePath string, destRel string, size int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() >= q.config.MaxQueueSize {
		return fmt.Errorf("archive queue is full (max size: %d)", q.config.MaxQueueSize)
	}

	item := &MirrorItem{
		ID:              uuid.NewString(),
		SourcePath:      sourcePath,
		DestinationPath: destRel,
		Timestamp:       time.Now(),
		Status:          StatusPending,
		FileSize:        size,
	}
	heap.Push(q.items, item)
	q.stats.incrementAdded()
	q.log.WithField("source", sourcePath).Debug("queued file for archive")
	return nil
}

// Run starts config.WorkerCount workers draining the queue until ctx is
// cancelled.
func (q *Queue) Run(ctx context.Context) error {
	work := make(chan *MirrorItem)
	var wg sync.WaitGroup
	wg.Add(q.config.WorkerCount)
	for i := 0; i < q.config.WorkerCount; i++ {
		go func(id int) {
			defer wg.Done()
			for item := range work {
				q.processItem(ctx, item)
			}
		}(i)
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			q.dispatch(ctx, work)
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, work chan<- *MirrorItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() > 0 {
		item := heap.Pop(q.items).(*MirrorItem)
		select {
		case work <- item:
		case <-ctx.Done():
			heap.Push(q.items, item)
			return
		default:
			heap.Push(q.items, item)
			return
		}
	}
}

const maxMirrorAttempts = 3

func (q *Queue) processItem(ctx context.Context, item *MirrorItem) {
	dest := filepath.Join(q.mirrorDir, item.DestinationPath)

	var lastErr error
	for attempt := 1; attempt <= maxMirrorAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt*attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
		if err := copyFile(ctx, item.SourcePath, dest); err != nil {
			lastErr = err
			item.RetryCount++
			item.LastError = err.Error()
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		item.Status = StatusFailed
		q.stats.incrementFailed()
		q.log.WithError(lastErr).WithField("source", item.SourcePath).Warn("archive mirror failed permanently")
		return
	}

	item.Status = StatusCompleted
	q.stats.incrementCompleted(item.FileSize)
	q.log.WithField("source", item.SourcePath).Debug("archive mirror completed")

	if q.cleanup != nil {
		q.cleanup.Schedule(item.SourcePath)
	}
}

// copyFile mirrors the teacher's nas.CopyFile: cancellable buffered copy
// plus an explicit Sync, then a check that the destination's size
// matches the source's.
func copyFile(ctx context.Context, srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()
	srcInfo, err := src.Stat()
	if err != nil {
		return fmt.Errorf("reading source file size: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	defer dest.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(dest, src)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return err
		}
		if err := dest.Sync(); err != nil {
			return err
		}
		destInfo, err := dest.Stat()
		if err != nil {
			return fmt.Errorf("reading destination file size: %w", err)
		}
		if destInfo.Size() != srcInfo.Size() {
			return fmt.Errorf("size mismatch: source %d bytes, destination %d bytes", srcInfo.Size(), destInfo.Size())
		}
		return nil
	}
}

// Stats exposes the queue's running counters.
func (q *Queue) Stats() *Stats { return q.stats }

// Size reports the current queue depth.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
