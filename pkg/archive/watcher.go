package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher notices new or rewritten output files under watchDir and, once
// a file has stopped changing for settlingDelay, queues it for
// mirroring. Grounded directly on the teacher's FileWatcher; adapted to
// watch for the downloader's own output extension instead of a
// hardcoded ".ts" suffix. Every directory under watchDir is watched,
// including directories created after Start.
type Watcher struct {
	watchDir     string
	ext          string
	queue        *Queue
	watcher      *fsnotify.Watcher
	settlingDelay time.Duration
	pendingFiles map[string]*time.Timer
	log          *logrus.Entry
	mu           sync.Mutex
}

func NewWatcher(watchDir, ext string, queue *Queue, settlingDelay time.Duration, log *logrus.Entry) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		watchDir:      watchDir,
		ext:           ext,
		queue:         queue,
		watcher:       w,
		settlingDelay: settlingDelay,
		pendingFiles:  make(map[string]*time.Timer),
		log:           log,
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addWatchRecursive(w.watchDir); err != nil {
		return fmt.Errorf("adding watch paths: %w", err)
	}
	w.log.WithField("dir", w.watchDir).Debug("archive watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.WithError(err).Warn("archive watcher error")
		}
	}
}

func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.log.WithError(err).WithField("dir", path).Warn("failed to watch directory")
			}
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.log.WithError(err).WithField("dir", event.Name).Warn("failed to watch new directory")
			}
			return
		}
	}

	if !strings.HasSuffix(strings.ToLower(event.Name), strings.ToLower(w.ext)) {
		return
	}

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create, event.Op&fsnotify.Write == fsnotify.Write:
		w.scheduleMirror(event.Name)
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		w.cancelPending(event.Name)
	}
}

func (w *Watcher) scheduleMirror(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pendingFiles[path]; ok {
		timer.Stop()
	}
	w.pendingFiles[path] = time.AfterFunc(w.settlingDelay, func() {
		w.mirror(path)
		w.mu.Lock()
		delete(w.pendingFiles, path)
		w.mu.Unlock()
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pendingFiles[path]; ok {
		timer.Stop()
		delete(w.pendingFiles, path)
	}
}

func (w *Watcher) mirror(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(w.watchDir, path)
	if err != nil {
		return
	}
	if err := w.queue.Add(path, rel, info.Size()); err != nil {
		w.log.WithError(err).WithField("source", path).Warn("failed to queue file for archive")
	}
}
