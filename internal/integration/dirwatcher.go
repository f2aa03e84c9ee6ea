package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileOperation is the kind of change observed in a watched directory.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent is a filtered change notification.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

type pendingEvent struct {
	timer *time.Timer
	op    FileOperation
}

// DefaultWatchExtensions are the document types the backend can ingest.
var DefaultWatchExtensions = []string{".pdf", ".txt", ".md", ".docx"}

// DirWatcher watches a directory for documents with accepted extensions.
type DirWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	settle     time.Duration
}

// NewDirWatcher creates a watcher. Events for the same path that arrive
// within settle of each other are coalesced into one; a zero settle emits
// every event as it arrives.
func NewDirWatcher(extensions []string, settle time.Duration) (*DirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating directory watcher: %w", err)
	}
	if len(extensions) == 0 {
		extensions = DefaultWatchExtensions
	}
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return &DirWatcher{watcher: w, extensions: normalized, settle: settle}, nil
}

// Watch starts monitoring dir. The returned channel closes when ctx is
// done or the watcher is stopped.
func (w *DirWatcher) Watch(ctx context.Context, dir string) (<-chan FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	events := make(chan FileEvent, 100)
	var (
		mu      sync.Mutex
		pending = make(map[string]*pendingEvent)
		wg      sync.WaitGroup
	)

	emit := func(ev FileEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer func() {
			mu.Lock()
			for _, p := range pending {
				if p.timer.Stop() {
					wg.Done()
				}
			}
			mu.Unlock()
			wg.Wait()
			close(events)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.accepts(event.Name) {
					continue
				}

				var op FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = FileModified
				case event.Op&fsnotify.Remove == fsnotify.Remove:
					op = FileDeleted
				default:
					continue
				}

				ev := FileEvent{Path: event.Name, Operation: op}
				if w.settle <= 0 {
					emit(ev)
					continue
				}

				mu.Lock()
				if prev, ok := pending[ev.Path]; ok {
					if prev.timer.Stop() {
						wg.Done()
					}
					// A write following a create is still a new file.
					if prev.op == FileCreated && op == FileModified {
						ev.Operation = FileCreated
					}
				}
				p := &pendingEvent{op: ev.Operation}
				wg.Add(1)
				p.timer = time.AfterFunc(w.settle, func() {
					defer wg.Done()
					mu.Lock()
					if pending[ev.Path] == p {
						delete(pending, ev.Path)
					}
					mu.Unlock()
					emit(ev)
				})
				pending[ev.Path] = p
				mu.Unlock()
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}

// Stop releases the underlying watcher.
func (w *DirWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *DirWatcher) accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
