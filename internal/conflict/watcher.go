package conflict

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Overlap reports a file actually written by more than one task during a
// run. Unlike Conflict, which works from declarations, an Overlap is
// observed after the fact and is informational only.
type Overlap struct {
	RelativePath string    // Path relative to the task work directory
	Tasks        []string  // Task IDs that wrote this file
	LastWrite    time.Time // When the overlap was last observed
}

// Watcher observes file writes across per-task work directories and
// reports files touched by more than one task. It feeds the progress
// sink only and never influences scheduling.
type Watcher struct {
	watcher *fsnotify.Watcher

	// Map of task ID -> work directory
	dirs map[string]string

	// Map of relative path -> task IDs that wrote it, with write times.
	// Relative paths are comparable across work directories.
	writes map[string]map[string]time.Time

	overlaps []Overlap

	// Callback for overlap notifications
	onOverlap func([]Overlap)

	// Directory names to skip (VCS metadata, local state)
	ignoreDirs []string

	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher backed by fsnotify.
func NewWatcher() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:    fsw,
		dirs:       make(map[string]string),
		writes:     make(map[string]map[string]time.Time),
		overlaps:   make([]Overlap, 0),
		ignoreDirs: []string{".git", ".dagrun", "node_modules", ".DS_Store"},
		stopCh:     make(chan struct{}),
	}, nil
}

// SetOverlapCallback sets the callback invoked when overlaps are observed.
func (w *Watcher) SetOverlapCallback(cb func([]Overlap)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOverlap = cb
}

// AddTask starts watching a task's work directory.
func (w *Watcher) AddTask(taskID, dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dirs[taskID] = dir

	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	// fsnotify watches single directories only, so cover subdirectories too.
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		for _, ignore := range w.ignoreDirs {
			if filepath.Base(path) == ignore {
				return filepath.SkipDir
			}
		}
		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// RemoveTask stops watching a task's work directory and drops its writes.
func (w *Watcher) RemoveTask(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir, ok := w.dirs[taskID]
	if !ok {
		return
	}

	_ = w.watcher.Remove(dir)
	delete(w.dirs, taskID)

	for relPath, tasks := range w.writes {
		delete(tasks, taskID)
		if len(tasks) == 0 {
			delete(w.writes, relPath)
		}
	}

	w.recalculate()
}

// Start begins processing filesystem events.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and releases resources. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

// watchLoop processes filesystem events with a short debounce, since a
// single save often produces several events.
func (w *Watcher) watchLoop() {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	pending := make(map[string]fsnotify.Event)
	var pendingMu sync.Mutex

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			pendingMu.Lock()
			pending[event.Name] = event
			pendingMu.Unlock()

			debounce.Reset(50 * time.Millisecond)

		case <-debounce.C:
			pendingMu.Lock()
			events := pending
			pending = make(map[string]fsnotify.Event)
			pendingMu.Unlock()

			for _, event := range events {
				w.recordEvent(event.Name)
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// recordEvent attributes a written path to the task whose work directory
// contains it.
func (w *Watcher) recordEvent(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sep := string(filepath.Separator)
	for _, ignore := range w.ignoreDirs {
		if strings.Contains(path, sep+ignore+sep) ||
			strings.HasSuffix(path, sep+ignore) ||
			filepath.Base(path) == ignore {
			return
		}
	}

	// A prefix match alone would let dir "task1" claim paths under
	// "task10"; require the path to be strictly inside the directory.
	var taskID, relPath string
	for id, dir := range w.dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." || rel == ".." ||
			strings.HasPrefix(rel, ".."+sep) {
			continue
		}
		taskID = id
		relPath = rel
		break
	}
	if taskID == "" {
		return // Not in any watched work directory
	}

	if w.writes[relPath] == nil {
		w.writes[relPath] = make(map[string]time.Time)
	}
	w.writes[relPath][taskID] = time.Now()

	w.recalculate()
}

// recalculate rebuilds the overlap list from tracked writes.
// Must be called with mu held.
func (w *Watcher) recalculate() {
	overlaps := make([]Overlap, 0)

	for relPath, tasks := range w.writes {
		if len(tasks) < 2 {
			continue
		}
		var ids []string
		var last time.Time
		for id, at := range tasks {
			ids = append(ids, id)
			if at.After(last) {
				last = at
			}
		}
		overlaps = append(overlaps, Overlap{
			RelativePath: relPath,
			Tasks:        ids,
			LastWrite:    last,
		})
	}

	w.overlaps = overlaps

	if w.onOverlap != nil && len(overlaps) > 0 {
		w.onOverlap(overlaps)
	}
}

// Overlaps returns a copy of the currently observed overlaps.
func (w *Watcher) Overlaps() []Overlap {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Overlap, len(w.overlaps))
	copy(out, w.overlaps)
	return out
}

// FilesWrittenBy returns the relative paths a task has written so far.
func (w *Watcher) FilesWrittenBy(taskID string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var files []string
	for relPath, tasks := range w.writes {
		if _, ok := tasks[taskID]; ok {
			files = append(files, relPath)
		}
	}
	return files
}

// HasOverlaps returns true if any file was written by multiple tasks.
func (w *Watcher) HasOverlaps() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.overlaps) > 0
}
