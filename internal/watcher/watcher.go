// Package watcher ingests record drop files from a watched directory.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a drop directory for record files
type Watcher struct {
	dir      string
	onFile   func(path string)
	debounce time.Duration
}

// New creates a watcher that calls onFile for each record file written
// into dir. Only .json, .yaml and .yml files are reported.
func New(dir string, onFile func(path string)) *Watcher {
	return &Watcher{
		dir:      dir,
		onFile:   onFile,
		debounce: 500 * time.Millisecond,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch starts watching the drop directory. Files already present are
// reported once on startup so restarts do not miss pending drops. It
// blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	log.Printf("Watching %s for record files", w.dir)

	w.reportExisting()

	// Per-file debounce timers absorb the write bursts scanners produce
	debounceTimers := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRecordFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			path := event.Name
			if timer, exists := debounceTimers[path]; exists {
				timer.Stop()
			}
			debounceTimers[path] = time.AfterFunc(w.debounce, func() {
				log.Printf("Record file dropped: %s", path)
				w.onFile(path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)

		case <-ctx.Done():
			for _, timer := range debounceTimers {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}

// reportExisting hands over record files that were dropped while the
// watcher was not running
func (w *Watcher) reportExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("Failed to read drop directory %s: %v", w.dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if isRecordFile(path) {
			log.Printf("Record file pending from before startup: %s", path)
			w.onFile(path)
		}
	}
}

func isRecordFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
