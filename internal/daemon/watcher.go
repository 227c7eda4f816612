package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the input directory and fires the callback after changes
// settle for the debounce window. Rapid bursts of file events (a scanner
// dropping many pages) collapse into a single trigger.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(reason string)
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
}

// NewWatcher creates a watcher over dir.
func NewWatcher(dir string, debounce time.Duration, onChange func(reason string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve input directory: %w", err)
	}

	return &Watcher{
		dir:      absDir,
		debounce: debounce,
		onChange: onChange,
		watcher:  fsw,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins monitoring.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch input directory %s: %w", w.dir, err)
	}
	slog.Info("Watching input directory", "dir", w.dir, "debounce", w.debounce)
	go w.loop(ctx)
	return nil
}

// Stop stops monitoring.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			slog.Debug("Input change observed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.onChange("watch")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Input watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Rename)
}
