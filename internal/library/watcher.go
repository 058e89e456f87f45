package library

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vbonduro/exifedit/internal/photostore/local"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher rescans the library when files under root change.
type Watcher struct {
	root     string
	scanner  *Scanner
	debounce time.Duration
	logger   *slog.Logger
}

func NewWatcher(root string, scanner *Scanner, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{root: root, scanner: scanner, debounce: debounce, logger: logger}
}

// Run blocks until ctx is done. Bursts of events within the debounce window
// trigger a single rescan.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			w.logger.Error("failed to close watcher", "error", err)
		}
	}()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}
	w.logger.Info("watching library", "root", w.root)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if !w.relevant(watcher, event) {
				continue
			}
			w.logger.Debug("library change", "op", event.Op.String(), "name", event.Name)
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		case <-timer.C:
			pending = false
			if _, err := w.scanner.Scan(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("library rescan failed", "error", err)
			}
		}
	}
}

// relevant filters events down to image files and directories. New
// directories are added to the watch list as they appear.
func (w *Watcher) relevant(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(watcher, event.Name); err != nil {
				w.logger.Error("failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return true
	}
	return local.IsImageFile(event.Name) && (event.Has(fsnotify.Create) || event.Has(fsnotify.Write))
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
