package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the catalog whenever its file or sounds directory changes,
// until ctx is done. Bursts of events collapse into one reload.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" && c.soundsDir == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	defer w.Close()

	if c.path != "" {
		// Editors replace files on save, so watch the directory.
		if err := w.Add(filepath.Dir(c.path)); err != nil {
			return fmt.Errorf("watch %s: %w", c.path, err)
		}
	}
	if c.soundsDir != "" {
		if err := w.Add(c.soundsDir); err != nil {
			return fmt.Errorf("watch %s: %w", c.soundsDir, err)
		}
	}

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !c.relevant(ev) {
				continue
			}
			timer.Reset(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("catalog watcher error", "err", err)
		case <-timer.C:
			if err := c.Reload(); err != nil {
				c.log.Warn("catalog reload failed", "err", err)
			}
		}
	}
}

func (c *Catalog) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if c.path != "" && filepath.Clean(ev.Name) == filepath.Clean(c.path) {
		return true
	}
	return c.soundsDir != "" && filepath.Clean(filepath.Dir(ev.Name)) == filepath.Clean(c.soundsDir)
}
