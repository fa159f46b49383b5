package control

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"monkeywatch/pkg/events"
)

// configNoticeDebounce suppresses the duplicate notifications editors
// produce for a single save.
const configNoticeDebounce = 500 * time.Millisecond

// WatchConfigFiles notifies the operator when a config file changes on
// disk. The loaded config is immutable in-process, so the notice is
// advisory: a restart picks the change up. Watching is best-effort; the
// caller decides what to do with a startup error.
func WatchConfigFiles(ctx context.Context, paths []string, sink chan<- events.Event) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}

	// Watch directories, not files: editors replace files on save, which
	// drops file-level watches.
	watched := make(map[string]bool, len(paths))
	added := 0
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		watched[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err == nil {
			added++
		}
	}
	if added == 0 {
		_ = watcher.Close()
		return fmt.Errorf("config watcher: no watchable paths")
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		var lastNotice time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				abs, err := filepath.Abs(ev.Name)
				if err != nil || !watched[abs] {
					continue
				}
				if time.Since(lastNotice) < configNoticeDebounce {
					continue
				}
				lastNotice = time.Now()
				notice := events.SystemEvent{
					AccountID: "control",
					Content:   "config changed; restart to apply",
				}
				select {
				case sink <- notice:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
