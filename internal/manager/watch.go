package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow batches bursts of filesystem events (an unpack touches
// many files) into a single re-sync.
const debounceWindow = 500 * time.Millisecond

// Watch re-syncs the session whenever the user extension root changes on
// disk. It blocks until ctx is cancelled. Bundled roots are immutable at
// runtime and are not watched.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.cfg.UserRoot); err != nil {
		return fmt.Errorf("watching %s: %w", m.cfg.UserRoot, err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := m.Sync(ctx); err != nil {
				m.log.Error().Err(err).Msg("re-sync after filesystem change failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn().Err(err).Msg("filesystem watcher error")
		}
	}
}
