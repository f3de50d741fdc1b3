package config

import (
	"sync"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Settings whenever config.yaml changes on disk, so an
// interactive session picks up an edited stream capacity or history size
// without a restart.
type Watcher struct {
	mu       sync.RWMutex
	current  Settings
	fsw      *fsnotify.Watcher
	done     chan struct{}
	onChange func(Settings)
}

// NewWatcher loads the current settings and starts watching config.yaml's
// parent directory (watching the directory rather than the file survives
// editors that replace the file instead of writing it in place). If
// $HOME/.config/crush doesn't exist yet, the watch is a no-op, since a
// directory watch cannot be armed on a path that isn't there; it is not
// retried later, so Current keeps returning the settings loaded here.
func NewWatcher(onChange func(Settings)) (*Watcher, error) {
	settings, err := Load()
	if err != nil {
		return nil, err
	}
	w := &Watcher{current: settings, done: make(chan struct{}), onChange: onChange}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, crusherr.Wrap(crusherr.IOError, err, "creating config watcher")
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.fsw = fsw
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	path, err := ConfigPath()
	if err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			settings, err := Load()
			if err != nil {
				continue
			}
			w.mu.Lock()
			w.current = settings
			w.mu.Unlock()
			if w.onChange != nil {
				w.onChange(settings)
			}
		case <-w.fsw.Errors:
		case <-w.done:
			return
		}
	}
}

// Current returns the most recently loaded Settings.
func (w *Watcher) Current() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the watch goroutine.
func (w *Watcher) Close() error {
	close(w.done)
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
