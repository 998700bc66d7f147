package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a configuration file for changes so settings like the
// log level can be reloaded without a restart.
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	callbacks []func(string)
	mu        sync.Mutex
	done      chan struct{}
	logger    *slog.Logger
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Watch the directory, not the file, so editor-style replace-by-rename
	// is still observed.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		path:    path,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go w.loop()
	return w, nil
}

// OnChange registers a callback invoked with the file path after each
// observed change.
func (w *Watcher) OnChange(fn func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("config file changed", "path", w.path, "op", ev.Op.String())
			w.mu.Lock()
			callbacks := append([]func(string){}, w.callbacks...)
			w.mu.Unlock()
			for _, fn := range callbacks {
				fn(w.path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
