package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Reloader hot-swaps the server's pipeline when the definition file
// changes. It watches the parent directory rather than the file itself:
// editors that save by rename-and-replace drop the original inode, and
// a file watch would go silent after the first save.
type Reloader struct {
	watcher *fsnotify.Watcher
	server  *Server
	path    string

	mu       sync.Mutex
	debounce *time.Timer
}

// NewReloader creates a watcher for the server's config path.
func NewReloader(server *Server, path string) (*Reloader, error) {
	if path == "" {
		return nil, fmt.Errorf("server: reloader needs a config path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("server: resolve %q: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("server: cannot watch %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("server: create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("server: watch %q: %w", filepath.Dir(abs), err)
	}

	return &Reloader{watcher: watcher, server: server, path: abs}, nil
}

// Run consumes watcher events until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			r.stopTimer()
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			r.handle(event)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "file watcher error: %v\n", err)
		}
	}
}

// handle schedules a reload for relevant events on the watched file.
// The debounce window absorbs the write bursts a single save produces,
// so a half-written file is never parsed.
func (r *Reloader) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != r.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.debounce = time.AfterFunc(reloadDebounce, r.reload)
}

func (r *Reloader) reload() {
	if err := r.server.Reload(); err != nil {
		fmt.Fprintf(os.Stderr, "hot-reload failed: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "hot-reload: pipeline reloaded\n")
}

func (r *Reloader) stopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
}
