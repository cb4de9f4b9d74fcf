package seed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"lead_outreach_backend/platform/logger"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Loader loads the catalog at a path into a store, optionally on every change.
type Loader struct {
	path  string
	store Store
	log   *logger.Logger
}

func NewLoader(path string, store Store, log *logger.Logger) *Loader {
	return &Loader{path: path, store: store, log: log}
}

// Load applies the catalog once.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	c, err := LoadFile(l.path)
	if err != nil {
		return Result{}, err
	}
	res, err := Apply(ctx, l.store, c)
	if err != nil {
		return res, err
	}
	l.log.Info("seed catalog applied", "path", l.path, "templates", res.Templates, "sequences", res.Sequences)
	return res, nil
}

// Watch reapplies the catalog whenever the file changes until ctx is done.
// The directory is watched so editors that replace the file are followed.
func (l *Loader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create seed watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir, file := filepath.Dir(l.path), filepath.Base(l.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := l.Load(ctx); err != nil {
				l.log.Warn("seed catalog reload failed", "path", l.path, "error", err)
			}
		})
	}
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.log.Warn("seed watcher error", "error", err)
		}
	}
}
