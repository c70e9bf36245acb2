// Package watch reruns a task whenever one of a set of files changes.
package watch

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrisuehlinger/viewwatch/events"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Task is the work rerun on every change. A failing task is logged and the
// watcher keeps going.
type Task func(ctx context.Context) error

// Watcher watches files and reruns a task on a single loop goroutine.
type Watcher struct {
	paths    map[string]bool
	dirs     []string
	task     Task
	debounce time.Duration
	logger   *zap.Logger

	generation atomic.Int64
	runs       atomic.Int64
}

// New creates a watcher for paths. The parent directories are watched so that
// editors which replace files on save are handled.
func New(paths []string, task Task, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		paths:    make(map[string]bool),
		task:     task,
		debounce: debounce,
		logger:   logger,
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s", p)
		}
		w.paths[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Runs returns how many times the task has run.
func (w *Watcher) Runs() int64 {
	return w.runs.Load()
}

// Run runs the task once, then again after every change, until ctx is done.
// Cancellation of ctx is not reported as an error.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return errors.Wrapf(err, "watch %s", dir)
		}
		w.logger.Debug("watching directory", zap.String("dir", dir))
	}

	loop := events.NewLoop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})
	loop.Post(func() { w.runTask(gctx) })

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case event, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if !w.relevant(event) {
					continue
				}
				w.logger.Debug("file changed",
					zap.String("path", event.Name),
					zap.String("op", event.Op.String()))
				w.schedule(gctx, loop)
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("file watcher error", zap.Error(err))
			}
		}
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.paths[abs]
}

// schedule reruns the task once no further change arrives for the debounce
// period.
func (w *Watcher) schedule(ctx context.Context, loop *events.Loop) {
	gen := w.generation.Add(1)
	loop.AfterFunc(w.debounce, func() {
		if w.generation.Load() != gen {
			return
		}
		w.runTask(ctx)
	})
}

func (w *Watcher) runTask(ctx context.Context) {
	w.runs.Add(1)
	if err := w.task(ctx); err != nil {
		w.logger.Error("task failed", zap.Error(err))
	}
}
