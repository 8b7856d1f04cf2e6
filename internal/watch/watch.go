// Package watch reloads a scene file into a running simulation whenever it
// changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
)

const DefaultDebounce = 150 * time.Millisecond

// Resetter swaps the simulated world. runner.Runner implements it.
type Resetter interface {
	Reset(ctx context.Context, w *physics.World) error
}

type SceneWatcher struct {
	path     string
	target   Resetter
	log      log.Log
	debounce time.Duration
	onReload func(config.Config, error)
	running  atomic.Bool
}

type Option func(*SceneWatcher)

// WithDebounce sets how long the file must stay quiet before a reload.
func WithDebounce(d time.Duration) Option { return func(w *SceneWatcher) { w.debounce = d } }

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(config.Config, error)) Option {
	return func(w *SceneWatcher) { w.onReload = fn }
}

func New(path string, target Resetter, logger log.Log, opts ...Option) (*SceneWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	w := &SceneWatcher{
		path:     abs,
		target:   target,
		log:      logger.With(log.String("component", "watch"), log.String("path", abs)),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches the scene's directory, so editors that replace the file by
// renaming are still seen, until ctx is cancelled.
func (w *SceneWatcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Info("watching scene")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", log.Error(err))
		case <-timer.C:
			if err := w.Reload(ctx); err != nil {
				w.log.Warn("scene reload failed", log.Error(err))
			}
		}
	}
}

// Reload reads, validates and installs the scene once. An invalid scene
// leaves the running world untouched.
func (w *SceneWatcher) Reload(ctx context.Context) (err error) {
	var cfg config.Config
	defer func() {
		if w.onReload != nil {
			w.onReload(cfg, err)
		}
	}()

	cfg, err = config.LoadFile(w.path)
	if err != nil {
		return err
	}
	world := cfg.BuildWorld()
	if err = w.target.Reset(ctx, world); err != nil {
		return err
	}
	w.log.Info("scene reloaded", log.Int("bodies", world.Len()))
	return nil
}
