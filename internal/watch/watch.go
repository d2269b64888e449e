// Package watch re-runs a build pass whenever one of its input files
// changes.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDelay is how long events are collected before a pass runs.
const DefaultDelay = 100 * time.Millisecond

// Watcher watches a fixed set of files. Their parent directories are
// watched instead of the files themselves, so files that do not exist yet
// (an optional .env) are picked up once they are created.
type Watcher struct {
	log   zerolog.Logger
	delay time.Duration

	files map[string]struct{}
	dirs  map[string]struct{}
}

func New(files []string, log zerolog.Logger) *Watcher {
	w := &Watcher{
		log:   log.With().Str("component", "watcher").Logger(),
		delay: DefaultDelay,
		files: make(map[string]struct{}),
		dirs:  make(map[string]struct{}),
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = filepath.Clean(f)
		}
		w.files[abs] = struct{}{}
		w.dirs[filepath.Dir(abs)] = struct{}{}
	}
	return w
}

// SetDelay overrides the debounce delay.
func (w *Watcher) SetDelay(d time.Duration) {
	w.delay = d
}

// Run calls fn once immediately and again after every debounced batch of
// changes to a watched file, until ctx is cancelled. fn runs on the
// calling goroutine, so calls never overlap. Errors from fn are logged and
// do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "unable to create watcher")
	}
	defer func() { _ = fsw.Close() }()

	for dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			// A missing directory cannot be watched; its files stay absent.
			w.log.Warn().Err(err).Str("dir", dir).Msg("unable to watch directory")
			continue
		}
		w.log.Debug().Str("dir", dir).Msg("watching directory")
	}

	run := func() {
		if ctx.Err() != nil {
			return
		}
		if err := fn(ctx); err != nil {
			w.log.Error().Err(err).Msg("build pass failed")
		}
	}

	run()

	trigger := make(chan struct{}, 1)
	d := debounce.New(w.delay)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("input changed")
			d(func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			run()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}
